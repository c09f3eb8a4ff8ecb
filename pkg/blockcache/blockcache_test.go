package blockcache

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nimbusfs/nimbusfs/pkg/metadata"
	"github.com/nimbusfs/nimbusfs/pkg/metadata/sqlitestore"
	"github.com/nimbusfs/nimbusfs/pkg/remote"
)

// fakeRemote is a hand-rolled in-memory remote.Store, recording every
// Fetch/Flush call so tests can assert on coalescing and call counts.
type fakeRemote struct {
	mu     sync.Mutex
	data   map[string][]byte
	fetch  []remote.Run
	flushN int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{data: make(map[string][]byte)}
}

func (f *fakeRemote) Stat(ctx context.Context, path string) (remote.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.data[path]
	if !ok {
		return remote.Info{}, metadata.NewNotFoundError(path)
	}
	return remote.Info{Size: int64(len(b))}, nil
}

func (f *fakeRemote) List(ctx context.Context, path string) ([]string, error) { return nil, nil }

func (f *fakeRemote) Fetch(ctx context.Context, path string, offset, length int64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetch = append(f.fetch, remote.Run{Offset: offset, Bytes: make([]byte, length)})

	b, ok := f.data[path]
	if !ok {
		return nil, metadata.NewNotFoundError(path)
	}
	if offset+length > int64(len(b)) {
		return nil, metadata.NewIntegrityError(path, int(length), len(b)-int(offset))
	}
	out := make([]byte, length)
	copy(out, b[offset:offset+length])
	return out, nil
}

func (f *fakeRemote) Flush(ctx context.Context, path string, runs []remote.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushN++
	b := append([]byte(nil), f.data[path]...)
	for _, r := range runs {
		end := int(r.Offset) + len(r.Bytes)
		if end > len(b) {
			grown := make([]byte, end)
			copy(grown, b)
			b = grown
		}
		copy(b[r.Offset:end], r.Bytes)
	}
	f.data[path] = b
	return nil
}

func (f *fakeRemote) Create(ctx context.Context, path string, directory bool) error { return nil }
func (f *fakeRemote) Rename(ctx context.Context, oldPath, newPath string) error     { return nil }
func (f *fakeRemote) Delete(ctx context.Context, path string) error                 { return nil }

var _ remote.Store = (*fakeRemote)(nil)

func newTestCache(t *testing.T, rem *fakeRemote) *Cache {
	t.Helper()
	root := t.TempDir()
	store, err := sqlitestore.Open(filepath.Join(root, "metadata.db"))
	if err != nil {
		t.Fatalf("open metadata store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := Config{Root: root, PartBytes: 64 << 10, BlockBytes: 4 << 10}
	return New(cfg, store, metadata.NewBitmaps(root), rem)
}

func TestColdRead(t *testing.T) {
	ctx := context.Background()
	rem := newFakeRemote()
	rem.data["/a.txt"] = bytes.Repeat([]byte{'A'}, 4096)

	c := newTestCache(t, rem)
	if err := c.Open(ctx, "/a.txt"); err != nil {
		t.Fatalf("open: %v", err)
	}

	dest := make([]byte, 4096)
	n, err := c.ReadAt(ctx, "/a.txt", 0, dest)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 4096 {
		t.Fatalf("n = %d, want 4096", n)
	}
	if !bytes.Equal(dest, bytes.Repeat([]byte{'A'}, 4096)) {
		t.Fatalf("unexpected content")
	}

	row, ok, err := sqliteGet(c)
	if err != nil || !ok {
		t.Fatalf("get row: %v ok=%v", err, ok)
	}
	if row.Dirty {
		t.Fatalf("row should not be dirty after a cold read")
	}
}

func TestWriteThenRead(t *testing.T) {
	ctx := context.Background()
	rem := newFakeRemote()
	c := newTestCache(t, rem)

	n, err := c.WriteAt(ctx, "/b.txt", 0, []byte("hello"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != 5 {
		t.Fatalf("n = %d, want 5", n)
	}

	dest := make([]byte, 5)
	if _, err := c.ReadAt(ctx, "/b.txt", 0, dest); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(dest) != "hello" {
		t.Fatalf("dest = %q, want hello", dest)
	}

	row, ok, err := sqliteGetPath(c, "/b.txt")
	if err != nil || !ok {
		t.Fatalf("get row: %v ok=%v", err, ok)
	}
	if !row.Dirty {
		t.Fatalf("row should be dirty after a write")
	}
	if row.Size != 5 {
		t.Fatalf("size = %d, want 5", row.Size)
	}
	if len(rem.fetch) != 0 {
		t.Fatalf("expected no remote fetch for a brand-new file, got %d", len(rem.fetch))
	}
	if rem.flushN != 0 {
		t.Fatalf("expected no remote flush before writeback runs")
	}
}

func TestPartialBlockRMW(t *testing.T) {
	ctx := context.Background()
	rem := newFakeRemote()
	remoteContent := bytes.Repeat([]byte{'R'}, 8192)
	rem.data["/c.txt"] = append([]byte(nil), remoteContent...)

	c := newTestCache(t, rem)
	if err := c.Open(ctx, "/c.txt"); err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := c.WriteAt(ctx, "/c.txt", 100, []byte("XYZ")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(rem.fetch) == 0 {
		t.Fatalf("expected a read-modify-write fetch before overlay")
	}

	dest := make([]byte, 8192)
	if _, err := c.ReadAt(ctx, "/c.txt", 0, dest); err != nil {
		t.Fatalf("read: %v", err)
	}

	want := append([]byte(nil), remoteContent...)
	copy(want[100:103], "XYZ")
	if !bytes.Equal(dest, want) {
		t.Fatalf("readback does not match expected remote content with overlay")
	}
}

func TestRenamePreservesDirty(t *testing.T) {
	ctx := context.Background()
	rem := newFakeRemote()
	c := newTestCache(t, rem)

	if _, err := c.WriteAt(ctx, "/d.txt", 0, []byte("data")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := c.Rename(ctx, "/d.txt", "/d2.txt"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	if _, ok, err := sqliteGetPath(c, "/d.txt"); err != nil || ok {
		t.Fatalf("old path should be gone: ok=%v err=%v", ok, err)
	}

	dest := make([]byte, 4)
	if _, err := c.ReadAt(ctx, "/d2.txt", 0, dest); err != nil {
		t.Fatalf("read new path: %v", err)
	}
	if string(dest) != "data" {
		t.Fatalf("dest = %q, want data", dest)
	}
	if len(rem.fetch) != 0 {
		t.Fatalf("rename of a fully-local dirty object should not need a remote fetch")
	}

	row, ok, err := sqliteGetPath(c, "/d2.txt")
	if err != nil || !ok {
		t.Fatalf("get new row: %v ok=%v", err, ok)
	}
	if !row.Dirty {
		t.Fatalf("dirty state should carry over rename")
	}
}

func sqliteGet(c *Cache) (metadata.Row, bool, error) {
	return sqliteGetPath(c, "/a.txt")
}

func sqliteGetPath(c *Cache, path string) (metadata.Row, bool, error) {
	return c.meta.Get(path)
}
