package lifecycle

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nimbusfs/nimbusfs/pkg/layout"
	"github.com/nimbusfs/nimbusfs/pkg/metadata"
	"github.com/nimbusfs/nimbusfs/pkg/metadata/sqlitestore"
	"github.com/nimbusfs/nimbusfs/pkg/remote"
)

// fakeRemote is a hand-rolled in-memory remote.Store recording flush
// calls, matching the style of the block cache's own test fake.
type fakeRemote struct {
	mu        sync.Mutex
	flushedAt map[string][]remote.Run
	flushN    int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{flushedAt: make(map[string][]remote.Run)}
}

func (f *fakeRemote) Stat(ctx context.Context, path string) (remote.Info, error) { return remote.Info{}, nil }
func (f *fakeRemote) List(ctx context.Context, path string) ([]string, error)   { return nil, nil }
func (f *fakeRemote) Fetch(ctx context.Context, path string, offset, length int64) ([]byte, error) {
	return make([]byte, length), nil
}
func (f *fakeRemote) Flush(ctx context.Context, path string, runs []remote.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushN++
	f.flushedAt[path] = append(f.flushedAt[path], runs...)
	return nil
}
func (f *fakeRemote) Create(ctx context.Context, path string, directory bool) error { return nil }
func (f *fakeRemote) Rename(ctx context.Context, oldPath, newPath string) error     { return nil }
func (f *fakeRemote) Delete(ctx context.Context, path string) error                 { return nil }

var _ remote.Store = (*fakeRemote)(nil)

func newTestManager(t *testing.T, rem *fakeRemote, capacityBytes int64) (*Manager, Config, *metadata.Bitmaps) {
	t.Helper()
	root := t.TempDir()
	store, err := sqlitestore.Open(filepath.Join(root, "metadata.db"))
	if err != nil {
		t.Fatalf("open metadata store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := Config{
		Root:           root,
		PartBytes:      2 << 20,
		BlockBytes:     64 << 10,
		CapacityBytes:  capacityBytes,
		FlushInterval:  30 * time.Second,
		MergeGapBlocks: 4,
	}
	bitmaps := metadata.NewBitmaps(root)
	return New(cfg, store, bitmaps, rem), cfg, bitmaps
}

// putObject materializes a single-part object of size bytes on disk and
// registers its metadata row directly, bypassing the block cache so the
// eviction/writeback tests can set up precise disk-usage fixtures.
func putObject(t *testing.T, m *Manager, bitmaps *metadata.Bitmaps, path string, size int64, dirty bool, lastAccessed int64) {
	t.Helper()
	hashHex := layout.HashPath(path)
	dataPath := layout.DataPath(m.cfg.Root, hashHex, 0)
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(dataPath, bytes.Repeat([]byte{'x'}, int(size)), 0o644); err != nil {
		t.Fatalf("write part: %v", err)
	}

	row := metadata.Row{
		Path:         path,
		LocalPath:    dataPath,
		Size:         size,
		Timestamp:    lastAccessed,
		LastAccessed: lastAccessed,
		Dirty:        dirty,
	}
	if err := m.meta.Put(row); err != nil {
		t.Fatalf("put row: %v", err)
	}
	if dirty {
		bitmaps.MarkDirtyBlock(hashHex, 0, 0)
	}
}

func TestEvictionPreservesDirty(t *testing.T) {
	ctx := context.Background()
	rem := newFakeRemote()
	m, _, bitmaps := newTestManager(t, rem, 1<<20) // 1 MiB capacity

	putObject(t, m, bitmaps, "/clean-old.bin", 512<<10, false, 1)
	putObject(t, m, bitmaps, "/clean-new.bin", 512<<10, false, 2)
	putObject(t, m, bitmaps, "/dirty.bin", 512<<10, true, 3)

	m.EvictOnce(ctx)

	total, err := m.diskUsage()
	if err != nil {
		t.Fatalf("disk usage: %v", err)
	}
	target := int64(float64(1<<20) * 0.9)
	if total > target {
		t.Fatalf("on-disk bytes after eviction = %d, want <= %d", total, target)
	}

	row, ok, err := m.meta.Get("/dirty.bin")
	if err != nil || !ok {
		t.Fatalf("dirty row missing: %v ok=%v", err, ok)
	}
	if row.LocalPath == "" {
		t.Fatalf("dirty object must not be evicted")
	}
	if _, err := os.Stat(row.LocalPath); err != nil {
		t.Fatalf("dirty object's part file must survive eviction: %v", err)
	}
}

func TestWritebackFlushesAndClearsDirty(t *testing.T) {
	ctx := context.Background()
	rem := newFakeRemote()
	m, _, bitmaps := newTestManager(t, rem, 10<<20)

	putObject(t, m, bitmaps, "/b.txt", 5, true, 1)

	if err := m.FlushPath(ctx, "/b.txt"); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if rem.flushN != 1 {
		t.Fatalf("flushN = %d, want 1", rem.flushN)
	}

	row, ok, err := m.meta.Get("/b.txt")
	if err != nil || !ok {
		t.Fatalf("get row: %v ok=%v", err, ok)
	}
	if row.Dirty {
		t.Fatalf("row should be clean after a successful flush")
	}

	// Idempotence: a second flush of an already-clean object issues no
	// remote PUTs.
	if err := m.FlushPath(ctx, "/b.txt"); err != nil {
		t.Fatalf("second flush: %v", err)
	}
	if rem.flushN != 1 {
		t.Fatalf("flushN after redundant flush = %d, want 1", rem.flushN)
	}
}
