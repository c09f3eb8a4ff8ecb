package sqlitestore

import (
	"path/filepath"
	"testing"

	"github.com/nimbusfs/nimbusfs/pkg/metadata"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "metadata.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	want := metadata.Row{
		Path:         "/a.txt",
		LocalPath:    "/cache/data/aa/bb/aabb/part_00000000",
		Size:         1234,
		Timestamp:    1000,
		LastAccessed: 1000,
		Dirty:        true,
	}
	if err := s.Put(want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.Get("/a.txt")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.Get("/nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing row")
	}
}

func TestPutUpsert(t *testing.T) {
	s := openTestStore(t)
	s.Put(metadata.Row{Path: "/a.txt", Size: 1})
	s.Put(metadata.Row{Path: "/a.txt", Size: 2})

	got, _, _ := s.Get("/a.txt")
	if got.Size != 2 {
		t.Fatalf("expected upsert to overwrite, got size %d", got.Size)
	}
}

func TestUpdateAccessTimeMissingIsNoop(t *testing.T) {
	s := openTestStore(t)
	if err := s.UpdateAccessTime("/missing", 123); err != nil {
		t.Fatalf("expected no error for missing path, got %v", err)
	}
}

func TestMarkDirtyAndRemove(t *testing.T) {
	s := openTestStore(t)
	s.Put(metadata.Row{Path: "/b.txt"})

	if err := s.MarkDirty("/b.txt", true); err != nil {
		t.Fatalf("MarkDirty: %v", err)
	}
	got, _, _ := s.Get("/b.txt")
	if !got.Dirty {
		t.Fatal("expected dirty=true")
	}

	if err := s.Remove("/b.txt"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	_, ok, _ := s.Get("/b.txt")
	if ok {
		t.Fatal("expected row removed")
	}
}

func TestAllEntries(t *testing.T) {
	s := openTestStore(t)
	s.Put(metadata.Row{Path: "/a"})
	s.Put(metadata.Row{Path: "/b"})

	entries, err := s.AllEntries()
	if err != nil {
		t.Fatalf("AllEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}
