package metadata

import "testing"

func TestMarkDirtyBlockAndIsBlockDirty(t *testing.T) {
	b := NewBitmaps(t.TempDir())
	b.MarkDirtyBlock("hh", 0, 3)

	if !b.IsBlockDirty("hh", 0, 3) {
		t.Fatal("expected block 3 dirty")
	}
	if b.IsBlockDirty("hh", 0, 4) {
		t.Fatal("expected block 4 clean")
	}
	if !b.AnyDirty("hh") {
		t.Fatal("expected object dirty")
	}
}

func TestFlushLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	b := NewBitmaps(root)

	b.MarkDirtyBlock("hh", 0, 0)
	b.MarkDirtyBlock("hh", 0, 7)
	b.MarkDirtyBlock("hh", 0, 15)

	ok, err := b.FlushBitmaps("hh")
	if err != nil || !ok {
		t.Fatalf("FlushBitmaps: ok=%v err=%v", ok, err)
	}

	want := b.DirtyBlockIndices("hh", 0)

	b2 := NewBitmaps(root)
	if err := b2.LoadBitmap("hh", 0); err != nil {
		t.Fatalf("LoadBitmap: %v", err)
	}
	got := b2.DirtyBlockIndices("hh", 0)

	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestLoadBitmapMissingIsNotError(t *testing.T) {
	b := NewBitmaps(t.TempDir())
	if err := b.LoadBitmap("nonexistent", 0); err != nil {
		t.Fatalf("expected no error for missing bitmap, got %v", err)
	}
	if b.AnyDirty("nonexistent") {
		t.Fatal("expected no dirty bits for missing bitmap")
	}
}

func TestShadowBitmapRule(t *testing.T) {
	b := NewBitmaps(t.TempDir())
	b.MarkDirtyBlock("hh", 0, 1)
	b.MarkDirtyBlock("hh", 0, 2)

	shadow := b.Snapshot("hh", 0)

	// Concurrent write during flush dirties a new block.
	b.MarkDirtyBlock("hh", 0, 5)

	b.ClearFlushed("hh", 0, shadow)

	if b.IsBlockDirty("hh", 0, 1) || b.IsBlockDirty("hh", 0, 2) {
		t.Fatal("expected flushed bits cleared")
	}
	if !b.IsBlockDirty("hh", 0, 5) {
		t.Fatal("expected concurrently-dirtied bit to survive the clear")
	}
}

func TestForgetObject(t *testing.T) {
	b := NewBitmaps(t.TempDir())
	b.MarkDirtyBlock("hh", 0, 1)
	b.MarkDirtyBlock("hh", 1, 1)
	b.ForgetObject("hh")

	if b.AnyDirty("hh") {
		t.Fatal("expected no dirty bits after ForgetObject")
	}
}
