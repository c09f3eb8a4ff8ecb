package lifecycle

import (
	"context"
	"testing"
)

func TestStatsSeparatesDirtyFromClean(t *testing.T) {
	ctx := context.Background()
	rem := newFakeRemote()
	m, cfg, bitmaps := newTestManager(t, rem, 10<<20)

	putObject(t, m, bitmaps, "/clean.bin", 100, false, 1)
	putObject(t, m, bitmaps, "/dirty.bin", 200, true, 2)

	dirty, clean, capacity, lastWriteback := m.Stats()
	if dirty != 200 {
		t.Errorf("dirtyBytes = %d, want 200", dirty)
	}
	if clean != 100 {
		t.Errorf("cleanBytes = %d, want 100", clean)
	}
	if capacity != cfg.CapacityBytes {
		t.Errorf("capacityBytes = %d, want %d", capacity, cfg.CapacityBytes)
	}
	if !lastWriteback.IsZero() {
		t.Errorf("lastWriteback should be zero before any writeback pass, got %v", lastWriteback)
	}

	m.WritebackOnce(ctx)

	_, _, _, lastWriteback = m.Stats()
	if lastWriteback.IsZero() {
		t.Errorf("lastWriteback should be set after WritebackOnce")
	}
}
