package lifecycle

import (
	"context"
	"os"
	"sort"

	"github.com/nimbusfs/nimbusfs/internal/logger"
	"github.com/nimbusfs/nimbusfs/pkg/layout"
	"github.com/nimbusfs/nimbusfs/pkg/metadata"
)

// EvictOnce runs one eviction pass, per spec §4.E: triggered when total
// on-disk part bytes exceed CapacityBytes, it evicts clean objects in
// ascending last-accessed order until total bytes drop below
// CapacityBytes*0.9 (hysteresis). Dirty objects are never evicted; if the
// dirty set alone exceeds capacity, it logs pressure and stops.
func (m *Manager) EvictOnce(ctx context.Context) {
	total, err := m.diskUsage()
	if err != nil {
		logger.ErrorCtx(ctx, "eviction: measure disk usage failed", logger.Err(err))
		return
	}
	m.metrics.SetCacheBytes(total)
	if total <= m.cfg.CapacityBytes {
		return
	}

	entries, err := m.meta.AllEntries()
	if err != nil {
		logger.ErrorCtx(ctx, "eviction: list entries failed", logger.Err(err))
		return
	}

	candidates := make([]metadata.Row, 0, len(entries))
	for _, row := range entries {
		if !row.Dirty && !row.IsDir() && row.LocalPath != "" {
			candidates = append(candidates, row)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].LastAccessed < candidates[j].LastAccessed })

	target := int64(float64(m.cfg.CapacityBytes) * 0.9)
	evicted := 0
	var freedBytes int64

	for _, row := range candidates {
		if total <= target {
			break
		}
		hashHex := layout.HashPath(row.Path)
		freed := m.removeRowParts(hashHex, row)
		total -= freed
		freedBytes += freed
		evicted++
		m.metrics.RecordEviction("capacity")

		row.LocalPath = ""
		if err := m.meta.Put(row); err != nil {
			logger.ErrorCtx(ctx, "eviction: failed to clear local_path", logger.Path(row.Path), logger.Err(err))
			continue
		}
		m.bitmaps.ForgetObject(hashHex)
	}

	if total > target {
		logger.WarnCtx(ctx, "eviction: dirty set alone exceeds capacity, stopping",
			logger.CacheSize(uint64(total)), logger.CacheCapacity(uint64(m.cfg.CapacityBytes)))
	}

	m.metrics.SetCacheBytes(total)
	logger.InfoCtx(ctx, "eviction pass complete", logger.Evicted(evicted), logger.CacheSize(uint64(total)))
}

// removeRowParts deletes every materialized part and bitmap file of row,
// returning the number of bytes freed.
func (m *Manager) removeRowParts(hashHex string, row metadata.Row) int64 {
	lastPart := lastPartIndexFor(row.Size, m.cfg.PartBytes)
	var freed int64
	for idx := int64(0); idx <= lastPart; idx++ {
		dataPath := layout.DataPath(m.cfg.Root, hashHex, idx)
		if fi, err := os.Stat(dataPath); err == nil {
			freed += fi.Size()
		}
		_ = os.Remove(dataPath)
		_ = os.Remove(layout.BitmapPath(m.cfg.Root, hashHex, idx))
	}
	return freed
}

// diskUsage sums the on-disk size of every materialized part across all
// known objects.
func (m *Manager) diskUsage() (int64, error) {
	entries, err := m.meta.AllEntries()
	if err != nil {
		return 0, err
	}

	var total int64
	for _, row := range entries {
		if row.IsDir() || row.LocalPath == "" {
			continue
		}
		hashHex := layout.HashPath(row.Path)
		lastPart := lastPartIndexFor(row.Size, m.cfg.PartBytes)
		for idx := int64(0); idx <= lastPart; idx++ {
			if fi, err := os.Stat(layout.DataPath(m.cfg.Root, hashHex, idx)); err == nil {
				total += fi.Size()
			}
		}
	}
	return total, nil
}
