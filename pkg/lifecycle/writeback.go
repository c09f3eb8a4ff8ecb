package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nimbusfs/nimbusfs/internal/logger"
	"github.com/nimbusfs/nimbusfs/pkg/layout"
)

// WritebackOnce scans every dirty row once and flushes each, per spec
// §4.E's periodic writeback. A single object's flush failure does not
// abort the pass; it is retried at the next tick.
func (m *Manager) WritebackOnce(ctx context.Context) {
	entries, err := m.meta.AllEntries()
	if err != nil {
		logger.ErrorCtx(ctx, "writeback: list entries failed", logger.Err(err))
		return
	}

	dirtyCount := 0
	for _, row := range entries {
		if !row.Dirty || row.IsDir() {
			continue
		}
		dirtyCount++
		if err := m.FlushPath(ctx, row.Path); err != nil {
			logger.WarnCtx(ctx, "writeback: flush failed, will retry next tick",
				logger.Path(row.Path), logger.Err(err))
		}
	}
	m.metrics.SetDirtyObjects(dirtyCount)
	m.lastWritebackAt.Store(time.Now().Unix())
}

// FlushPath immediately flushes path's dirty blocks, blocking until it
// completes. Used both by the periodic writeback scan and by the
// dispatcher's fsync/flush mapping (spec §4.F).
//
// State machine: taking the per-object flush lock is the DIRTY->FLUSHING
// transition; concurrent writes during the flush mark bits into the live
// bitmap while this flush works from a shadow snapshot taken per part at
// loop entry (the shadow-bitmap rule of spec §4.E). Each part is flushed
// and its shadow cleared independently, so a failure partway through
// still leaves already-flushed parts clean; the remaining parts stay
// dirty and are retried at the next tick.
func (m *Manager) FlushPath(ctx context.Context, path string) error {
	lock := m.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	row, ok, err := m.meta.Get(path)
	if err != nil {
		return err
	}
	if !ok || !row.Dirty {
		return nil
	}

	hashHex := layout.HashPath(path)
	runID := uuid.New().String()
	lastPart := lastPartIndexFor(row.Size, m.cfg.PartBytes)

	flushStart := time.Now()
	var flushedBytes int64
	var flushErr error
	defer func() {
		m.metrics.ObserveFlush(flushedBytes, time.Since(flushStart), flushErr)
	}()

	anyFlushed := false
	for idx := int64(0); idx <= lastPart; idx++ {
		// A freshly constructed Bitmaps (e.g. after a process restart)
		// holds nothing in memory; load the persisted bitmap first so a
		// crash-recovery writeback sees the same dirty bits the crashed
		// process had written to disk, rather than an empty in-memory
		// map that would let FlushPath clear Dirty without ever flushing.
		if err := m.bitmaps.LoadBitmap(hashHex, idx); err != nil {
			flushErr = err
			return err
		}

		indices, shadow := m.bitmaps.SnapshotDirtyIndices(hashHex, idx)
		if len(indices) == 0 {
			continue
		}

		dataPath := layout.DataPath(m.cfg.Root, hashHex, idx)
		ranges := coalesceBlocks(indices, m.cfg.BlockBytes, m.cfg.MergeGapBlocks)
		runs, err := readRuns(dataPath, idx*m.cfg.PartBytes, ranges, m.cfg.BlockBytes)
		if err != nil {
			flushErr = err
			return err
		}

		logger.DebugCtx(ctx, "flush part", logger.Path(path), logger.HashHex(hashHex),
			logger.PartIndex(idx), logger.Count(len(runs)), logger.FlushRunID(runID))

		if err := m.remote.Flush(ctx, path, runs); err != nil {
			logger.WarnCtx(ctx, "flush part failed", logger.Path(path), logger.PartIndex(idx),
				logger.FlushRunID(runID), logger.Err(err))
			flushErr = err
			return err
		}

		for _, r := range runs {
			flushedBytes += int64(len(r.Bytes))
		}
		m.bitmaps.ClearFlushed(hashHex, idx, shadow)
		anyFlushed = true
	}

	if anyFlushed {
		if _, err := m.bitmaps.FlushBitmaps(hashHex); err != nil {
			flushErr = err
			return err
		}
	}

	row.Dirty = false
	row.LastAccessed = time.Now().Unix()
	return m.meta.Put(row)
}

func lastPartIndexFor(size, partBytes int64) int64 {
	if size <= 0 {
		return -1
	}
	return (size - 1) / partBytes
}
