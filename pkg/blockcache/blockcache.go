// Package blockcache is the block cache, the core decision layer that
// services reads and writes by checking presence, fetching missing ranges
// from the remote store, and marking dirty blocks (component C of the
// cache engine).
package blockcache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nimbusfs/nimbusfs/pkg/metadata"
	"github.com/nimbusfs/nimbusfs/pkg/metrics"
	"github.com/nimbusfs/nimbusfs/pkg/remote"
)

// Config is the part/block geometry and cache root, taken directly from
// the configuration options.
type Config struct {
	Root       string
	PartBytes  int64
	BlockBytes int64
}

// DefaultConfig returns the default geometry: 16 MiB parts, 64 KiB blocks.
func DefaultConfig(root string) Config {
	return Config{Root: root, PartBytes: 16 << 20, BlockBytes: 64 << 10}
}

// Cache is the block cache. One Cache is shared by every foreground
// dispatcher call and by the eviction/writeback manager.
type Cache struct {
	cfg     Config
	meta    metadata.Store
	bitmaps *metadata.Bitmaps
	remote  remote.Store
	metrics *metrics.Collector
}

// New builds a Cache over the given metadata store, bitmap map, and
// remote backend.
func New(cfg Config, meta metadata.Store, bitmaps *metadata.Bitmaps, remote remote.Store) *Cache {
	return &Cache{cfg: cfg, meta: meta, bitmaps: bitmaps, remote: remote}
}

// SetMetrics attaches a metrics collector; nil disables instrumentation.
func (c *Cache) SetMetrics(m *metrics.Collector) {
	c.metrics = m
}

// lastPartIndex returns the index of the last part spanned by an object
// of the given size, or -1 if size is zero (no materialized parts).
func lastPartIndex(size, partBytes int64) int64 {
	if size <= 0 {
		return -1
	}
	return (size - 1) / partBytes
}

// blocksPerPart returns ceil(PartBytes / BlockBytes).
func (c *Cache) blocksPerPart() int64 {
	return (c.cfg.PartBytes + c.cfg.BlockBytes - 1) / c.cfg.BlockBytes
}

// partSpan returns the inclusive range of part indices covering
// [offset, offset+size).
func (c *Cache) partSpan(offset, size int64) (first, last int64) {
	if size <= 0 {
		return offset / c.cfg.PartBytes, offset / c.cfg.PartBytes
	}
	first = offset / c.cfg.PartBytes
	last = (offset + size - 1) / c.cfg.PartBytes
	return first, last
}

// partByteRange returns the [start, end) byte range, relative to the
// object, of the bytes in [offset, offset+size) that fall inside part
// partIdx.
func (c *Cache) partByteRange(partIdx, offset, size int64) (start, end int64) {
	partStart := partIdx * c.cfg.PartBytes
	partEnd := partStart + c.cfg.PartBytes
	reqEnd := offset + size

	start = offset
	if partStart > start {
		start = partStart
	}
	end = reqEnd
	if partEnd < end {
		end = partEnd
	}
	return start, end
}

// blockSpan returns the inclusive range of block indices, relative to a
// part, covering the part-relative byte range [start, end).
func (c *Cache) blockSpan(start, end int64) (first, last int64) {
	first = start / c.cfg.BlockBytes
	last = (end - 1) / c.cfg.BlockBytes
	return first, last
}

// blockByteRange returns the [start, end) byte range of blockIdx within
// its part.
func (c *Cache) blockByteRange(blockIdx int64) (start, end int64) {
	start = blockIdx * c.cfg.BlockBytes
	end = start + c.cfg.BlockBytes
	if end > c.cfg.PartBytes {
		end = c.cfg.PartBytes
	}
	return start, end
}

// partFileSize returns the on-disk size of a part file, or 0 if it does
// not exist yet.
func partFileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("blockcache: stat part %s: %w", path, err)
	}
	return fi.Size(), nil
}

// openPartForWrite opens (creating parents and the file as needed) a
// part file for positional read/write.
func openPartForWrite(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("blockcache: create part dir for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("blockcache: open part %s: %w", path, err)
	}
	return f, nil
}

// openPartForRead opens a part file read-only; a missing file is reported
// via the returned bool rather than an error.
func openPartForRead(path string) (*os.File, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("blockcache: open part %s: %w", path, err)
	}
	return f, true, nil
}

// run is a contiguous byte range, relative to the whole object, that must
// be fetched from remote before it can be read or overlaid.
type run struct {
	offset int64
	length int64
}

// coalesce merges a sorted, deduplicated list of missing block indices
// (relative to one part) into maximal contiguous byte runs, relative to
// the object, given the part's base offset.
func (c *Cache) coalesce(partBase int64, blocks []int64) []run {
	if len(blocks) == 0 {
		return nil
	}

	var runs []run
	runStart := blocks[0]
	runEnd := blocks[0] + 1

	flush := func() {
		start, _ := c.blockByteRange(runStart)
		_, end := c.blockByteRange(runEnd - 1)
		runs = append(runs, run{offset: partBase + start, length: end - start})
	}

	for i := 1; i < len(blocks); i++ {
		if blocks[i] == runEnd {
			runEnd = blocks[i] + 1
			continue
		}
		flush()
		runStart = blocks[i]
		runEnd = blocks[i] + 1
	}
	flush()
	return runs
}
