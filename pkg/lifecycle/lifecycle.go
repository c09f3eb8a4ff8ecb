// Package lifecycle implements the eviction and writeback manager
// (component E): LRU eviction of clean objects under a capacity
// ceiling, and periodic writeback of dirty objects to the remote store
// under the shadow-bitmap rule of spec §4.E.
package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimbusfs/nimbusfs/pkg/metadata"
	"github.com/nimbusfs/nimbusfs/pkg/metrics"
	"github.com/nimbusfs/nimbusfs/pkg/remote"
)

// Config is the eviction/writeback policy, taken directly from the
// configuration options.
type Config struct {
	Root           string
	PartBytes      int64
	BlockBytes     int64
	CapacityBytes  int64
	FlushInterval  time.Duration
	MergeGapBlocks int64
}

// DefaultConfig returns spec §6's defaults: 10 GiB capacity, 30s
// writeback period, 4-block merge gap.
func DefaultConfig(root string) Config {
	return Config{
		Root:           root,
		PartBytes:      16 << 20,
		BlockBytes:     64 << 10,
		CapacityBytes:  10 << 30,
		FlushInterval:  30 * time.Second,
		MergeGapBlocks: 4,
	}
}

// Manager runs the two cooperative background activities of spec §4.E.
type Manager struct {
	cfg     Config
	meta    metadata.Store
	bitmaps *metadata.Bitmaps
	remote  remote.Store

	flushMu    sync.Mutex
	flushLocks map[string]*sync.Mutex

	metrics         *metrics.Collector
	lastWritebackAt atomic.Int64
}

// New builds a Manager over the given metadata store, bitmap map, and
// remote backend.
func New(cfg Config, meta metadata.Store, bitmaps *metadata.Bitmaps, remote remote.Store) *Manager {
	return &Manager{
		cfg:        cfg,
		meta:       meta,
		bitmaps:    bitmaps,
		remote:     remote,
		flushLocks: make(map[string]*sync.Mutex),
	}
}

// SetMetrics attaches a metrics collector; nil disables instrumentation.
func (m *Manager) SetMetrics(c *metrics.Collector) {
	m.metrics = c
}

// lockFor returns the per-object advisory flush lock for path, per spec
// §5's "per-object flush-lock" concurrency rule, creating it on first use.
func (m *Manager) lockFor(path string) *sync.Mutex {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()
	l, ok := m.flushLocks[path]
	if !ok {
		l = &sync.Mutex{}
		m.flushLocks[path] = l
	}
	return l
}

// Run drives eviction and writeback on their own tickers until ctx is
// cancelled. Both activities are cooperative: a foreground operation
// never waits on this loop.
func (m *Manager) Run(ctx context.Context) {
	writeback := time.NewTicker(m.cfg.FlushInterval)
	defer writeback.Stop()

	eviction := time.NewTicker(m.cfg.FlushInterval)
	defer eviction.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-writeback.C:
			m.WritebackOnce(ctx)
		case <-eviction.C:
			m.EvictOnce(ctx)
		}
	}
}
