// Package metrics instruments the block cache, remote store, and
// writeback pipeline with Prometheus counters, gauges, and histograms,
// the way the teacher's pkg/metrics/prometheus instruments its own
// write cache and S3 content store.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric this engine emits. A nil *Collector is
// valid everywhere its methods are called — every method is a no-op on
// a nil receiver, so metrics can be wired in or left out at zero cost.
type Collector struct {
	reg *prometheus.Registry

	readOperations  *prometheus.CounterVec // status: hit, miss
	readBytes       *prometheus.HistogramVec
	readDuration    *prometheus.HistogramVec
	remoteFetches   *prometheus.CounterVec // status: ok, error
	remoteFetchDur  prometheus.Histogram
	remoteBytesIn   prometheus.Counter
	flushOperations *prometheus.CounterVec // status: ok, error
	flushDuration   prometheus.Histogram
	flushBytes      prometheus.Counter
	evictions       *prometheus.CounterVec // reason: capacity, ...
	dirtyObjects    prometheus.Gauge
	cacheBytes      prometheus.Gauge
}

// New builds a Collector registered against a fresh Prometheus registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	return &Collector{
		reg: reg,
		readOperations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nimbusfs_cache_read_operations_total",
				Help: "Total block cache read operations by outcome.",
			},
			[]string{"status"},
		),
		readBytes: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nimbusfs_cache_read_bytes",
				Help:    "Distribution of bytes served per read.",
				Buckets: []float64{4096, 32768, 131072, 524288, 1048576, 4194304, 16777216},
			},
			[]string{"status"},
		),
		readDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nimbusfs_cache_read_duration_seconds",
				Help:    "Duration of block cache read operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		remoteFetches: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nimbusfs_remote_fetch_total",
				Help: "Total remote fetch attempts by outcome.",
			},
			[]string{"status"},
		),
		remoteFetchDur: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nimbusfs_remote_fetch_duration_seconds",
				Help:    "Duration of remote fetch operations.",
				Buckets: prometheus.DefBuckets,
			},
		),
		remoteBytesIn: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "nimbusfs_remote_fetch_bytes_total",
				Help: "Total bytes fetched from the remote store.",
			},
		),
		flushOperations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nimbusfs_writeback_flush_total",
				Help: "Total writeback flush attempts by outcome.",
			},
			[]string{"status"},
		),
		flushDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nimbusfs_writeback_flush_duration_seconds",
				Help:    "Duration of writeback flush operations.",
				Buckets: prometheus.DefBuckets,
			},
		),
		flushBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "nimbusfs_writeback_flush_bytes_total",
				Help: "Total bytes flushed to the remote store.",
			},
		),
		evictions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nimbusfs_cache_evictions_total",
				Help: "Total number of evicted parts by reason.",
			},
			[]string{"reason"},
		),
		dirtyObjects: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "nimbusfs_dirty_objects",
				Help: "Current number of objects with unflushed writes.",
			},
		),
		cacheBytes: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "nimbusfs_cache_bytes",
				Help: "Current total bytes occupied by local part files.",
			},
		),
	}
}

// Handler returns the Prometheus scrape handler for this collector's
// registry, or nil if c is nil.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return nil
	}
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// ObserveRead records a block-cache read, hit or miss, with its size
// and duration.
func (c *Collector) ObserveRead(hit bool, bytes int64, duration time.Duration) {
	if c == nil {
		return
	}
	status := "miss"
	if hit {
		status = "hit"
	}
	c.readOperations.WithLabelValues(status).Inc()
	c.readBytes.WithLabelValues(status).Observe(float64(bytes))
	c.readDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveRemoteFetch records a remote-store fetch attempt.
func (c *Collector) ObserveRemoteFetch(bytes int64, duration time.Duration, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.remoteFetches.WithLabelValues(status).Inc()
	c.remoteFetchDur.Observe(duration.Seconds())
	if err == nil && bytes > 0 {
		c.remoteBytesIn.Add(float64(bytes))
	}
}

// ObserveFlush records a writeback flush attempt.
func (c *Collector) ObserveFlush(bytes int64, duration time.Duration, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.flushOperations.WithLabelValues(status).Inc()
	c.flushDuration.Observe(duration.Seconds())
	if err == nil && bytes > 0 {
		c.flushBytes.Add(float64(bytes))
	}
}

// RecordEviction records an evicted part, tagged with the reason
// eviction chose it (currently always "capacity").
func (c *Collector) RecordEviction(reason string) {
	if c == nil {
		return
	}
	c.evictions.WithLabelValues(reason).Inc()
}

// SetDirtyObjects sets the current dirty-object gauge.
func (c *Collector) SetDirtyObjects(count int) {
	if c == nil {
		return
	}
	c.dirtyObjects.Set(float64(count))
}

// SetCacheBytes sets the current total-local-bytes gauge.
func (c *Collector) SetCacheBytes(bytes int64) {
	if c == nil {
		return
	}
	c.cacheBytes.Set(float64(bytes))
}
