package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilCollectorMethodsAreNoOps(t *testing.T) {
	var c *Collector

	if c.Handler() != nil {
		t.Error("Handler() on nil collector should be nil")
	}
	// None of these should panic.
	c.ObserveRead(true, 4096, time.Millisecond)
	c.ObserveRemoteFetch(4096, time.Millisecond, nil)
	c.ObserveFlush(4096, time.Millisecond, errors.New("boom"))
	c.RecordEviction("capacity")
	c.SetDirtyObjects(3)
	c.SetCacheBytes(1024)
}

func TestCollectorExportsMetrics(t *testing.T) {
	c := New()
	c.ObserveRead(true, 4096, time.Millisecond)
	c.ObserveRead(false, 0, time.Millisecond)
	c.ObserveRemoteFetch(8192, 5*time.Millisecond, nil)
	c.ObserveFlush(2048, 2*time.Millisecond, nil)
	c.RecordEviction("capacity")
	c.SetDirtyObjects(2)
	c.SetCacheBytes(65536)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("scrape handler status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"nimbusfs_cache_read_operations_total",
		"nimbusfs_remote_fetch_bytes_total",
		"nimbusfs_writeback_flush_bytes_total",
		"nimbusfs_cache_evictions_total",
		"nimbusfs_dirty_objects 2",
		"nimbusfs_cache_bytes 65536",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}
