// Package remote defines the Fetcher/Flusher interface the block cache
// and lifecycle manager use to talk to the backing object store (component
// D), plus the scheme-based constructor that selects a concrete backend.
package remote

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Run is a contiguous dirty byte range queued for flush: spec §4.D's
// (offset, bytes) pair.
type Run struct {
	Offset int64
	Bytes  []byte
}

// Info is the remote stat-equivalent result of spec §6's /api/info/{p}.
type Info struct {
	Size      int64
	Timestamp int64
	IsDir     bool
}

// Store is the Remote Fetcher/Flusher of spec §4.D.
type Store interface {
	// Stat returns remote metadata for path.
	Stat(ctx context.Context, path string) (Info, error)

	// List returns the names of path's immediate remote children.
	List(ctx context.Context, path string) ([]string, error)

	// Fetch issues a ranged GET for [offset, offset+length) and returns
	// exactly length bytes or an error. Transient errors (timeout, 5xx)
	// are retried internally with exponential backoff before giving up.
	Fetch(ctx context.Context, path string, offset, length int64) ([]byte, error)

	// Flush issues a PUT for every run. Success iff all runs succeed.
	Flush(ctx context.Context, path string, runs []Run) error

	// Create creates an empty file or directory remotely.
	Create(ctx context.Context, path string, directory bool) error

	// Rename renames oldPath to newPath remotely.
	Rename(ctx context.Context, oldPath, newPath string) error

	// Delete removes path remotely (unlink or rmdir).
	Delete(ctx context.Context, path string) error
}

// RetryPolicy is spec §4.D's exact fetch/flush retry schedule.
type RetryPolicy struct {
	BaseDelay  time.Duration
	Factor     float64
	MaxDelay   time.Duration
	MaxRetries int
}

// DefaultRetryPolicy matches spec §4.D: 100ms base, factor 2, 5s cap, 5
// attempts (the first try plus 4 retries).
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:  100 * time.Millisecond,
		Factor:     2,
		MaxDelay:   5 * time.Second,
		MaxRetries: 4,
	}
}

// Timeouts is spec §5's per-request deadlines.
type Timeouts struct {
	Get time.Duration
	Put time.Duration
}

// DefaultTimeouts matches spec §5: 30s GET, 60s PUT.
func DefaultTimeouts() Timeouts {
	return Timeouts{Get: 30 * time.Second, Put: 60 * time.Second}
}

// Options configures a Store built by Open.
type Options struct {
	Retry    RetryPolicy
	Timeouts Timeouts
}

// DefaultOptions returns the spec-mandated retry policy and timeouts.
func DefaultOptions() Options {
	return Options{Retry: DefaultRetryPolicy(), Timeouts: DefaultTimeouts()}
}

// Open builds a Store from rawURL, dispatching on scheme: "http"/"https"
// for the reference HTTP API of spec §6, "s3" for the alternate
// S3-compatible backend. This scheme dispatch is the supplemented feature
// of SPEC_FULL.md §4 letting remote_base_url point at either backend.
func Open(ctx context.Context, rawURL string, opts Options) (Store, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("remote: invalid remote_base_url %q: %w", rawURL, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return newHTTPStoreFromURL(rawURL, opts), nil
	case "s3":
		return newS3StoreFromURL(ctx, u, opts)
	default:
		return nil, fmt.Errorf("remote: unsupported scheme %q in %q", u.Scheme, rawURL)
	}
}
