package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey struct{}

var opContextKey = contextKey{}

// OpContext holds request-scoped fields for a single cache operation, the
// way a trace span carries fields down a call chain: Path/Operation at
// entry, HashHex/PartIndex once a specific part is known. The dispatch,
// block cache and remote packages do not create or attach one.
type OpContext struct {
	Path      string // logical path the operation targets
	Operation string // getattr, read, write, truncate, rename, unlink, ...
	HashHex   string // sha256 hex digest of Path, once known
	PartIndex int64  // part index, for part/block-scoped log lines (-1 if n/a)
	StartTime time.Time
}

// WithContext returns a new context carrying oc.
func WithContext(ctx context.Context, oc *OpContext) context.Context {
	return context.WithValue(ctx, opContextKey, oc)
}

// FromContext retrieves the OpContext from ctx, or nil if not present.
func FromContext(ctx context.Context) *OpContext {
	if ctx == nil {
		return nil
	}
	oc, _ := ctx.Value(opContextKey).(*OpContext)
	return oc
}

// NewOpContext starts an OpContext for op against path.
func NewOpContext(op, path string) *OpContext {
	return &OpContext{
		Path:      path,
		Operation: op,
		PartIndex: -1,
		StartTime: time.Now(),
	}
}

// Clone returns a copy of oc.
func (oc *OpContext) Clone() *OpContext {
	if oc == nil {
		return nil
	}
	clone := *oc
	return &clone
}

// WithHash returns a copy with HashHex set.
func (oc *OpContext) WithHash(hashHex string) *OpContext {
	clone := oc.Clone()
	if clone != nil {
		clone.HashHex = hashHex
	}
	return clone
}

// WithPart returns a copy with PartIndex set.
func (oc *OpContext) WithPart(partIndex int64) *OpContext {
	clone := oc.Clone()
	if clone != nil {
		clone.PartIndex = partIndex
	}
	return clone
}

// DurationMs returns the elapsed time since StartTime in milliseconds.
func (oc *OpContext) DurationMs() float64 {
	if oc == nil || oc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(oc.StartTime).Microseconds()) / 1000.0
}
