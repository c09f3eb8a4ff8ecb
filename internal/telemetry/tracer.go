package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for the dispatch, block-cache, and remote-store spans.
const (
	AttrOperation = "fs.operation" // dispatch operation name: lookup, read, write, ...
	AttrPath      = "fs.path"
	AttrOffset    = "fs.offset"
	AttrCount     = "fs.count"
	AttrSize      = "fs.size"

	AttrCacheHit    = "cache.hit"
	AttrCacheSource = "cache.source" // "clean", "dirty", "remote"

	AttrHashHex    = "content.hash"
	AttrPartIndex  = "content.part"
	AttrBlockIndex = "content.block"

	AttrRemoteScheme = "remote.scheme"
	AttrRemoteKey    = "remote.key"
)

// Span names for the dispatch and lifecycle pipelines.
const (
	SpanDispatchLookup  = "dispatch.lookup"
	SpanDispatchRead    = "dispatch.read"
	SpanDispatchWrite   = "dispatch.write"
	SpanDispatchCreate  = "dispatch.create"
	SpanDispatchUnlink  = "dispatch.unlink"
	SpanDispatchRename  = "dispatch.rename"
	SpanDispatchFlush   = "dispatch.flush"
	SpanCacheEviction   = "cache.evict"
	SpanWriteback       = "cache.writeback"
	SpanRemoteFetch     = "remote.fetch"
	SpanRemoteFlush     = "remote.flush"
)

// FSOperation returns an attribute for the dispatch operation name.
func FSOperation(op string) attribute.KeyValue { return attribute.String(AttrOperation, op) }

// FSPath returns an attribute for a logical path.
func FSPath(path string) attribute.KeyValue { return attribute.String(AttrPath, path) }

// FSOffset returns an attribute for a byte offset.
func FSOffset(offset int64) attribute.KeyValue { return attribute.Int64(AttrOffset, offset) }

// FSCount returns an attribute for a byte count.
func FSCount(count int) attribute.KeyValue { return attribute.Int(AttrCount, count) }

// FSSize returns an attribute for a file size.
func FSSize(size int64) attribute.KeyValue { return attribute.Int64(AttrSize, size) }

// CacheHit returns an attribute for a cache-hit indicator.
func CacheHit(hit bool) attribute.KeyValue { return attribute.Bool(AttrCacheHit, hit) }

// CacheSource returns an attribute naming which layer served a read.
func CacheSource(source string) attribute.KeyValue { return attribute.String(AttrCacheSource, source) }

// HashHex returns an attribute for a content-address hash.
func HashHex(hash string) attribute.KeyValue { return attribute.String(AttrHashHex, hash) }

// PartIndex returns an attribute for a part index.
func PartIndex(idx int) attribute.KeyValue { return attribute.Int(AttrPartIndex, idx) }

// BlockIndex returns an attribute for a block index.
func BlockIndex(idx int) attribute.KeyValue { return attribute.Int(AttrBlockIndex, idx) }

// RemoteScheme returns an attribute for the remote backend scheme (http, s3).
func RemoteScheme(scheme string) attribute.KeyValue { return attribute.String(AttrRemoteScheme, scheme) }

// RemoteKey returns an attribute for the remote object key.
func RemoteKey(key string) attribute.KeyValue { return attribute.String(AttrRemoteKey, key) }

// StartDispatchSpan starts a span for a FUSE dispatch operation.
func StartDispatchSpan(ctx context.Context, name, path string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{FSOperation(name), FSPath(path)}, attrs...)
	return StartSpan(ctx, "dispatch."+name, trace.WithAttributes(allAttrs...))
}

// StartCacheSpan starts a span for a block-cache operation.
func StartCacheSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "cache."+operation, trace.WithAttributes(attrs...))
}

// StartRemoteSpan starts a span for a remote-store operation.
func StartRemoteSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "remote."+operation, trace.WithAttributes(attrs...))
}
