package logger

import "log/slog"

// Structured logging keys used across the cache engine. Grouped by the part
// of the system they describe rather than by call site, so the same key
// always means the same thing in every log line.

// Path and object identity
const (
	KeyPath       = "path"
	KeyOldPath    = "old_path"
	KeyNewPath    = "new_path"
	KeyParentPath = "parent_path"
	KeyHashHex    = "hash_hex"
)

// Operation metadata
const (
	KeyOperation  = "op"
	KeySource     = "source"
	KeyDurationMs = "duration_ms"
	KeyErr        = "err"
	KeyErrorCode  = "error_code"
)

// File / part / block geometry
const (
	KeySize       = "size"
	KeyMode       = "mode"
	KeyOffset     = "offset"
	KeyCount      = "count"
	KeyPartIndex  = "part_index"
	KeyBlockIndex = "block_index"
	KeyBytesRead  = "bytes_read"
	KeyBytesWrite = "bytes_written"
	KeyEOF        = "eof"
	KeyDirty      = "dirty"
)

// Cache state
const (
	KeyCacheHit      = "cache_hit"
	KeyCacheState    = "cache_state"
	KeyCacheSize     = "cache_size_bytes"
	KeyCacheCapacity = "cache_capacity_bytes"
	KeyEvicted       = "evicted"
	KeyEntries       = "entries"
	KeyMaxEntries    = "max_entries"
)

// Remote fetch/flush
const (
	KeyRemoteURL  = "remote_url"
	KeyAttempt    = "attempt"
	KeyMaxRetries = "max_retries"
	KeyFlushRunID = "flush_run_id"
)

// Path attaches the logical path.
func Path(p string) slog.Attr { return slog.String(KeyPath, p) }

// OldPath attaches a rename's source path.
func OldPath(p string) slog.Attr { return slog.String(KeyOldPath, p) }

// NewPath attaches a rename's destination path.
func NewPath(p string) slog.Attr { return slog.String(KeyNewPath, p) }

// ParentPath attaches a directory's path for a child operation.
func ParentPath(p string) slog.Attr { return slog.String(KeyParentPath, p) }

// HashHex attaches the sha256 hex digest of a path.
func HashHex(h string) slog.Attr { return slog.String(KeyHashHex, h) }

// Operation attaches the dispatcher operation name.
func Operation(op string) slog.Attr { return slog.String(KeyOperation, op) }

// Source attaches the subsystem or backend a log line originates from.
func Source(s string) slog.Attr { return slog.String(KeySource, s) }

// DurationMs attaches an elapsed time in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err attaches an error's message.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyErr, "")
	}
	return slog.String(KeyErr, err.Error())
}

// ErrorCode attaches a StoreError code.
func ErrorCode(code string) slog.Attr { return slog.String(KeyErrorCode, code) }

// Size attaches an object or file size in bytes.
func Size(n int64) slog.Attr { return slog.Int64(KeySize, n) }

// Mode attaches a POSIX mode bitmask.
func Mode(m uint32) slog.Attr { return slog.Uint64(KeyMode, uint64(m)) }

// Offset attaches a byte offset into a file.
func Offset(off int64) slog.Attr { return slog.Int64(KeyOffset, off) }

// Count attaches a requested byte count.
func Count(n int) slog.Attr { return slog.Int(KeyCount, n) }

// PartIndex attaches a part index within an object.
func PartIndex(idx int64) slog.Attr { return slog.Int64(KeyPartIndex, idx) }

// BlockIndex attaches a block index within a part.
func BlockIndex(idx int64) slog.Attr { return slog.Int64(KeyBlockIndex, idx) }

// BytesRead attaches the number of bytes actually read.
func BytesRead(n int) slog.Attr { return slog.Int(KeyBytesRead, n) }

// BytesWritten attaches the number of bytes actually written.
func BytesWritten(n int) slog.Attr { return slog.Int(KeyBytesWrite, n) }

// EOF attaches whether a read hit end-of-file.
func EOF(eof bool) slog.Attr { return slog.Bool(KeyEOF, eof) }

// Dirty attaches a block or object's dirty state.
func Dirty(dirty bool) slog.Attr { return slog.Bool(KeyDirty, dirty) }

// CacheHit attaches whether a lookup was served from local cache.
func CacheHit(hit bool) slog.Attr { return slog.Bool(KeyCacheHit, hit) }

// CacheState attaches a CLEAN/DIRTY/FLUSHING state label.
func CacheState(state string) slog.Attr { return slog.String(KeyCacheState, state) }

// CacheSize attaches the current cache occupancy in bytes.
func CacheSize(n uint64) slog.Attr { return slog.Uint64(KeyCacheSize, n) }

// CacheCapacity attaches the configured cache capacity in bytes.
func CacheCapacity(n uint64) slog.Attr { return slog.Uint64(KeyCacheCapacity, n) }

// Evicted attaches the number of objects evicted in one pass.
func Evicted(n int) slog.Attr { return slog.Int(KeyEvicted, n) }

// Entries attaches a current entry count.
func Entries(n int) slog.Attr { return slog.Int(KeyEntries, n) }

// MaxEntries attaches a configured entry ceiling.
func MaxEntries(n int) slog.Attr { return slog.Int(KeyMaxEntries, n) }

// RemoteURL attaches the remote endpoint a fetch/flush targeted.
func RemoteURL(url string) slog.Attr { return slog.String(KeyRemoteURL, url) }

// Attempt attaches a retry attempt number (1-indexed).
func Attempt(n int) slog.Attr { return slog.Int(KeyAttempt, n) }

// MaxRetries attaches the configured retry ceiling.
func MaxRetries(n int) slog.Attr { return slog.Int(KeyMaxRetries, n) }

// FlushRunID attaches the uuid identifying one writeback pass.
func FlushRunID(id string) slog.Attr { return slog.String(KeyFlushRunID, id) }
