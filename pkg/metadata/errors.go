package metadata

// StoreError is a domain error raised by the metadata store, block cache,
// or remote fetcher/flusher. It carries enough information for the
// operation dispatcher to map it onto a syscall.Errno without needing to
// inspect error strings.
type StoreError struct {
	Code    ErrorCode
	Message string
	Path    string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// ErrorCode enumerates the error kinds of spec §7, one per distinct errno
// mapping the dispatcher needs to make.
type ErrorCode int

const (
	// ErrNotFound: path absent locally and remotely. -> ENOENT.
	ErrNotFound ErrorCode = iota
	// ErrPermissionDenied: remote 401/403. -> EACCES.
	ErrPermissionDenied
	// ErrAlreadyExists: create over an existing non-directory. -> EEXIST.
	ErrAlreadyExists
	// ErrNotDirectory: directory operation attempted on a file. -> ENOTDIR.
	ErrNotDirectory
	// ErrIsDirectory: file operation attempted on a directory. -> EISDIR.
	ErrIsDirectory
	// ErrCapacityExhausted: local disk full while writing. -> ENOSPC.
	ErrCapacityExhausted
	// ErrRemoteTransient: retry budget exhausted on a transport-level
	// remote error (timeout, connection failure). -> EAGAIN.
	ErrRemoteTransient
	// ErrRemoteFatal: persistent 5xx or non-mappable 4xx. -> EIO.
	ErrRemoteFatal
	// ErrIntegrity: fetched byte count didn't match the requested range.
	// -> EIO.
	ErrIntegrity
	// ErrMetadataCorruption: the metadata database failed to open or
	// migrate. Fatal at init; never surfaced as an errno.
	ErrMetadataCorruption
)

func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "not-found"
	case ErrPermissionDenied:
		return "permission-denied"
	case ErrAlreadyExists:
		return "already-exists"
	case ErrNotDirectory:
		return "not-a-directory"
	case ErrIsDirectory:
		return "is-a-directory"
	case ErrCapacityExhausted:
		return "capacity-exhausted"
	case ErrRemoteTransient:
		return "remote-transient"
	case ErrRemoteFatal:
		return "remote-fatal"
	case ErrIntegrity:
		return "integrity"
	case ErrMetadataCorruption:
		return "metadata-corruption"
	default:
		return "unknown"
	}
}

// NewNotFoundError builds an ErrNotFound StoreError for path.
func NewNotFoundError(path string) *StoreError {
	return &StoreError{Code: ErrNotFound, Message: "not found", Path: path}
}

// NewPermissionDeniedError builds an ErrPermissionDenied StoreError for path.
func NewPermissionDeniedError(path string) *StoreError {
	return &StoreError{Code: ErrPermissionDenied, Message: "permission denied", Path: path}
}

// NewAlreadyExistsError builds an ErrAlreadyExists StoreError for path.
func NewAlreadyExistsError(path string) *StoreError {
	return &StoreError{Code: ErrAlreadyExists, Message: "already exists", Path: path}
}

// NewNotDirectoryError builds an ErrNotDirectory StoreError for path.
func NewNotDirectoryError(path string) *StoreError {
	return &StoreError{Code: ErrNotDirectory, Message: "not a directory", Path: path}
}

// NewIsDirectoryError builds an ErrIsDirectory StoreError for path.
func NewIsDirectoryError(path string) *StoreError {
	return &StoreError{Code: ErrIsDirectory, Message: "is a directory", Path: path}
}

// NewCapacityExhaustedError builds an ErrCapacityExhausted StoreError for path.
func NewCapacityExhaustedError(path string) *StoreError {
	return &StoreError{Code: ErrCapacityExhausted, Message: "no space left on device", Path: path}
}

// NewRemoteTransientError builds an ErrRemoteTransient StoreError for path.
func NewRemoteTransientError(path string, cause error) *StoreError {
	msg := "remote request failed after retries"
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return &StoreError{Code: ErrRemoteTransient, Message: msg, Path: path}
}

// NewRemoteFatalError builds an ErrRemoteFatal StoreError for path.
func NewRemoteFatalError(path string, cause error) *StoreError {
	msg := "remote request failed"
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return &StoreError{Code: ErrRemoteFatal, Message: msg, Path: path}
}

// NewIntegrityError builds an ErrIntegrity StoreError for path.
func NewIntegrityError(path string, want, got int) *StoreError {
	return &StoreError{
		Code:    ErrIntegrity,
		Message: "fetched byte count mismatch",
		Path:    path,
	}
}

// NewMetadataCorruptionError builds an ErrMetadataCorruption StoreError.
func NewMetadataCorruptionError(cause error) *StoreError {
	msg := "metadata store corrupt or unopenable"
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return &StoreError{Code: ErrMetadataCorruption, Message: msg}
}

// IsNotFound reports whether err is a StoreError with code ErrNotFound.
func IsNotFound(err error) bool {
	se, ok := err.(*StoreError)
	return ok && se.Code == ErrNotFound
}

// CodeOf extracts the ErrorCode of err if it is a StoreError, and whether
// the extraction succeeded.
func CodeOf(err error) (ErrorCode, bool) {
	se, ok := err.(*StoreError)
	if !ok {
		return 0, false
	}
	return se.Code, true
}
