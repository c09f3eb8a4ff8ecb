package dispatch

import (
	"syscall"

	"github.com/nimbusfs/nimbusfs/pkg/metadata"
)

// errno maps a cache-engine error onto the syscall.Errno the kernel
// expects back from a FUSE operation, per spec §7's error-kind table. A
// nil error maps to success (0); an error that isn't a *StoreError maps
// to EIO, since it represents a failure the dispatcher has no more
// specific mapping for.
func errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}

	se, ok := err.(*metadata.StoreError)
	if !ok {
		return syscall.EIO
	}

	switch se.Code {
	case metadata.ErrNotFound:
		return syscall.ENOENT
	case metadata.ErrPermissionDenied:
		return syscall.EACCES
	case metadata.ErrAlreadyExists:
		return syscall.EEXIST
	case metadata.ErrNotDirectory:
		return syscall.ENOTDIR
	case metadata.ErrIsDirectory:
		return syscall.EISDIR
	case metadata.ErrCapacityExhausted:
		return syscall.ENOSPC
	case metadata.ErrRemoteTransient:
		return syscall.EAGAIN
	case metadata.ErrRemoteFatal, metadata.ErrIntegrity:
		return syscall.EIO
	case metadata.ErrMetadataCorruption:
		// Fatal at init; the mount should never reach the dispatcher in
		// this state. Map defensively to EIO rather than panic a live
		// foreground request.
		return syscall.EIO
	default:
		return syscall.EIO
	}
}
