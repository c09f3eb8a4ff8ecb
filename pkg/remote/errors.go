package remote

import (
	"fmt"
	"net/http"

	"github.com/nimbusfs/nimbusfs/pkg/metadata"
)

// NewTransientOrFatal wraps a transport-level error (timeout, connection
// refused, etc.) left over after the retry budget has been exhausted, as
// an ErrRemoteTransient per spec §7.6.
func NewTransientOrFatal(path string, err error) error {
	return metadata.NewRemoteTransientError(path, err)
}

// errFromStatus maps a response that withRetry already gave up on -- its
// retry budget is spent by the time a caller reaches this point, so a
// persistent 5xx here is no longer transient, it's a fatal remote error
// same as any other non-mappable 4xx. Genuine transient failures (network
// timeouts, connection resets) never reach errFromStatus; those surface
// from withRetry's own error return and are wrapped by
// NewTransientOrFatal instead.
func errFromStatus(path string, status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return metadata.NewPermissionDeniedError(path)
	case http.StatusNotFound:
		return errNotFound(path)
	case http.StatusConflict:
		return errAlreadyExists(path)
	default:
		return metadata.NewRemoteFatalError(path, fmt.Errorf("status %d", status))
	}
}

func errNotFound(path string) error {
	return metadata.NewNotFoundError(path)
}

func errAlreadyExists(path string) error {
	return metadata.NewAlreadyExistsError(path)
}

func integrityErr(path string, want, got int) error {
	return metadata.NewIntegrityError(path, want, got)
}
