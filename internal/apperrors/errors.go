package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the upload pipeline. Handlers map these to HTTP
// statuses; the coordinator maps them to session status transitions.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrExpired           = errors.New("reference expired")
	ErrSizeLimitExceeded = errors.New("file exceeds size limit")
	ErrUnsupportedType   = errors.New("unsupported file type")
	ErrNoSuchAccount     = errors.New("no such channel account")
	ErrReauthRequired    = errors.New("re-authentication required")
	ErrAuthRevoked       = errors.New("authorization revoked")
	ErrAuthRejected      = errors.New("authorization rejected by remote")
	ErrQuotaExceeded     = errors.New("upload quota exceeded")
	ErrInvalidMetadata   = errors.New("invalid video metadata")
	ErrAlreadyInProgress = errors.New("upload already in progress")
	ErrCancelled         = errors.New("upload cancelled")
	ErrInternal          = errors.New("internal inconsistency")
)

// transientError marks a failure as retryable (timeouts, 5xx, resets).
type transientError struct {
	err error
}

func (t *transientError) Error() string { return t.err.Error() }
func (t *transientError) Unwrap() error { return t.err }

// Transient wraps err so IsTransient reports true for it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// Transientf is Transient over a formatted error.
func Transientf(format string, args ...interface{}) error {
	return &transientError{err: fmt.Errorf(format, args...)}
}

// IsTransient reports whether err (or anything it wraps) is retryable.
func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

// HTTPStatus maps pipeline errors to the status code handlers should return.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoSuchAccount):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrExpired), errors.Is(err, ErrUnsupportedType),
		errors.Is(err, ErrInvalidMetadata), errors.Is(err, ErrSizeLimitExceeded):
		return http.StatusBadRequest
	case errors.Is(err, ErrAlreadyInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrReauthRequired), errors.Is(err, ErrAuthRevoked),
		errors.Is(err, ErrAuthRejected):
		return http.StatusUnauthorized
	case errors.Is(err, ErrQuotaExceeded):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the human-readable failure string stored on a failed
// session. Raw transport errors are never exposed verbatim.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "the requested resource does not exist"
	case errors.Is(err, ErrForbidden):
		return "you do not have access to this resource"
	case errors.Is(err, ErrNoSuchAccount):
		return "the channel is not connected; connect it before uploading"
	case errors.Is(err, ErrAlreadyInProgress):
		// Conflict errors are composed in-process with the session context
		// (which session holds the claim, why a cancel was refused).
		return err.Error()
	case errors.Is(err, ErrCancelled):
		return "the upload was cancelled"
	case errors.Is(err, ErrExpired):
		return "the uploaded file expired before the transfer finished; please upload it again"
	case errors.Is(err, ErrSizeLimitExceeded):
		return "the file is larger than the supported maximum"
	case errors.Is(err, ErrUnsupportedType):
		return "the file type is not supported"
	case errors.Is(err, ErrReauthRequired):
		return "the channel connection has expired; please reconnect the channel"
	case errors.Is(err, ErrAuthRevoked):
		return "the channel was disconnected while the upload was running"
	case errors.Is(err, ErrAuthRejected):
		return "the channel authorization was rejected"
	case errors.Is(err, ErrQuotaExceeded):
		return "the channel's upload quota is exhausted; try again later"
	case errors.Is(err, ErrInvalidMetadata):
		return "the video metadata was rejected; please fix it and retry"
	case IsTransient(err):
		return "the upload failed after repeated network errors"
	default:
		return "the upload failed due to an internal error"
	}
}
