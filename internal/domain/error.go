package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidPayload     = errors.New("invalid analysis payload")
	ErrSessionRequired    = errors.New("payload session id is required")
	ErrUnknownMode        = errors.New("unknown execution mode")
	ErrNoDimensions       = errors.New("no analysis dimensions selected")
	ErrJobNotRequeueable  = errors.New("job attempt is not in a requeueable state")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrTransportDegraded  = errors.New("progress transport unavailable")
)

// transientError marks provider-side failures (timeouts, rate limits, 5xx)
// that the queue retries with backoff. Everything else is terminal.
type transientError struct{ err error }

func (t *transientError) Error() string { return t.err.Error() }
func (t *transientError) Unwrap() error { return t.err }

// Transient wraps err so the queue's retry classifier treats it as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err (or anything it wraps) was marked Transient.
func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}
