package collectors

import (
	"errors"
	"fmt"
)

var (
	// ErrTransient marks failures that may succeed on a later scan
	// (timeouts, 429/5xx after retries, an open circuit breaker).
	ErrTransient = errors.New("transient venue error")
	// ErrMalformed marks payloads that could not be decoded.
	ErrMalformed = errors.New("malformed venue payload")
	// ErrNotFound marks tokens or markets the venue does not know.
	ErrNotFound = errors.New("not found")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.Code == 429 || e.Code >= 500
}
