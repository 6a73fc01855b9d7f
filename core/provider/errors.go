package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrTimeout marks a request that hit the network timeout. It is retryable by the caller.
var ErrTimeout = errors.New("provider request timed out")

// Error is a non-2xx answer from the provider.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Retryable reports whether the caller may retry the same request later.
func (e *Error) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsRetryable reports whether err is a timeout or a retryable provider error.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var pe *Error
	return errors.As(err, &pe) && pe.Retryable()
}

// IsTimeout reports whether err is a network or deadline timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
