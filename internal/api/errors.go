package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/basecamp/postbrowser/internal/resilience"
)

// FetchError is a transport failure or a non-success HTTP response.
// Status is 0 for transport failures.
type FetchError struct {
	Status     int
	Message    string
	RetryAfter time.Duration
	RequestID  string
	Cause      error
}

func (e *FetchError) Error() string {
	if e.Status == 0 {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// IsNetwork reports whether the request never got a response.
func (e *FetchError) IsNetwork() bool {
	return e.Status == 0
}

// NotFoundError reports that a single item does not exist.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsRetryable reports whether another attempt could succeed: transport
// failures, 408, 429, 5xx and local rate limiting are retryable; other 4xx,
// not-found, an open circuit and cancellation are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if IsNotFound(err) || errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	if errors.Is(err, resilience.ErrRateLimited) {
		return true
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		switch {
		case fe.IsNetwork():
			return true
		case fe.Status == http.StatusRequestTimeout, fe.Status == http.StatusTooManyRequests:
			return true
		case fe.Status >= 500:
			return true
		default:
			return false
		}
	}
	return false
}

// ShouldTrip reports whether err counts against the circuit breaker:
// transport failures and server errors do, client errors do not.
func ShouldTrip(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.IsNetwork() || fe.Status >= 500
	}
	return false
}
