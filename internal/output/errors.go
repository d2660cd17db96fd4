package output

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/basecamp/postbrowser/internal/api"
	"github.com/basecamp/postbrowser/internal/resilience"
)

// Error is a structured error with code, message, and optional hint.
type Error struct {
	Code       string
	Message    string
	Hint       string
	HTTPStatus int
	Retryable  bool
	Cause      error
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Hint)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode returns the appropriate exit code for this error.
func (e *Error) ExitCode() int {
	return ExitCodeFor(e.Code)
}

// Error constructors for common cases.

func ErrUsage(msg string) *Error {
	return &Error{Code: CodeUsage, Message: msg}
}

func ErrUsageHint(msg, hint string) *Error {
	return &Error{Code: CodeUsage, Message: msg, Hint: hint}
}

func ErrNotFound(resource, identifier string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, identifier),
	}
}

func ErrNotFoundHint(resource, identifier, hint string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, identifier),
		Hint:    hint,
	}
}

func ErrAuth(msg string) *Error {
	return &Error{
		Code:       CodeAuth,
		Message:    msg,
		Hint:       "Run: postbrowser auth login",
		HTTPStatus: http.StatusUnauthorized,
	}
}

func ErrForbidden(msg string) *Error {
	return &Error{
		Code:       CodeForbidden,
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

func ErrRateLimit(retryAfter time.Duration) *Error {
	hint := "Try again later"
	if retryAfter > 0 {
		hint = fmt.Sprintf("Try again in %s", retryAfter.Round(time.Second))
	}
	return &Error{
		Code:       CodeRateLimit,
		Message:    "Rate limited",
		Hint:       hint,
		HTTPStatus: http.StatusTooManyRequests,
		Retryable:  true,
	}
}

func ErrNetwork(cause error) *Error {
	return &Error{
		Code:      CodeNetwork,
		Message:   "Network error",
		Hint:      cause.Error(),
		Retryable: true,
		Cause:     cause,
	}
}

func ErrAPI(status int, msg string) *Error {
	return &Error{
		Code:       CodeAPI,
		Message:    msg,
		HTTPStatus: status,
		Retryable:  status >= 500,
	}
}

func ErrUnavailable(cause error) *Error {
	return &Error{
		Code:      CodeUnavailable,
		Message:   "Posts API temporarily unavailable",
		Hint:      "Too many recent failures; requests resume automatically after a cool-down",
		Retryable: true,
		Cause:     cause,
	}
}

func ErrCanceled() *Error {
	return &Error{Code: CodeCanceled, Message: "Canceled"}
}

// AsError converts any error to an *Error, classifying API and gate
// failures by their exit code.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var nf *api.NotFoundError
	if errors.As(err, &nf) {
		return &Error{Code: CodeNotFound, Message: nf.Error(), HTTPStatus: http.StatusNotFound, Cause: err}
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return ErrUnavailable(err)
	}
	var rl *resilience.RateLimitedError
	if errors.As(err, &rl) {
		e := ErrRateLimit(rl.RetryAfter)
		e.Cause = err
		return e
	}
	if errors.Is(err, context.Canceled) {
		e := ErrCanceled()
		e.Cause = err
		return e
	}

	var fe *api.FetchError
	if errors.As(err, &fe) {
		switch {
		case fe.IsNetwork():
			return ErrNetwork(err)
		case fe.Status == http.StatusUnauthorized:
			e := ErrAuth(fe.Message)
			e.Cause = err
			return e
		case fe.Status == http.StatusForbidden:
			e := ErrForbidden(fe.Message)
			e.Cause = err
			return e
		case fe.Status == http.StatusTooManyRequests:
			e := ErrRateLimit(fe.RetryAfter)
			e.Cause = err
			return e
		default:
			e := ErrAPI(fe.Status, fe.Error())
			e.Cause = err
			return e
		}
	}

	return &Error{
		Code:    CodeAPI,
		Message: err.Error(),
		Cause:   err,
	}
}
