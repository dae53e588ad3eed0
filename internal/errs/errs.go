// Package errs classifies errors crossing component boundaries into kinds.
//
// Every error returned from a service, store, or provider carries exactly one
// kind. Transports map kinds onto their own status codes; retry loops consult
// Retryable instead of inspecting error text.
package errs

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind categorizes an error for callers.
type Kind string

// Kind values.
const (
	KindNotFound            Kind = "not_found"
	KindUnauthorized        Kind = "unauthorized"
	KindAlreadyExists       Kind = "already_exists"
	KindInvalidInput        Kind = "invalid_input"
	KindInvalidState        Kind = "invalid_state"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindUpstreamRateLimited Kind = "upstream_rate_limited"
	KindUpstreamAuth        Kind = "upstream_auth"
	KindTimeout             Kind = "timeout"
	KindCancelled           Kind = "cancelled"
	KindInternal            Kind = "internal"
)

// Error is a kind-carrying error. Use New, Newf, or Wrap to construct one.
type Error struct {
	kind       Kind
	msg        string
	err        error
	retryAfter time.Duration
	hasHint    bool
}

// New creates an Error with the given kind and message.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error with the given kind wrapping an underlying error.
// A nil underlying error yields nil.
func Wrap(kind Kind, msg string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, msg: msg, err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

// Unwrap returns the underlying error for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.err
}

// Kind returns the error's kind.
func (e *Error) Kind() Kind {
	return e.kind
}

// Message returns the short descriptive message without the wrapped chain.
func (e *Error) Message() string {
	return e.msg
}

// WithRetryAfter returns a copy carrying an upstream retry-after hint.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	clone := *e
	if d < 0 {
		d = 0
	}
	clone.retryAfter = d
	clone.hasHint = true
	return &clone
}

// KindOf returns the kind of err. Context cancellation and deadline errors
// classify as Cancelled and Timeout even when wrapped; anything without an
// explicit kind is Internal. A nil error has no kind and returns "".
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindInternal
}

// IsKind reports whether err classifies as the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether err is worth retrying with backoff.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindUpstreamUnavailable, KindUpstreamRateLimited, KindTimeout:
		return true
	default:
		return false
	}
}

// RetryAfter returns the upstream retry-after hint, if err carries one.
func RetryAfter(err error) (time.Duration, bool) {
	var e *Error
	if errors.As(err, &e) && e.hasHint {
		return e.retryAfter, true
	}
	return 0, false
}

// UserMessage returns a short description safe to surface to callers.
// For kind-carrying errors this is the message without the wrapped chain.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.msg
	}
	return err.Error()
}
