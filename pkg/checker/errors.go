package checker

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch on it programmatically
// instead of matching error text.
type Kind string

const (
	// KindTransient covers timeout and connection-level failures. The same
	// step may be retried without reloading the page.
	KindTransient Kind = "transient"

	// KindCaptchaRejected means the site rejected the challenge answer.
	// It is the only kind that consumes a retry-budget slot.
	KindCaptchaRejected Kind = "captcha_rejected"

	// KindFormInteractionFailed means a selector or field was not found.
	// The site layout has likely changed; not retried.
	KindFormInteractionFailed Kind = "form_interaction_failed"

	// KindCapabilityUnavailable means the configured solver cannot solve
	// challenges automatically.
	KindCapabilityUnavailable Kind = "capability_unavailable"

	// KindSessionBusy means another caller is already operating on the session.
	KindSessionBusy Kind = "session_busy"

	// KindNotFound means the session id is unknown or already consumed.
	KindNotFound Kind = "not_found"

	// KindExpired means the session outlived its TTL and was (or is being) reaped.
	KindExpired Kind = "expired"

	// KindCancelled means the caller cancelled the session explicitly.
	KindCancelled Kind = "cancelled"

	// KindFatal is the catch-all for everything else.
	KindFatal Kind = "fatal"
)

// Error is a classified failure. Kind is always set; Suggestion is optional
// remediation data for calling layers to surface or localize.
type Error struct {
	Kind       Kind
	Message    string
	Suggestion string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified error with the given kind and message.
func NewError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies an underlying error without losing it.
func WrapError(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from an error chain. Unclassified errors are
// KindFatal; context deadline and cancellation map to KindTransient and
// KindCancelled respectively.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindFatal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// AsError converts any error into a classified *Error, preserving an
// existing classification if one is present in the chain.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return &Error{Kind: KindOf(err), Message: err.Error(), Err: err}
}
