package authstate

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind is the stable taxonomy provider failures are mapped to.
type ErrorKind string

const (
	KindInvalidCredentials   ErrorKind = "InvalidCredentials"
	KindAccountExists        ErrorKind = "AccountExists"
	KindWeakPassword         ErrorKind = "WeakPassword"
	KindInvalidCode          ErrorKind = "InvalidCode"
	KindEnrollmentFailed     ErrorKind = "EnrollmentFailed"
	KindNoActiveSession      ErrorKind = "NoActiveSession"
	KindExpiredOrInvalidLink ErrorKind = "ExpiredOrInvalidLink"
	KindProviderUnavailable  ErrorKind = "ProviderUnavailable"
	KindUnknown              ErrorKind = "Unknown"

	KindEmailNotConfirmed ErrorKind = "EmailNotConfirmed"
	KindInvalidInput      ErrorKind = "InvalidInput"
	KindRateLimited       ErrorKind = "RateLimited"
	KindFactorNotFound    ErrorKind = "FactorNotFound"
	KindInvalidState      ErrorKind = "InvalidState"
)

// Error is the failure half of a Result.
type Error struct {
	Kind ErrorKind
	// Message is short, localised and suitable for inline display.
	Message string
	// Code is the provider's error code, when there was one.
	Code string

	cause error
}

// NewError creates an Error of kind k wrapping cause. cause may be nil.
func NewError(k ErrorKind, cause error) *Error {
	return &Error{Kind: k, cause: cause}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.cause != nil {
		msg = e.cause.Error()
	}
	if msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error of the same kind, so sentinel-style comparisons
// like errors.Is(err, &Error{Kind: KindInvalidCode}) work.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind carried by err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// asError converts anything a Gateway returns into an *Error.
func asError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindProviderUnavailable, err)
	}
	return NewError(KindUnknown, err)
}
