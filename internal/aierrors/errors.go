package aierrors

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failure so callers can pattern-match on it instead of
// inspecting concrete types. The set of retryable kinds is enumerated in
// IsRetryable.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindExternalService
	KindAIService
	KindDatabase
	KindRateLimit
	KindCircuitOpen
	KindTimeout
	KindNoFallback
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindExternalService:
		return "external_service"
	case KindAIService:
		return "ai_service"
	case KindDatabase:
		return "database"
	case KindRateLimit:
		return "rate_limit"
	case KindCircuitOpen:
		return "circuit_open"
	case KindTimeout:
		return "timeout"
	case KindNoFallback:
		return "no_fallback"
	default:
		return "unknown"
	}
}

// Error is the taxonomy's concrete error type. Backend is set for failures
// attributable to a named generative-model backend.
type Error struct {
	Kind    Kind
	Message string
	Backend string
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Backend != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Kind, e.Backend, e.Message)
	}

	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors of the same kind, so callers can write
// errors.Is(err, aierrors.NewTimeout("")) style sentinels if they want to.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}

	return e.Kind == other.Kind
}

func NewValidation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func NewExternalService(msg string, cause error) *Error {
	return &Error{Kind: KindExternalService, Message: msg, Cause: cause}
}

// NewAIService marks a transient fault of a named generative backend.
func NewAIService(backend, msg string, cause error) *Error {
	return &Error{Kind: KindAIService, Message: msg, Backend: backend, Cause: cause}
}

func NewDatabase(msg string, cause error) *Error {
	return &Error{Kind: KindDatabase, Message: msg, Cause: cause}
}

func NewRateLimit(msg string) *Error {
	return &Error{Kind: KindRateLimit, Message: msg}
}

func NewTimeout(msg string) *Error {
	return &Error{Kind: KindTimeout, Message: msg}
}

// NewNoFallback wraps the original failure when a fallback executor has
// nothing configured to degrade to.
func NewNoFallback(cause error) *Error {
	return &Error{Kind: KindNoFallback, Message: "no fallback configured", Cause: cause}
}

// CircuitOpenError is raised when a breaker rejects a call without invoking
// the wrapped operation.
type CircuitOpenError struct {
	Dependency  string
	NextAttempt time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("[circuit_open] %s: circuit open, next attempt at %s",
		e.Dependency, e.NextAttempt.Format(time.RFC3339))
}

// KindOf extracts the taxonomy kind from any error in the chain.
// Untagged errors report KindUnknown.
func KindOf(err error) Kind {
	var coe *CircuitOpenError
	if errors.As(err, &coe) {
		return KindCircuitOpen
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindUnknown
}

// IsRetryable reports whether retrying the failed operation can help.
// Transient backend faults and timeouts are retryable; everything the caller
// did wrong, plus rate limits, open circuits, and failed writes, is not.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindExternalService, KindAIService, KindTimeout:
		return true
	default:
		return false
	}
}

// BackendOf returns the backend name attached to an error, if any.
func BackendOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Backend
	}

	var coe *CircuitOpenError
	if errors.As(err, &coe) {
		return coe.Dependency
	}

	return ""
}
