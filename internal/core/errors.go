// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Upstream feed errors
	ErrUpstreamAuth    = &Error{Code: "UPSTREAM_AUTH", Message: "quote provider authentication failed"}
	ErrUpstreamData    = &Error{Code: "UPSTREAM_DATA", Message: "malformed or missing quote data"}
	ErrEmptyMarketData = &Error{Code: "EMPTY_MARKET_DATA", Message: "no market data for session"}

	// Persistence errors
	ErrPersistence    = &Error{Code: "PERSISTENCE", Message: "signal store write failed"}
	ErrStaleSignal    = &Error{Code: "STALE_SIGNAL", Message: "signal already closed by another writer"}
	ErrSignalNotFound = &Error{Code: "SIGNAL_NOT_FOUND", Message: "signal not found"}
	ErrInvalidSignal  = &Error{Code: "INVALID_SIGNAL", Message: "signal levels are invalid"}

	// Notifier errors
	ErrNotifierFailed = &Error{Code: "NOTIFIER_FAILED", Message: "notifier failed"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// API errors
	ErrInvalidRequest = &Error{Code: "INVALID_REQUEST", Message: "invalid request parameters"}
	ErrUnauthorized   = &Error{Code: "UNAUTHORIZED", Message: "missing or invalid API key"}

	// LLM errors
	ErrLLMFailed = &Error{Code: "LLM_FAILED", Message: "LLM request failed"}
)
