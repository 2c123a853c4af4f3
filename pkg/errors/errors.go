// Package errors provides structured error types for the Humble plugin.
//
// This package defines the error taxonomy shared by the HTTP client, the
// resolvers and the RPC facade:
//   - AUTH_REQUIRED: the session cookie is missing or was rejected (HTTP 401)
//   - BACKEND_UNAVAILABLE: network failures and 5xx responses
//   - UNKNOWN_BACKEND: the backend answered with a shape we do not understand
//   - WEBPACK_PARSE: an embedded page model could not be extracted
//   - INVALID_HUMBLE_GAME: a single library entity is malformed and skipped
//   - PLATFORM_NOT_SUPPORTED: no download exists for the requested platform
//
// # Usage
//
//	err := errors.New(errors.ErrCodeUnknownBackend, "unexpected trove chunk %d", idx)
//	if errors.Is(err, errors.ErrCodeUnknownBackend) {
//	    // skip the entity
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeBackendUnavailable, origErr, "GET %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Humble backend errors
	ErrCodeAuthRequired       Code = "AUTH_REQUIRED"
	ErrCodeBackendUnavailable Code = "BACKEND_UNAVAILABLE"
	ErrCodeUnknownBackend     Code = "UNKNOWN_BACKEND"
	ErrCodeWebpackParse       Code = "WEBPACK_PARSE"

	// Library entity errors
	ErrCodeInvalidHumbleGame    Code = "INVALID_HUMBLE_GAME"
	ErrCodePlatformNotSupported Code = "PLATFORM_NOT_SUPPORTED"

	// Request errors
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeNotFound     Code = "NOT_FOUND"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
// Only the outermost *Error is inspected, so re-wrapping under a new code
// reclassifies the failure.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// AuthRequired is a shorthand for an AUTH_REQUIRED error.
func AuthRequired(format string, args ...any) *Error {
	return New(ErrCodeAuthRequired, format, args...)
}

// UnknownBackend is a shorthand for an UNKNOWN_BACKEND error.
func UnknownBackend(format string, args ...any) *Error {
	return New(ErrCodeUnknownBackend, format, args...)
}

// InvalidGame is a shorthand for an INVALID_HUMBLE_GAME error.
func InvalidGame(format string, args ...any) *Error {
	return New(ErrCodeInvalidHumbleGame, format, args...)
}

// As calls the standard library errors.As.
func As(err error, target any) bool { return errors.As(err, target) }
