package engine

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeInvalidAllocation     Code = "INVALID_ALLOCATION"
	CodeIncompleteSubmissions Code = "INCOMPLETE_SUBMISSIONS"
	CodeAlreadyResolved       Code = "ALREADY_RESOLVED"
	CodePostMaxRounds         Code = "POST_MAX_ROUNDS"
	CodeUnknownTeam           Code = "UNKNOWN_TEAM"
	CodeInvalidConfig         Code = "INVALID_CONFIG"
	CodeInvalidState          Code = "INVALID_STATE"
)

// Error is the engine error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Human-readable message
	Metadata map[string]string // Additional context (team, round, ...)
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// newError creates a domain error with a code and message.
func newError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func withMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

func wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is. Returned errors carry the same code with more context.
var (
	ErrInvalidAllocation     = newError(CodeInvalidAllocation, "invalid allocation")
	ErrIncompleteSubmissions = newError(CodeIncompleteSubmissions, "not every team has submitted")
	ErrAlreadyResolved       = newError(CodeAlreadyResolved, "round already resolved")
	ErrPostMaxRounds         = newError(CodePostMaxRounds, "game has concluded")
	ErrUnknownTeam           = newError(CodeUnknownTeam, "unknown team")
	ErrInvalidConfig         = newError(CodeInvalidConfig, "invalid config")
	ErrInvalidState          = newError(CodeInvalidState, "invalid game state")
)

// CodeOf extracts the code of an engine error, or "" for anything else.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
