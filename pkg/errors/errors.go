// Package errors provides structured error types for the loomgraph engine.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and the dev HTTP surface
//   - Machine-readable error codes for programmatic handling
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes map to the engine's recovery taxonomy:
//   - INVALID_RECORD: a single extraction record is structurally malformed;
//     recovered by dropping only that record
//   - MISSING_ENDPOINT: a relation references an entity absent from both the
//     snapshot and the batch; recovered by dropping that relation
//   - VERSION_MISMATCH: a delta's fromVersion does not equal the snapshot
//     version; surfaced so the transport can request a full resync
//   - LAYOUT_NONCONVERGENCE: the force simulation still reports overlaps
//     after its iteration budget; the best-effort result is used as-is
//
// No error in this taxonomy should ever crash the process; all are reported
// as structured results or warnings to the caller.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidRecord, "entity %d: missing label", i)
//	if errors.Is(err, errors.ErrCodeInvalidRecord) {
//	    // Drop the record, keep the batch
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeCache, origErr, "load layout %s", key)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Recoverable ingestion errors
	ErrCodeInvalidRecord   Code = "INVALID_RECORD"
	ErrCodeMissingEndpoint Code = "MISSING_ENDPOINT"

	// Versioning
	ErrCodeVersionMismatch Code = "VERSION_MISMATCH"
	ErrCodeDuplicateID     Code = "DUPLICATE_ID"

	// Layout quality
	ErrCodeLayoutNonconvergence Code = "LAYOUT_NONCONVERGENCE"

	// Input validation
	ErrCodeInvalidInput Code = "INVALID_INPUT"

	// Resource errors
	ErrCodeNotFound Code = "NOT_FOUND"
	ErrCodeCache    Code = "CACHE_ERROR"

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
