// Package errs provides the unified error type used across all of gardien.
//
// Every subsystem (database engines, schema, auth, session stores, filestore)
// wraps its native errors into *errs.Error before returning them to callers.
// Callers use the Is* predicates to handle errors without importing
// driver-specific packages.
//
// Usage:
//
//	// In an engine package, wrap native errors:
//	return errs.Wrap(errs.ErrKindTimeout, "query timed out", pgErr)
//
//	// In a handler, check the error kind:
//	if errs.IsConflict(err) {
//	    http.Error(w, "login already exists", http.StatusConflict)
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // no rows, no object, no user
	ErrKindConnectionFailed         // cannot reach the backend or credentials rejected
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindQueryFailed              // SQL or storage operation error
	ErrKindInvalidInput             // bad arguments from the caller
	ErrKindPermissionDenied         // access denied by the backend
	ErrKindConfiguration            // missing or unsupported setting, raised at construction
	ErrKindSchema                   // introspection or DDL failure
	ErrKindValidation               // rejected user data (missing fields, weak password)
	ErrKindConflict                 // unique key already taken
	ErrKindAuthFailure              // bad credentials, blocked client, rejected by hook
	ErrKindIO                       // non-fatal local I/O (log files, optional DDL)
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindConfiguration:
		return "configuration"
	case ErrKindSchema:
		return "schema"
	case ErrKindValidation:
		return "validation"
	case ErrKindConflict:
		return "conflict"
	case ErrKindAuthFailure:
		return "auth_failure"
	case ErrKindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all gardien subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a format string.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity or credential failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a backend operation failure.
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

func IsConfiguration(err error) bool {
	return KindOf(err) == ErrKindConfiguration
}

func IsSchema(err error) bool {
	return KindOf(err) == ErrKindSchema
}

func IsValidation(err error) bool {
	return KindOf(err) == ErrKindValidation
}

func IsConflict(err error) bool {
	return KindOf(err) == ErrKindConflict
}

func IsAuthFailure(err error) bool {
	return KindOf(err) == ErrKindAuthFailure
}

func IsIO(err error) bool {
	return KindOf(err) == ErrKindIO
}

// IsFatal reports whether err leaves the caller without a usable backend:
// connectivity, timeout, configuration and schema failures.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case ErrKindConnectionFailed, ErrKindTimeout, ErrKindConfiguration, ErrKindSchema:
		return true
	}
	return false
}

// KindOf extracts the ErrKind from the first *Error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}

// MessageOf returns the message of the first *Error in err's chain without
// its kind or cause, falling back to err.Error().
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
