package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the module.
type ErrorCode string

// Dispatch error codes
const (
	ErrValidation   ErrorCode = "VALIDATION"
	ErrToolNotFound ErrorCode = "TOOL_NOT_FOUND"
	ErrToolExists   ErrorCode = "TOOL_EXISTS"
	ErrRateLimited  ErrorCode = "RATE_LIMITED"
)

// Storage error codes
const (
	ErrStorage          ErrorCode = "STORAGE"
	ErrIndexUnavailable ErrorCode = "INDEX_UNAVAILABLE"
)

// Session error codes
const (
	ErrSessionClosed ErrorCode = "SESSION_CLOSED"
	ErrQueueFull     ErrorCode = "QUEUE_FULL"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Tool    string    `json:"tool,omitempty"`
	Field   string    `json:"field,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithTool sets the tool name the error originated from.
func (e *Error) WithTool(tool string) *Error {
	e.Tool = tool
	return e
}

// WithField sets the offending field name.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// CodeOf extracts the ErrorCode from err, or "" if err is not an *Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsValidation reports whether err is a validation error. Validation
// errors mean the conversational driver should re-prompt the user; no
// record was persisted.
func IsValidation(err error) bool {
	return CodeOf(err) == ErrValidation
}

// IsStorage reports whether err is a storage error.
func IsStorage(err error) bool {
	c := CodeOf(err)
	return c == ErrStorage || c == ErrIndexUnavailable
}
