package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the subsystem.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"
	ErrOracleError     ErrorCode = "ORACLE_ERROR"
	ErrOracleBadReply  ErrorCode = "ORACLE_BAD_REPLY"
	ErrTokenizerError  ErrorCode = "TOKENIZER_ERROR"
	ErrContextOverflow ErrorCode = "CONTEXT_OVERFLOW"
	ErrIndexStore      ErrorCode = "INDEX_STORE"
	ErrInternalError   ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
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

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// CodeOf extracts the ErrorCode from err, or ErrInternalError when err is not
// a structured Error.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrInternalError
}

// IsFatal reports whether err must abort the whole operation instead of
// degrading. Only tokenizer unavailability is fatal: without token counts no
// budget can be established.
func IsFatal(err error) bool {
	return CodeOf(err) == ErrTokenizerError
}
