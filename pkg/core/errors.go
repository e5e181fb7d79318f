package core

import (
	"errors"
	"fmt"
)

// Error is the gateway's classified error. The Type doubles as the wire
// code in client-facing error envelopes.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Param   string    `json:"param,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrConnection    ErrorType = "connection_error"
	ErrAuth          ErrorType = "auth_error"
	ErrPermission    ErrorType = "permission_error"
	ErrToolExecution ErrorType = "tool_execution_error"
	ErrGeneration    ErrorType = "generation_error"
	ErrProtocol      ErrorType = "protocol_error"

	// HTTP surface only, never sent inside a live session.
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrNotFound       ErrorType = "not_found_error"
	ErrOverloaded     ErrorType = "overloaded_error"
	ErrInternal       ErrorType = "internal_error"
)

// NewConnectionError creates a transport failure error.
func NewConnectionError(message string, cause error) *Error {
	return &Error{
		Type:    ErrConnection,
		Message: message,
		Cause:   cause,
	}
}

// NewAuthError creates a credential rejection error.
func NewAuthError(message string) *Error {
	return &Error{
		Type:    ErrAuth,
		Message: message,
	}
}

// NewPermissionError creates a permission denial error.
func NewPermissionError(message string) *Error {
	return &Error{
		Type:    ErrPermission,
		Message: message,
	}
}

// NewToolExecutionError creates a tool handler failure error.
func NewToolExecutionError(tool string, cause error) *Error {
	return &Error{
		Type:    ErrToolExecution,
		Message: fmt.Sprintf("tool %q failed", tool),
		Param:   tool,
		Cause:   cause,
	}
}

// NewGenerationError creates a mode generation failure error.
func NewGenerationError(message string, cause error) *Error {
	return &Error{
		Type:    ErrGeneration,
		Message: message,
		Cause:   cause,
	}
}

// NewProtocolError creates a malformed frame error.
func NewProtocolError(message string, cause error) *Error {
	return &Error{
		Type:    ErrProtocol,
		Message: message,
		Cause:   cause,
	}
}

// NewNotFoundError creates an unknown-route error.
func NewNotFoundError(message string) *Error {
	return &Error{
		Type:    ErrNotFound,
		Message: message,
	}
}

// NewInternalError creates an unclassified server-side error.
func NewInternalError(message string) *Error {
	return &Error{
		Type:    ErrInternal,
		Message: message,
	}
}

// IsRetryable reports whether reconnecting may clear the error.
// Credential and permission failures will fail the same way again.
func (e *Error) IsRetryable() bool {
	return e.Type == ErrConnection
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// TypeOf extracts the ErrorType from err, or "" if err is not a *Error.
func TypeOf(err error) ErrorType {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Type
	}
	return ""
}
