package api

import (
	"fmt"
	"net/http"
)

// ErrorCode categorizes an API error. Each code maps to exactly one HTTP
// status in the transport layer.
type ErrorCode string

const (
	ErrorCodeValidation   ErrorCode = "validation"
	ErrorCodeUnauthorized ErrorCode = "unauthorized"
	ErrorCodeForbidden    ErrorCode = "forbidden"
	ErrorCodeNotFound     ErrorCode = "not_found"
	ErrorCodeUnavailable  ErrorCode = "unavailable"
	ErrorCodeServer       ErrorCode = "server_error"
)

// Error is the structured error returned by every layer of the service.
// Message is surfaced verbatim to the caller. Fields, when set, replaces
// Message with a field-to-message map in the JSON body (used for missing
// required request fields). Headers carries method-specific challenge
// headers for authentication errors.
type Error struct {
	Code    ErrorCode
	Message string
	Fields  map[string]string
	Headers http.Header
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %v", e.Code, e.Fields)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HTTPStatus maps the error code to its HTTP status.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case ErrorCodeValidation:
		return http.StatusBadRequest
	case ErrorCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrorCodeForbidden:
		return http.StatusForbidden
	case ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Body returns the JSON-serializable error body. The message field holds
// either a plain string or a field-to-message map.
func (e *Error) Body() map[string]any {
	if len(e.Fields) > 0 {
		return map[string]any{"message": e.Fields}
	}
	return map[string]any{"message": e.Message}
}

// NewValidationError creates a 400 error whose message is surfaced
// verbatim to the caller.
func NewValidationError(format string, args ...any) *Error {
	return &Error{Code: ErrorCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NewFieldValidationError creates a 400 error carrying per-field messages.
func NewFieldValidationError(fields map[string]string) *Error {
	return &Error{Code: ErrorCodeValidation, Fields: fields}
}

// NewUnauthorizedError creates a 401 error with optional challenge headers.
func NewUnauthorizedError(message string, headers http.Header) *Error {
	return &Error{Code: ErrorCodeUnauthorized, Message: message, Headers: headers}
}

// NewForbiddenError creates a 403 error.
func NewForbiddenError(format string, args ...any) *Error {
	return &Error{Code: ErrorCodeForbidden, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError creates a 404 error.
func NewNotFoundError(format string, args ...any) *Error {
	return &Error{Code: ErrorCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// NewUnavailableError creates a 503 error wrapping an upstream failure.
func NewUnavailableError(format string, args ...any) *Error {
	return &Error{Code: ErrorCodeUnavailable, Message: fmt.Sprintf(format, args...)}
}

// NewServerError creates a 500 error with a generic message so internal
// details never leak to the caller.
func NewServerError() *Error {
	return &Error{Code: ErrorCodeServer, Message: "internal server error"}
}
