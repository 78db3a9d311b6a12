// Package domain provides the canonical error kinds surfaced to the
// centralized error stage.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind represents the category of an API error.
type ErrorKind string

const (
	// KindMalformedInput indicates a body or query that could not be parsed.
	KindMalformedInput ErrorKind = "malformed_input"

	// KindValidation indicates a domain-level validation failure raised by a handler.
	KindValidation ErrorKind = "validation"

	// KindNotFound indicates an unknown resource or route.
	KindNotFound ErrorKind = "not_found"

	// KindMethodNotAllowed indicates a known route hit with an unsupported verb.
	KindMethodNotAllowed ErrorKind = "method_not_allowed"

	// KindPayloadTooLarge indicates a body or upload over the configured limit.
	KindPayloadTooLarge ErrorKind = "payload_too_large"

	// KindRateLimit indicates the client exceeded its request quota.
	KindRateLimit ErrorKind = "rate_limit"

	// KindStore indicates a persistence failure.
	KindStore ErrorKind = "store"

	// KindNotImplemented indicates a mounted group with no behavior behind it.
	KindNotImplemented ErrorKind = "not_implemented"

	// KindInternal indicates an unclassified failure.
	KindInternal ErrorKind = "internal"
)

// APIError is a classified error that the error stage renders as
// {"success": false, "error": Message}.
type APIError struct {
	// Kind is the category of error
	Kind ErrorKind

	// Message is the client-visible message
	Message string

	// StatusCode overrides the kind's default status when non-zero
	StatusCode int

	// Err is the underlying cause, never shown to clients
	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *APIError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Kind {
	case KindMalformedInput, KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// NewAPIError creates a new API error.
func NewAPIError(kind ErrorKind, message string) *APIError {
	return &APIError{
		Kind:    kind,
		Message: message,
	}
}

// WithStatusCode sets a specific HTTP status code.
func (e *APIError) WithStatusCode(code int) *APIError {
	e.StatusCode = code
	return e
}

// WithCause records the underlying error.
func (e *APIError) WithCause(err error) *APIError {
	e.Err = err
	return e
}

// Convenience constructors for common errors

// ErrMalformedInput creates a malformed input error.
func ErrMalformedInput(message string) *APIError {
	return NewAPIError(KindMalformedInput, message)
}

// ErrValidation creates a validation error.
func ErrValidation(message string) *APIError {
	return NewAPIError(KindValidation, message)
}

// ErrNotFound creates a not found error.
func ErrNotFound(message string) *APIError {
	return NewAPIError(KindNotFound, message)
}

// ErrMethodNotAllowed creates a method not allowed error.
func ErrMethodNotAllowed(message string) *APIError {
	return NewAPIError(KindMethodNotAllowed, message)
}

// ErrPayloadTooLarge creates a payload too large error.
func ErrPayloadTooLarge(message string) *APIError {
	return NewAPIError(KindPayloadTooLarge, message)
}

// ErrRateLimit creates a rate limit error.
func ErrRateLimit(message string) *APIError {
	return NewAPIError(KindRateLimit, message)
}

// ErrStore creates a persistence error.
func ErrStore(message string) *APIError {
	return NewAPIError(KindStore, message)
}

// ErrNotImplemented creates a not implemented error.
func ErrNotImplemented(message string) *APIError {
	return NewAPIError(KindNotImplemented, message)
}

// ErrInternal creates an internal error.
func ErrInternal(message string) *APIError {
	return NewAPIError(KindInternal, message)
}

// AsAPIError extracts an *APIError from err's chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
