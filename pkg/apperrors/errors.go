// Package apperrors classifies failures of the billing engine so HTTP
// handlers can map them to status codes without inspecting messages.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of an application error.
type ErrorType string

const (
	// ErrorTypeValidation indicates an unparseable or missing input.
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeNotFound indicates a resource is absent from the clinic scope.
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeUpstream indicates the record store could not be reached.
	ErrorTypeUpstream ErrorType = "UPSTREAM_UNAVAILABLE"

	// ErrorTypeInternal indicates anything else.
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// AppError represents an application error.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new validation error.
func NewValidationError(message string) *AppError {
	return &AppError{Type: ErrorTypeValidation, Message: message}
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(message string) *AppError {
	return &AppError{Type: ErrorTypeNotFound, Message: message}
}

// NewUpstreamError wraps a store failure.
func NewUpstreamError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeUpstream, Message: message, Err: err}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(message string, err error) *AppError {
	return &AppError{Type: ErrorTypeInternal, Message: message, Err: err}
}

// TypeOf returns the type of the first AppError in err's chain, or
// ErrorTypeInternal when there is none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// Is reports whether err carries an AppError of the given type.
func Is(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// HTTPStatus maps err to the status code a handler should answer with.
func HTTPStatus(err error) int {
	switch TypeOf(err) {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeUpstream:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns a message safe to show to API clients.
func PublicMessage(err error) string {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return "internal server error"
	}
	switch appErr.Type {
	case ErrorTypeValidation, ErrorTypeNotFound:
		return appErr.Message
	case ErrorTypeUpstream:
		return "record store unavailable"
	default:
		return "internal server error"
	}
}
