package models

import (
	"errors"
	"fmt"
)

// Error codes. Every failure that reaches a caller of the client packages carries one of these.
const (
	CodeNetworkUnavailable  = "NETWORK_UNAVAILABLE"
	CodeUnauthenticated     = "UNAUTHENTICATED"
	CodeSessionExpired      = "SESSION_EXPIRED"
	CodeValidation          = "VALIDATION_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeAuthorizationDenied = "AUTHORIZATION_DENIED"
	CodeInternal            = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Message returns whichever human-readable field the server filled in.
func (r ErrorResponse) Message() string {
	if r.Detail != "" {
		return r.Detail
	}
	return r.Error
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNetworkError(err error) *AppError {
	return &AppError{
		Code:    CodeNetworkUnavailable,
		Message: "Backend unavailable",
		Err:     err,
	}
}

func NewUnauthenticatedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthenticated,
		Message: message,
	}
}

func NewSessionExpiredError(err error) *AppError {
	return &AppError{
		Code:    CodeSessionExpired,
		Message: "Session expired. Please login again.",
		Err:     err,
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

// NewNotFoundMessage reports a missing resource with a server-supplied message.
func NewNotFoundMessage(message string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: message,
	}
}

func NewAuthorizationError(message string) *AppError {
	return &AppError{
		Code:    CodeAuthorizationDenied,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal error",
		Err:     err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// DegradedError reports that an operation completed locally because the
// backend could not be reached. The result is valid but not yet on the server.
type DegradedError struct {
	Operation string
	Err       error
}

func (e *DegradedError) Error() string {
	return fmt.Sprintf("%s saved offline: %v", e.Operation, e.Err)
}

func (e *DegradedError) Unwrap() error {
	return e.Err
}

// IsDegraded reports whether err signals degraded (offline) success.
func IsDegraded(err error) bool {
	var d *DegradedError
	return errors.As(err, &d)
}
