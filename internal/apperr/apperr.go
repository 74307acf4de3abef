// Package apperr defines the structured error taxonomy shared by the store,
// service and transport layers. Every failure surfaced to a caller carries a
// stable code that the HTTP layer maps to a status.
package apperr

import (
	"errors"
	"fmt"
)

// Error codes returned to callers.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeConflict   = "CONFLICT"
	CodeStorage    = "STORAGE_ERROR"
	CodeDomain     = "DOMAIN_ERROR"
)

// Error is a structured application error.
type Error struct {
	Code    string
	Message string
	Details map[string]interface{}
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetails attaches extra structure to the error and returns it.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// Validation reports malformed or out-of-bounds input.
func Validation(message string) *Error {
	return &Error{Code: CodeValidation, Message: message}
}

// NotFound reports a missing record.
func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message}
}

// Conflict reports a uniqueness violation.
func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

// Storage wraps a failed read/write/backup operation.
func Storage(message string, cause error) *Error {
	return &Error{Code: CodeStorage, Message: message, cause: cause}
}

// Domain reports a business-rule violation that is not an input-shape
// problem, e.g. a stock adjustment that would go negative.
func Domain(message string) *Error {
	return &Error{Code: CodeDomain, Message: message}
}

// CodeOf extracts the taxonomy code from err, or returns "" when err is not
// an application error.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
