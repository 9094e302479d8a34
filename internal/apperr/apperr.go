// Package apperr provides the structured error taxonomy shared by every
// component. Errors carry a machine-readable code that transports map to a
// status, and match each other by code through errors.Is.
package apperr

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeNotFound           Code = "NOT_FOUND"
	CodeForbidden          Code = "FORBIDDEN"
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodeInvalidTransition  Code = "INVALID_TRANSITION"
	CodeInvalidState       Code = "INVALID_STATE"
	CodeCapacityExceeded   Code = "CAPACITY_EXCEEDED"
	CodeAlreadyEnrolled    Code = "ALREADY_ENROLLED"
	CodeNotEnrolled        Code = "NOT_ENROLLED"
	CodeValidation         Code = "VALIDATION"
	CodeAlreadyCorrected   Code = "ALREADY_CORRECTED"
	CodeDistributionFailed Code = "DISTRIBUTION_FAILED"
	CodeInternal           Code = "INTERNAL"
)

// Sentinels for errors.Is checks. Only the code is compared.
var (
	ErrNotFound           = New(CodeNotFound, "not found")
	ErrForbidden          = New(CodeForbidden, "forbidden")
	ErrUnauthenticated    = New(CodeUnauthenticated, "unauthenticated")
	ErrInvalidTransition  = New(CodeInvalidTransition, "invalid status transition")
	ErrInvalidState       = New(CodeInvalidState, "operation not permitted in current state")
	ErrCapacityExceeded   = New(CodeCapacityExceeded, "event is at capacity")
	ErrAlreadyEnrolled    = New(CodeAlreadyEnrolled, "already enrolled in this event")
	ErrNotEnrolled        = New(CodeNotEnrolled, "not enrolled in this event")
	ErrValidation         = New(CodeValidation, "validation failed")
	ErrAlreadyCorrected   = New(CodeAlreadyCorrected, "entry already corrected")
	ErrDistributionFailed = New(CodeDistributionFailed, "reward distribution failed")
	ErrInternal           = New(CodeInternal, "internal error")
)

// Error is the domain error type.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// NotFound builds a NOT_FOUND error naming the missing resource.
func NotFound(resource string) *Error {
	return New(CodeNotFound, resource+" not found")
}

// Validation builds a VALIDATION error with the given message.
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// CodeOf returns the code of the first *Error in err's chain, or
// CodeInternal when there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HTTPStatus maps err to the HTTP status a transport should answer with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeNotFound, CodeNotEnrolled:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeInvalidTransition, CodeInvalidState, CodeCapacityExceeded,
		CodeAlreadyEnrolled, CodeAlreadyCorrected:
		return http.StatusConflict
	case CodeValidation:
		return http.StatusBadRequest
	case CodeDistributionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsClient reports whether err is the caller's mistake (4xx) rather than an
// internal failure.
func IsClient(err error) bool {
	status := HTTPStatus(err)
	return status >= 400 && status < 500
}

// Retryable reports whether the operation that produced err may be retried
// unchanged.
func Retryable(err error) bool {
	return CodeOf(err) == CodeDistributionFailed
}
