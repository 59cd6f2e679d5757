// Package autherr defines the stable, machine-readable error taxonomy the
// auth core surfaces to callers. Services return *Error for every
// caller-visible failure; the HTTP layer maps codes to statuses.
package autherr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation      Code = "validation"         // malformed input (field + reason)
	CodeConflict        Code = "conflict"           // duplicate email / identity
	CodeUnauthorized    Code = "unauthorized"       // bad credentials, expired/invalid session or token
	CodeInvariant       Code = "invariant_violation" // would remove last credential / last verified primary
	CodeTooManyRequests Code = "too_many_requests"  // rate limited or MFA attempts exhausted
	CodeNotFound        Code = "not_found"
	CodeExternal        Code = "external_service" // credential authority unreachable after bounded retries
)

type Error struct {
	Code    Code
	Message string
	Field   string // set for validation errors
	wrapped error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// Is allows errors.Is comparisons against taxonomy sentinels constructed
// with the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// HTTPStatus maps the error code to its HTTP status equivalent.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeInvariant:
		return http.StatusUnprocessableEntity
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeNotFound:
		return http.StatusNotFound
	case CodeExternal:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func Validation(field, message string) *Error {
	return &Error{Code: CodeValidation, Field: field, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Code: CodeUnauthorized, Message: message}
}

func Invariant(message string) *Error {
	return &Error{Code: CodeInvariant, Message: message}
}

func TooManyRequests(message string) *Error {
	return &Error{Code: CodeTooManyRequests, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message}
}

func External(message string, err error) *Error {
	return &Error{Code: CodeExternal, Message: message, wrapped: err}
}

// CodeOf extracts the taxonomy code from err, or "" when err is not a
// taxonomy error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
