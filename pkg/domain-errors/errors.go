// Package domainerrors defines the error taxonomy services return to the
// transport layer. Stores speak in sentinel errors; services translate them
// into a Code so handlers can pick a status without inspecting messages.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code classifies a domain failure.
type Code string

const (
	// CodeValidation covers missing or empty required fields.
	CodeValidation Code = "validation_error"
	// CodeBadRequest covers malformed input such as undecodable JSON.
	CodeBadRequest Code = "bad_request"
	// CodeConflict covers unique key violations.
	CodeConflict Code = "conflict"
	// CodeNotFound covers lookups of unknown ids.
	CodeNotFound Code = "not_found"
	// CodeInternal covers store failures and anything unexpected.
	CodeInternal Code = "store_error"
	// CodeIdempotencyInProgress is returned when a request repeats an
	// Idempotency-Key whose first use has not finished.
	CodeIdempotencyInProgress Code = "idempotency_in_progress"
	// CodeRateLimited is returned when a client exceeds the request rate.
	CodeRateLimited Code = "rate_limited"
	// CodeInvariantViolation is returned by model constructors; services
	// convert it to CodeValidation before it reaches a handler.
	CodeInvariantViolation Code = "invariant_violation"
)

// Error is a coded domain error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a coded error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds a coded error around a cause. The cause stays reachable through
// errors.Is/As but is never written to clients.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias of HasCode kept for handler readability.
func Is(err error, code Code) bool { return HasCode(err, code) }

// ToHTTPStatus maps a code to its HTTP status. Conflicts are reported as 400
// to keep the API contract clients already rely on.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest, CodeConflict, CodeInvariantViolation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeIdempotencyInProgress:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
