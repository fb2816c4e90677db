// Package errors provides the structured error type shared by all
// TalentForge API packages. Every failure that crosses a package boundary
// is represented as an *Error carrying a stable machine-readable code, a
// client-safe message, and an optional wrapped cause.
//
// Error codes are grouped by category, and the category determines the
// HTTP status a handler responds with:
//
//	VAL_xxx      validation       400
//	AUTH_xxx     authentication   401
//	AUTHZ_xxx    authorization    403
//	NF_xxx       not found        404
//	CONF_xxx     conflict         409
//	INT_xxx      internal         500
//	UNAVAIL_xxx  unavailable      503
//	TIMEOUT_xxx  timeout          504
//
// The authorization gate relies on this split to keep credential failures
// (401) strictly separate from role failures (403) and infrastructure
// faults (5xx). Messages on AUTH and AUTHZ errors must never reveal
// whether a record exists or why a signature failed; that detail belongs
// in the Cause, which is logged server-side and never serialized to a
// client.
package errors

import (
	"fmt"
	"net/http"
)

// Error is a structured error with a stable code, a client-safe message,
// and an optional wrapped cause. It implements the standard error
// interface and participates in errors.Is / errors.As chains.
type Error struct {
	// Code is the machine-readable error code, e.g. "AUTH_001".
	Code Code

	// Message is safe to return to API clients. It must not contain
	// internal paths, SQL, or credential material.
	Message string

	// Cause is the underlying error, if any. It is for logs and audit
	// trails only.
	Cause error

	// Details carries structured context (field names, identifiers).
	// Handlers expose it only outside production.
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, supporting errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error's code category to an HTTP status code.
func (e *Error) HTTPStatus() int {
	switch e.Code.Category() {
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryAuthentication:
		return http.StatusUnauthorized
	case CategoryAuthorization:
		return http.StatusForbidden
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryConflict:
		return http.StatusConflict
	case CategoryUnavailable:
		return http.StatusServiceUnavailable
	case CategoryTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WithDetail returns a copy of the error with one detail key added. The
// receiver is not modified, so shared sentinel-style errors stay clean.
func (e *Error) WithDetail(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Cause:   e.Cause,
		Details: details,
	}
}

// Detail returns the detail stored under key, or nil.
func (e *Error) Detail(key string) any {
	if e.Details == nil {
		return nil
	}
	return e.Details[key]
}
