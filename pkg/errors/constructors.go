package errors

import "fmt"

// New creates an error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an error with a code and a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error with a code and message wrapping a cause. A nil
// cause yields the same result as New.
func Wrap(cause error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Wrapf creates an error with a code and formatted message wrapping a cause.
func Wrapf(cause error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Validation creates a 400-category error.
func Validation(message string) *Error {
	return New(CodeValidationFailed, message)
}

// Unauthorized creates a 401-category error for external credentials.
func Unauthorized(message string) *Error {
	return New(CodeAuthenticationFailed, message)
}

// Forbidden creates a 403-category error.
func Forbidden(message string) *Error {
	return New(CodeAuthorizationDenied, message)
}

// NotFound creates a 404-category error.
func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

// Conflict creates a 409-category error.
func Conflict(message string) *Error {
	return New(CodeConflict, message)
}

// Internal creates a 500-category error wrapping a cause.
func Internal(cause error, message string) *Error {
	return Wrap(cause, CodeInternal, message)
}

// Unavailable creates a 503-category error wrapping a cause.
func Unavailable(cause error, message string) *Error {
	return Wrap(cause, CodeUnavailable, message)
}

// Timeout creates a 504-category error wrapping a cause.
func Timeout(cause error, message string) *Error {
	return Wrap(cause, CodeTimeout, message)
}
