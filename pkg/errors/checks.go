package errors

import "errors"

// AsError returns the first *Error in err's chain, or (nil, false).
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetCode returns the code of the first *Error in err's chain, or
// CodeInternal for foreign errors so unclassified failures default to 500.
func GetCode(err error) Code {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return CodeInternal
}

// HasCode reports whether the first *Error in err's chain carries code.
func HasCode(err error, code Code) bool {
	if e, ok := AsError(err); ok {
		return e.Code == code
	}
	return false
}

// IsAuthentication reports whether err maps to a 401 response.
func IsAuthentication(err error) bool {
	return GetCode(err).Category() == CategoryAuthentication
}

// IsAuthorization reports whether err maps to a 403 response.
func IsAuthorization(err error) bool {
	return GetCode(err).Category() == CategoryAuthorization
}

// IsValidation reports whether err maps to a 400 response.
func IsValidation(err error) bool {
	return GetCode(err).Category() == CategoryValidation
}

// IsNotFound reports whether err maps to a 404 response.
func IsNotFound(err error) bool {
	return GetCode(err).Category() == CategoryNotFound
}

// IsConflict reports whether err maps to a 409 response.
func IsConflict(err error) bool {
	return GetCode(err).Category() == CategoryConflict
}

// IsServerError reports whether err maps to a 5xx response.
func IsServerError(err error) bool {
	switch GetCode(err).Category() {
	case CategoryInternal, CategoryUnavailable, CategoryTimeout:
		return true
	}
	return false
}

// HTTPStatus returns the HTTP status for any error. Foreign errors map
// to 500.
func HTTPStatus(err error) int {
	if e, ok := AsError(err); ok {
		return e.HTTPStatus()
	}
	return New(CodeInternal, "").HTTPStatus()
}
