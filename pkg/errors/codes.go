package errors

import "strings"

// Code is a stable machine-readable error code. The prefix before the
// underscore is the category and drives HTTP status mapping.
type Code string

// Categories.
const (
	CategoryValidation     = "VAL"
	CategoryAuthentication = "AUTH"
	CategoryAuthorization  = "AUTHZ"
	CategoryNotFound       = "NF"
	CategoryConflict       = "CONF"
	CategoryInternal       = "INT"
	CategoryUnavailable    = "UNAVAIL"
	CategoryTimeout        = "TIMEOUT"
)

// Validation errors (400).
const (
	// CodeValidationFailed indicates malformed or missing request input.
	CodeValidationFailed Code = "VAL_001"

	// CodeValidationFormat indicates input that is present but not in an
	// acceptable format (bad email, short password, unknown role).
	CodeValidationFormat Code = "VAL_002"
)

// Authentication errors (401).
const (
	// CodeAuthenticationFailed indicates an external credential that
	// failed verification (signature, issuer, audience, or expiry).
	CodeAuthenticationFailed Code = "AUTH_001"

	// CodeAuthenticationLocalFailed indicates a local credential that
	// failed verification.
	CodeAuthenticationLocalFailed Code = "AUTH_002"

	// CodeAuthenticationMalformed indicates a credential envelope that
	// could not be decoded at all. Distinct from verification failure so
	// clients see "invalid token format" rather than "invalid token".
	CodeAuthenticationMalformed Code = "AUTH_003"

	// CodeAuthenticationSubjectGone indicates a cryptographically valid
	// local credential whose subject record no longer exists.
	CodeAuthenticationSubjectGone Code = "AUTH_004"

	// CodeAuthenticationKeyUnavailable indicates that provider key
	// material could not be obtained. Surfaces as 401, never 500: the
	// credential is unverifiable, not the service broken.
	CodeAuthenticationKeyUnavailable Code = "AUTH_005"

	// CodeAuthenticationMissing indicates no credential was presented.
	CodeAuthenticationMissing Code = "AUTH_006"
)

// Authorization errors (403).
const (
	// CodeAuthorizationDenied indicates an authenticated identity that
	// lacks the role a route requires.
	CodeAuthorizationDenied Code = "AUTHZ_001"
)

// Not-found errors (404).
const (
	CodeNotFound Code = "NF_001"
)

// Conflict errors (409).
const (
	// CodeConflict indicates a uniqueness collision, e.g. registering an
	// email that already has an account.
	CodeConflict Code = "CONF_001"
)

// Internal errors (500).
const (
	CodeInternal Code = "INT_001"
)

// Unavailable errors (503).
const (
	CodeUnavailable Code = "UNAVAIL_001"
)

// Timeout errors (504).
const (
	CodeTimeout Code = "TIMEOUT_001"
)

// Category returns the code's category prefix, or CategoryInternal when
// the code does not follow the PREFIX_NNN convention.
func (c Code) Category() string {
	idx := strings.LastIndex(string(c), "_")
	if idx <= 0 {
		return CategoryInternal
	}
	return string(c)[:idx]
}

func (c Code) String() string {
	return string(c)
}
