package auth

// Secret is a string that redacts itself in logs, format verbs, and
// serialized output. It guards the local signing key against accidental
// exposure through error messages or config dumps.
type Secret string

const redactedValue = "[REDACTED]"

func (s Secret) String() string { return redactedValue }

// GoString redacts %#v output.
func (s Secret) GoString() string { return redactedValue }

// MarshalText redacts the secret in JSON and YAML output.
func (s Secret) MarshalText() ([]byte, error) { return []byte(redactedValue), nil }

// Value returns the actual secret content.
func (s Secret) Value() string { return string(s) }
