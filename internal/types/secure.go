package types

// redactedPlaceholder replaces secret values in logs and serialized output.
const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds a credential (database URL, broker API key) that must
// never appear in logs or JSON. fmt and encoding/json only ever see the
// placeholder; Unmask returns the plaintext for the one call that needs it.
type SecretString string

// String returns the redacted placeholder.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON encodes the redacted placeholder.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value. Callers are limited to transport
// setup: SMTP auth, HTTP Authorization headers, connection strings.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsEmpty reports whether no secret was configured.
func (s SecretString) IsEmpty() bool {
	return s == ""
}
