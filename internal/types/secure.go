package types

// redactedPlaceholder replaces secret values in logs and serialization.
const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds a sensitive value (gateway server key, vending API
// key, database URL) and redacts itself through fmt and JSON so the raw
// value never lands in a log line or a config dump. Call Unmask() at the
// point the plaintext is genuinely needed.
type SecretString string

// String returns the redacted placeholder; invoked by the fmt package via
// the Stringer interface.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value.
func (s SecretString) Unmask() string {
	return string(s)
}
