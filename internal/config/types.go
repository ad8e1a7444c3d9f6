package config

import (
	"fmt"
	"time"
)

// Duration wraps time.Duration so YAML and environment values can be written
// as human-readable strings ("30s", "5m", "1h30m").
type Duration time.Duration

// UnmarshalText parses a duration string. Negative durations are rejected
// because every timeout and interval in the configuration must be
// non-negative.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	if parsed < 0 {
		return fmt.Errorf("duration must be non-negative, got %s", parsed)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText renders the duration in time.Duration string form.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// MarshalJSON renders the duration as a JSON string ("30s").
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", time.Duration(d).String())), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Secret holds a sensitive string (API keys, database credentials).
//
// Its String, GoString and marshalling methods all redact the value, so a
// Secret can be logged or dumped with %v/%+v/%#v without leaking. Call
// Value() at the single point where the real credential is needed.
type Secret string

// String implements fmt.Stringer and always redacts.
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer so %#v also redacts.
func (s Secret) GoString() string {
	return "[REDACTED]"
}

// Value returns the actual secret value.
func (s Secret) Value() string {
	return string(s)
}

// IsSet reports whether a non-empty value was configured.
func (s Secret) IsSet() bool {
	return s != ""
}

// MarshalText redacts the secret in text-based encodings (YAML included).
func (s Secret) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}

// MarshalJSON redacts the secret in JSON output.
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}

// UnmarshalText accepts the raw value from config sources.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}
