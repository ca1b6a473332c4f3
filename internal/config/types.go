package config

import "encoding/json"

// mask is what a non-empty Secret renders as in any output path.
const mask = "[REDACTED]"

// Secret holds a credential that must never appear in logs or serialized
// config. Every formatting and marshaling path emits a mask; the raw value
// is only reachable through Value.
type Secret string

func (s Secret) String() string {
	return s.masked()
}

// GoString covers the %#v verb, which bypasses Stringer.
func (s Secret) GoString() string {
	return "Secret(" + mask + ")"
}

// Value returns the raw credential.
func (s Secret) Value() string {
	return string(s)
}

// IsSet reports whether a value has been configured.
func (s Secret) IsSet() bool {
	return s != ""
}

func (s Secret) masked() string {
	if s == "" {
		return ""
	}
	return mask
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.masked())
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.masked()), nil
}

func (s Secret) MarshalYAML() (interface{}, error) {
	return s.masked(), nil
}

// UnmarshalYAML reads the raw value; masking only applies on output.
func (s *Secret) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	*s = Secret(raw)
	return nil
}

func (s *Secret) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Secret(raw)
	return nil
}

func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}
