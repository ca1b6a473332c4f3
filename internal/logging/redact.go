package logging

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	redactedValue   = "[REDACTED]"
	redactedPattern = "[REDACTED:pattern]"
)

// RedactedString creates a zap field that records only the value's length.
// Use it at call sites that must never emit the value itself (api keys).
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// RedactingEncoder wraps a zapcore.Encoder and blanks out fields whose key
// matches the configured deny list, or whose string value matches one of the
// configured patterns. Key matching is case-insensitive.
type RedactingEncoder struct {
	zapcore.Encoder
	denyKeys map[string]struct{}
	patterns []*regexp.Regexp
}

// NewRedactingEncoder wraps an encoder with redaction rules.
// Returns an error if any redaction pattern fails to compile.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	if !cfg.Enabled {
		return &RedactingEncoder{Encoder: base}, nil
	}

	deny := make(map[string]struct{}, len(cfg.Fields))
	for _, f := range cfg.Fields {
		deny[strings.ToLower(f)] = struct{}{}
	}

	patterns := make([]*regexp.Regexp, 0, len(cfg.Patterns))
	for _, p := range cfg.Patterns {
		if len(p) > maxPatternLength {
			return nil, fmt.Errorf("redaction pattern too long (max %d chars): %q", maxPatternLength, p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}

	return &RedactingEncoder{
		Encoder:  base,
		denyKeys: deny,
		patterns: patterns,
	}, nil
}

func (e *RedactingEncoder) denied(key string) bool {
	_, ok := e.denyKeys[strings.ToLower(key)]
	return ok
}

// AddString redacts denied keys and pattern-matching values.
func (e *RedactingEncoder) AddString(key, val string) {
	if e.denied(key) {
		e.Encoder.AddString(key, redactedValue)
		return
	}
	for _, re := range e.patterns {
		if re.MatchString(val) {
			e.Encoder.AddString(key, redactedPattern)
			return
		}
	}
	e.Encoder.AddString(key, val)
}

func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if e.denied(key) {
		e.Encoder.AddByteString(key, []byte(redactedValue))
		return
	}
	e.Encoder.AddByteString(key, val)
}

func (e *RedactingEncoder) AddBinary(key string, val []byte) {
	if e.denied(key) {
		e.Encoder.AddBinary(key, []byte(redactedValue))
		return
	}
	e.Encoder.AddBinary(key, val)
}

// AddReflected replaces the whole reflected value when the key is denied.
// Pattern matching does not descend into reflected structs or maps; fields
// needing that should log through explicit zap.Object marshalers.
func (e *RedactingEncoder) AddReflected(key string, val interface{}) error {
	if e.denied(key) {
		e.Encoder.AddString(key, redactedValue)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *RedactingEncoder) AddArray(key string, arr zapcore.ArrayMarshaler) error {
	if e.denied(key) {
		e.Encoder.AddString(key, redactedValue)
		return nil
	}
	return e.Encoder.AddArray(key, arr)
}

func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.denied(key) {
		e.Encoder.AddString(key, redactedValue)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

// Clone creates a copy of the encoder sharing the compiled rules.
func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{
		Encoder:  e.Encoder.Clone(),
		denyKeys: e.denyKeys,
		patterns: e.patterns,
	}
}
