package logging

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// redaction lists field names whose values are never encoded and value
// patterns that blank a string field wholesale.
type redaction struct {
	fields   []string
	patterns []string
}

func defaultRedaction() redaction {
	return redaction{
		fields: []string{
			"password", "secret", "token", "api_key",
			"authorization", "bearer", "credential", "private_key",
		},
		patterns: []string{
			`(?i)bearer\s+\S+`,
			`(?i)api[_-]?key[=:]\s*\S+`,
		},
	}
}

// redactingEncoder wraps a zapcore.Encoder so sensitive fields are blanked
// before they reach any sink.
type redactingEncoder struct {
	zapcore.Encoder
	redactFields map[string]bool
	redactRegex  []*regexp.Regexp
}

func newRedactingEncoder(base zapcore.Encoder, cfg redaction) (*redactingEncoder, error) {
	fields := make(map[string]bool, len(cfg.fields))
	for _, f := range cfg.fields {
		fields[strings.ToLower(f)] = true
	}

	patterns := make([]*regexp.Regexp, 0, len(cfg.patterns))
	for _, p := range cfg.patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}

	return &redactingEncoder{
		Encoder:      base,
		redactFields: fields,
		redactRegex:  patterns,
	}, nil
}

func (e *redactingEncoder) shouldRedactKey(key string) bool {
	return e.redactFields[strings.ToLower(key)]
}

// EncodeEntry sanitizes call-site fields before the wrapped encoder
// serializes them. The wrapped encoder iterates those fields itself, so they
// never pass through the Add* overrides.
func (e *redactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	if len(fields) > 0 {
		sanitized := make([]zapcore.Field, len(fields))
		for i, f := range fields {
			sanitized[i] = e.sanitizeField(f)
		}
		fields = sanitized
	}
	return e.Encoder.EncodeEntry(ent, fields)
}

func (e *redactingEncoder) sanitizeField(f zapcore.Field) zapcore.Field {
	if e.shouldRedactKey(f.Key) {
		return zapcore.Field{Key: f.Key, Type: zapcore.StringType, String: "[REDACTED]"}
	}
	if f.Type == zapcore.StringType {
		for _, re := range e.redactRegex {
			if re.MatchString(f.String) {
				return zapcore.Field{Key: f.Key, Type: zapcore.StringType, String: "[REDACTED:pattern]"}
			}
		}
	}
	return f
}

// AddString redacts sensitive field names and value patterns.
func (e *redactingEncoder) AddString(key, val string) {
	if e.shouldRedactKey(key) {
		e.Encoder.AddString(key, "[REDACTED]")
		return
	}
	for _, re := range e.redactRegex {
		if re.MatchString(val) {
			e.Encoder.AddString(key, "[REDACTED:pattern]")
			return
		}
	}
	e.Encoder.AddString(key, val)
}

// AddByteString redacts sensitive field names.
func (e *redactingEncoder) AddByteString(key string, val []byte) {
	if e.shouldRedactKey(key) {
		e.Encoder.AddByteString(key, []byte("[REDACTED]"))
		return
	}
	e.Encoder.AddByteString(key, val)
}

// AddReflected redacts the whole reflected value for sensitive keys.
func (e *redactingEncoder) AddReflected(key string, val interface{}) error {
	if e.shouldRedactKey(key) {
		e.Encoder.AddString(key, "[REDACTED]")
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

// AddObject redacts sensitive field names.
func (e *redactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.shouldRedactKey(key) {
		e.Encoder.AddString(key, "[REDACTED]")
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

// Clone creates a copy of the encoder.
func (e *redactingEncoder) Clone() zapcore.Encoder {
	return &redactingEncoder{
		Encoder:      e.Encoder.Clone(),
		redactFields: e.redactFields,
		redactRegex:  e.redactRegex,
	}
}
