package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// encodeFields runs fields through the redacting encoder and returns the
// encoded JSON line.
func encodeFields(t *testing.T, fields ...zap.Field) string {
	t.Helper()
	enc, err := newRedactingEncoder(newEncoder("json"), defaultRedaction())
	require.NoError(t, err)

	entry := zapcore.Entry{
		Level:   zapcore.InfoLevel,
		Time:    time.Now(),
		Message: "test entry",
	}
	buf, err := enc.EncodeEntry(entry, fields)
	require.NoError(t, err)
	return buf.String()
}

func TestRedactingEncoder_BlanksSensitiveKeys(t *testing.T) {
	out := encodeFields(t,
		zap.String("token", "ghp_supersecret"),
		zap.String("collector", "github"),
	)

	assert.NotContains(t, out, "ghp_supersecret")
	assert.Contains(t, out, `"token":"[REDACTED]"`)
	assert.Contains(t, out, `"collector":"github"`)
}

func TestRedactingEncoder_KeyMatchIsCaseInsensitive(t *testing.T) {
	out := encodeFields(t, zap.String("API_KEY", "abc123"))
	assert.NotContains(t, out, "abc123")
	assert.Contains(t, out, "[REDACTED]")
}

func TestRedactingEncoder_BlanksBearerValues(t *testing.T) {
	out := encodeFields(t, zap.String("header", "Bearer xyz.token.value"))
	assert.NotContains(t, out, "xyz.token.value")
	assert.Contains(t, out, "[REDACTED:pattern]")
}

func TestRedactingEncoder_PassesCleanValues(t *testing.T) {
	out := encodeFields(t,
		zap.String("workspace", "/home/dev/proj"),
		zap.Int("sections", 3),
	)
	assert.Contains(t, out, "/home/dev/proj")
	assert.Contains(t, out, `"sections":3`)
}

func TestRedactingEncoder_RedactsReflected(t *testing.T) {
	out := encodeFields(t, zap.Any("credential", map[string]string{"user": "u", "pass": "p"}))
	assert.NotContains(t, out, `"pass"`)
	assert.Contains(t, out, "[REDACTED]")
}

func TestRedactingEncoder_CloneKeepsRules(t *testing.T) {
	enc, err := newRedactingEncoder(newEncoder("json"), defaultRedaction())
	require.NoError(t, err)

	clone, ok := enc.Clone().(*redactingEncoder)
	require.True(t, ok)
	assert.True(t, clone.shouldRedactKey("password"))
}

func TestNewRedactingEncoder_InvalidPattern(t *testing.T) {
	_, err := newRedactingEncoder(newEncoder("json"), redaction{patterns: []string{"("}})
	assert.ErrorContains(t, err, "invalid redaction pattern")
}
