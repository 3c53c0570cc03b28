package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProductionIsRedactedJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, "production", "info")
	log.Info("login", "email", "jane@example.com", "password", "hunter22", "refreshToken", "abc.def.ghi")
	log.Debug("hidden")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "login", line["msg"])
	assert.Equal(t, "jane@example.com", line["email"])
	assert.Equal(t, redacted, line["password"])
	assert.Equal(t, redacted, line["refreshToken"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestPrettyHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, "development", "debug").With("component", "auth").WithGroup("req")
	log.Debug("checked", "authorization", "Bearer abc", "status", 401)

	out := buf.String()
	assert.Contains(t, out, "checked")
	assert.Contains(t, out, "component")
	assert.Contains(t, out, "req.status")
	assert.Contains(t, out, redacted)
	assert.NotContains(t, out, "Bearer abc")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
