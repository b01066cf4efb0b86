package app

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("info", "json", &buf)

	logger.Debug("hidden")
	logger.Info("visible", "step", "token")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "visible", rec["msg"])
	assert.Equal(t, "token", rec["step"])
}

func TestNewLogger_TextHasNoColorOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("debug", "text", &buf)

	logger.Debug("hello", "k", "v")

	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "k=v")
	assert.NotContains(t, out, "\x1b[")
}
