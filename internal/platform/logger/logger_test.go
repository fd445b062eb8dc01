package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contacts/internal/platform/config"
)

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, config.LogConfig{Level: "warn", Format: "json"})

	log.Info("dropped")
	log.Warn("kept", "k", "v")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "v", line["k"])
}

func TestNewWithWriterFallbacks(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, config.LogConfig{Level: "loud", Format: "xml"})
	require.NotNil(t, log)

	out := buf.String()
	assert.Contains(t, out, "could not parse logger format")
	assert.Contains(t, out, "could not parse logger level")
}

func TestNewDevNullDiscards(t *testing.T) {
	log := New(config.LogConfig{File: os.DevNull})
	assert.False(t, log.Enabled(t.Context(), 12))
}
