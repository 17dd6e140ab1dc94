package app

import (
	"bytes"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{AppEnv: "staging", LogFormat: "json", LogLevel: "warn"})

	logger.Info("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn("tenant misconfigured")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "tenant misconfigured", line["msg"])
	assert.Equal(t, "staging", line["env"])
}

func TestNewLoggerDefaultsToText(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, nil).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}
