package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "autotype.log")
	logger, closeFn, err := New(Config{Level: "debug", Format: "plain", File: path, MaxSize: 1}, zapcore.AddSync(&console))
	require.NoError(t, err)

	logger.Debug("typing started", zap.Int("chars", 42))
	require.NoError(t, closeFn())

	assert.Contains(t, console.String(), "typing started")
	assert.Contains(t, console.String(), "DEBUG")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "typing started", entry["msg"])
	assert.Equal(t, "autotype", entry["logger"])
	assert.EqualValues(t, 42, entry["chars"])
}

func TestNewRespectsLevel(t *testing.T) {
	var console bytes.Buffer
	logger, closeFn, err := New(Config{Level: "WARN", Format: "json"}, zapcore.AddSync(&console))
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown")
	require.NoError(t, closeFn())

	out := console.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, _, err := New(Config{Level: "loud"}, zapcore.AddSync(&bytes.Buffer{}))
	assert.Error(t, err)

	_, _, err = New(Config{Format: "xml"}, zapcore.AddSync(&bytes.Buffer{}))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "xml"))
}

func TestConsoleFormatColorsLevel(t *testing.T) {
	var console bytes.Buffer
	logger, closeFn, err := New(Config{}, zapcore.AddSync(&console))
	require.NoError(t, err)
	logger.Info("hello")
	require.NoError(t, closeFn())
	assert.Contains(t, console.String(), colorCyan+"INFO"+colorReset)
	assert.Contains(t, console.String(), "autotype.")
}
