// File: internal/observability/logger_test.go
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

	"github.com/xkilldash9x/billfetch-cli/internal/config"
)

// syncBuffer adapts bytes.Buffer to zapcore.WriteSyncer.
type syncBuffer struct {
	bytes.Buffer
}

func (s *syncBuffer) Sync() error { return nil }

func TestInitializeConsoleFormat(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf syncBuffer
	Initialize(config.LoggerConfig{Level: "debug", Format: "console", ServiceName: "billfetch-test"}, &buf)

	GetLogger().Info("hello from the console encoder", zap.String("k", "v"))

	out := buf.String()
	assert.Contains(t, out, "hello from the console encoder")
	assert.Contains(t, out, "billfetch-test.")
	// Console format colorizes the level.
	assert.Contains(t, out, "\x1b[32m")
}

func TestInitializeJSONFormat(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf syncBuffer
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "billfetch-test"}, &buf)

	GetLogger().Warn("structured entry", zap.Int("count", 3))

	line := strings.TrimSpace(buf.String())
	var record map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &record))
	assert.Equal(t, "structured entry", record["msg"])
	assert.Equal(t, float64(3), record["count"])
}

func TestInitializeRespectsLevel(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf syncBuffer
	Initialize(config.LoggerConfig{Level: "error", Format: "json", ServiceName: "billfetch-test"}, &buf)

	GetLogger().Info("should be filtered")
	assert.Empty(t, buf.String())

	GetLogger().Error("should appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestInitializeOnlyOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var first, second syncBuffer
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "first"}, &first)
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "second"}, &second)

	GetLogger().Info("who gets this")
	assert.Contains(t, first.String(), "who gets this")
	assert.Empty(t, second.String())
}

func TestInitializeWithLogFile(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logFile := filepath.Join(t.TempDir(), "billfetch.log")
	var buf syncBuffer
	Initialize(config.LoggerConfig{
		Level:       "info",
		Format:      "console",
		ServiceName: "billfetch-test",
		LogFile:     logFile,
		MaxSize:     1,
	}, &buf)

	GetLogger().Info("file-bound entry")
	require.NoError(t, GetLogger().Sync())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "file-bound entry")
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}
