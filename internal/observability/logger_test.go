// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/jamf-mcp/internal/config"
)

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) Sync() error { return nil }

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestInitialize(t *testing.T) {
	t.Cleanup(ResetForTest)

	t.Run("console logger with colors", func(t *testing.T) {
		ResetForTest()
		out := &syncBuffer{}
		Initialize(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "jamf-mcp",
			Colors:      config.ColorConfig{Info: "green"},
		}, out)

		GetLogger().Named("sofa").Info("Feed refreshed.")
		Sync()

		s := out.String()
		assert.Contains(t, s, colorGreen+"INFO"+colorReset)
		assert.Contains(t, s, "jamf-mcp.sofa.")
		assert.Contains(t, s, "Feed refreshed.")
	})

	t.Run("json logger", func(t *testing.T) {
		ResetForTest()
		out := &syncBuffer{}
		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"}, out)

		GetLogger().Warn("Vulnerability feed unavailable.", zap.String("key", "value"))
		Sync()

		var entry map[string]interface{}
		require.NoError(t, jsoniter.Unmarshal([]byte(out.String()), &entry))
		assert.Equal(t, "warn", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "Vulnerability feed unavailable.", entry["msg"])
		assert.Equal(t, "value", entry["key"])
	})

	t.Run("level filters output", func(t *testing.T) {
		ResetForTest()
		out := &syncBuffer{}
		Initialize(config.LoggerConfig{Level: "warn", Format: "json"}, out)
		GetLogger().Info("hidden")
		assert.Empty(t, out.String())
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		ResetForTest()
		out := &syncBuffer{}
		Initialize(config.LoggerConfig{Level: "verbose", Format: "json"}, out)
		GetLogger().Debug("hidden")
		GetLogger().Info("shown")
		assert.NotContains(t, out.String(), "hidden")
		assert.Contains(t, out.String(), "shown")
	})

	t.Run("rotating log file", func(t *testing.T) {
		ResetForTest()
		path := filepath.Join(t.TempDir(), "jamf-mcp.log")
		Initialize(config.LoggerConfig{Level: "debug", Format: "console", LogFile: path, MaxSize: 1}, zapcore.AddSync(&bytes.Buffer{}))

		GetLogger().Error("This should go to the file.")
		Sync()

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"msg":"This should go to the file."`, "the file sink is always JSON")
	})

	t.Run("only the first call takes effect", func(t *testing.T) {
		ResetForTest()
		out := &syncBuffer{}
		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "First"}, out)
		first := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "Second"}, out)

		assert.Same(t, first, GetLogger())
		GetLogger().Info("test")
		assert.Contains(t, out.String(), "First")
		assert.NotContains(t, out.String(), "Second")
	})
}

func TestGetLogger_Fallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)
	require.NotNil(t, GetLogger())
	assert.Nil(t, globalLogger.Load(), "the fallback is not stored")
}
