package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLoggerRequiresOutput(t *testing.T) {
	_, err := NewLogger(Config{Level: LevelInfo})
	assert.Error(t, err)
}

func TestNewLoggerFileRequiresPath(t *testing.T) {
	_, err := NewLogger(Config{
		Level: LevelInfo,
		File:  FileConfig{Enabled: true},
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "file.path")
}

func TestNewLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")
	log, err := NewLogger(Config{
		Level: LevelDebug,
		File: FileConfig{
			Enabled: true,
			Format:  FormatJSON,
			Path:    path,
		},
	})
	require.NoError(t, err)

	log.Info("hello", zap.String("key", "value"))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), `"key":"value"`)
}

func TestNewDefaultLogger(t *testing.T) {
	log, err := NewDefaultLogger()
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, parseLogLevel(LevelDebug))
	assert.Equal(t, zap.WarnLevel, parseLogLevel(LevelWarn))
	assert.Equal(t, zap.ErrorLevel, parseLogLevel(LevelError))
	// Unknown levels fall back to info
	assert.Equal(t, zap.InfoLevel, parseLogLevel("verbose"))
}
