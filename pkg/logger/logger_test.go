package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("nonsense"))
}

func TestNewWithOptionsWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dialogue.log")

	log, err := NewWithOptions(Options{Level: "info", File: path, MaxSizeMB: 1, MaxBackups: 1})
	require.NoError(t, err)

	log.WithSession("sess-1").Info("turn appended", zap.String("persona", "A"))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"session_id":"sess-1"`)
	assert.Contains(t, string(data), `"persona":"A"`)
}

func TestNewNop(t *testing.T) {
	log := NewNop()
	log.With(zap.String("k", "v")).Warn("discarded")
}

func TestNewWithOptionsHonorsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dialogue.log")

	log, err := NewWithOptions(Options{Level: "warn", Encoding: "json", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	log.Info("thinking started")
	log.Warn("transcript write failed")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "thinking started")
	assert.Contains(t, string(data), "transcript write failed")
}
