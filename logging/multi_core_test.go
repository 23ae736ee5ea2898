package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewMultiCore_TeesToBothWriters(t *testing.T) {
	var console, file bytes.Buffer
	core := NewMultiCore(zapcore.InfoLevel, zapcore.AddSync(&console), zapcore.AddSync(&file), true)
	logger := zap.New(core)

	logger.Debug("filtered")
	logger.Info("delivered", zap.Int("position", 3))
	require.NoError(t, logger.Sync())

	assert.Contains(t, console.String(), "delivered")
	assert.NotContains(t, console.String(), "filtered")
	assert.Contains(t, file.String(), `"position":3`)
	assert.Contains(t, file.String(), `"level":"info"`)
}

func TestNewFileWriterWithConfig_Writes(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "rotate.log")
	writer := NewFileWriterWithConfig(logPath, FileWriterConfig{MaxSizeMB: 1})

	_, err := writer.Write([]byte("line\n"))
	require.NoError(t, err)
	require.NoError(t, writer.Sync())

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "line\n", string(content))
}

func TestApplyFileWriterDefaults(t *testing.T) {
	cfg := applyFileWriterDefaults(FileWriterConfig{MaxBackups: 2})
	assert.Equal(t, DefaultMaxSizeMB, cfg.MaxSizeMB)
	assert.Equal(t, 2, cfg.MaxBackups)
	assert.Equal(t, DefaultMaxAgeDays, cfg.MaxAgeDays)
}

func TestEncoderConfigs(t *testing.T) {
	cfg := NewEncoderConfig()
	assert.Equal(t, FieldTimestamp, cfg.TimeKey)
	assert.Equal(t, FieldMessage, cfg.MessageKey)

	console := NewConsoleEncoderConfig()
	assert.Equal(t, FieldLevel, console.LevelKey)
	assert.NotNil(t, console.EncodeTime)
}
