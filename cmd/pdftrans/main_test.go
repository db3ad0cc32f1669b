package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

func TestLoadConfigLogsThroughBootstrapLogger(t *testing.T) {
	t.Cleanup(func() { logger.SetGlobalLogger(nil) })
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		var buf bytes.Buffer
		mgr, err := loadConfig(filepath.Join(dir, "missing.json"), "", logger.NewWriterLogger(&buf, logger.LevelDebug))
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "config file not found")
		assert.Contains(t, buf.String(), "configuration loaded")
		assert.NotEmpty(t, mgr.GetConfig().OutputDirectory)
	})

	t.Run("output override", func(t *testing.T) {
		var buf bytes.Buffer
		mgr, err := loadConfig(filepath.Join(dir, "missing.json"), "out", logger.NewWriterLogger(&buf, logger.LevelDebug))
		require.NoError(t, err)
		assert.Equal(t, "out", mgr.GetConfig().OutputDirectory)
	})

	t.Run("invalid file is reported", func(t *testing.T) {
		path := filepath.Join(dir, "broken.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

		var buf bytes.Buffer
		_, err := loadConfig(path, "", logger.NewWriterLogger(&buf, logger.LevelDebug))
		assert.True(t, types.HasCode(err, types.ErrConfig))
		assert.Contains(t, buf.String(), "invalid config file format")
	})
}

func TestInitLoggingUsesConfiguredFile(t *testing.T) {
	t.Cleanup(func() { logger.Close() })
	logFile := filepath.Join(t.TempDir(), "logs", "pdftrans.log")

	require.NoError(t, initLogging(&types.Config{LogFile: logFile, LogLevel: "debug"}))
	logger.Debug("after init")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "after init")
}
