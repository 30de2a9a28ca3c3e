package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("create logger with console output", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := Config{
			Level:   "info",
			Console: true,
			Pretty:  false,
			Output:  &buf,
		}

		logger, err := New(cfg)
		require.NoError(t, err)
		defer logger.Close()

		logger.Info().Str("backend", "codellama").Msg("Run started")
		logger.Debug().Msg("hidden")

		assert.Contains(t, buf.String(), `"message":"Run started"`)
		assert.Contains(t, buf.String(), `"backend":"codellama"`)
		assert.NotContains(t, buf.String(), "hidden")
	})

	t.Run("create logger with file output", func(t *testing.T) {
		tmpDir := t.TempDir()
		logFile := filepath.Join(tmpDir, "logs", "test.log")

		cfg := Config{
			Level:   "debug",
			File:    logFile,
			MaxSize: 1,
			Console: false,
		}

		logger, err := New(cfg)
		require.NoError(t, err)
		logger.Info().Msg("test message")
		require.NoError(t, logger.Close())

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "test message")
	})

	t.Run("redaction applies to every writer", func(t *testing.T) {
		tmpDir := t.TempDir()
		logFile := filepath.Join(tmpDir, "test.log")
		var buf bytes.Buffer

		cfg := Config{
			Level:     "info",
			File:      logFile,
			Console:   true,
			Output:    &buf,
			Redaction: true,
		}

		logger, err := New(cfg)
		require.NoError(t, err)
		assert.NotNil(t, logger.redactor)

		logger.Info().Str("api_key", "sk-or-v1-0123456789abcdef0123456789abcdef").Msg("Backend configured")
		require.NoError(t, logger.Close())

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		for _, out := range []string{buf.String(), string(content)} {
			assert.Contains(t, out, "[REDACTED]")
			assert.NotContains(t, out, "sk-or-v1")
		}
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		logger, err := New(Config{Level: "loud"})
		require.NoError(t, err)
		defer logger.Close()

		assert.Equal(t, zerolog.InfoLevel, logger.GetZerolog().GetLevel())
	})
}

func TestLoggerMethods(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "debug", Console: true, Output: &buf})
	require.NoError(t, err)
	defer logger.Close()

	logger.Debug().Msg("debug message")
	logger.Info().Msg("info message")
	logger.Warn().Msg("warn message")
	logger.Error().Msg("error message")

	for _, msg := range []string{"debug message", "info message", "warn message", "error message"} {
		assert.Contains(t, buf.String(), msg)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Pretty)
	assert.True(t, cfg.Redaction)
	assert.Equal(t, 100, cfg.MaxSize)
	assert.Equal(t, 7, cfg.MaxAge)
	assert.True(t, cfg.Compress)
}

func TestGetZerolog(t *testing.T) {
	logger, err := New(Config{Level: "warn"})
	require.NoError(t, err)
	defer logger.Close()

	zl := logger.GetZerolog()
	assert.Equal(t, zerolog.WarnLevel, zl.GetLevel())
}
