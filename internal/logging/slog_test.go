package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/busbench/types"
)

func TestSlogLogger_ImplementsInterface(t *testing.T) {
	t.Helper()
	var _ types.Logger = (*SlogLogger)(nil)
	var _ types.Logger = (*NopLogger)(nil)
}

func TestNewSlogDefault(t *testing.T) {
	logger := NewSlogDefault()

	require.NotNil(t, logger)
	require.NotNil(t, logger.logger)
}

func TestSlogLogger_Levels(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := NewSlog(slog.New(handler))

	logger.Debug("debug message", "partition", "0")
	logger.Info("info message", "events", 20)
	logger.Warn("warning message", "partitions", 2)
	logger.Error("error message", "error", "timeout")

	output := buf.String()
	assert.Contains(t, output, "level=DEBUG")
	assert.Contains(t, output, "partition=0")
	assert.Contains(t, output, "level=INFO")
	assert.Contains(t, output, "events=20")
	assert.Contains(t, output, "level=WARN")
	assert.Contains(t, output, "partitions=2")
	assert.Contains(t, output, "level=ERROR")
	assert.Contains(t, output, "error=timeout")
}

func TestSlogLogger_LevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelWarn})
	logger := NewSlog(slog.New(handler))

	logger.Debug("debug message")
	logger.Info("info message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")

	logger.Warn("warn message")
	logger.Error("error message")

	output = buf.String()
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}

func TestNew(t *testing.T) {
	t.Run("json format", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger, err := New(buf, "debug", "json")
		require.NoError(t, err)

		logger.Debug("batch dispatched", "events", 5)
		assert.Contains(t, buf.String(), `"msg":"batch dispatched"`)
		assert.Contains(t, buf.String(), `"events":5`)
	})

	t.Run("defaults to info text", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger, err := New(buf, "", "")
		require.NoError(t, err)

		logger.Debug("hidden")
		logger.Info("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "msg=shown")
	})

	t.Run("rejects unknown level", func(t *testing.T) {
		_, err := New(&bytes.Buffer{}, "verbose", "text")
		require.Error(t, err)
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		_, err := New(&bytes.Buffer{}, "info", "xml")
		require.Error(t, err)
	})
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
}
