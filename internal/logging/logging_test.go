package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel_KnownLevels_MapCorrectly(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelDebug},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), "level %q", tt.in)
	}
}

func TestSetup_StderrOnly_ReturnsLogger(t *testing.T) {
	// Given a config with no file path
	cfg := DefaultConfig()

	// When setting up logging
	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	defer cleanup()

	// Then a usable logger is returned
	require.NotNil(t, logger)
	logger.Info("hello")
}

func TestSetup_WithFile_WritesToFile(t *testing.T) {
	// Given a config pointing at a temp log file
	dir := t.TempDir()
	path := filepath.Join(dir, "markdex.log")
	cfg := DefaultConfig()
	cfg.FilePath = path
	cfg.Format = "json"

	// When logging a line
	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	logger.Info("file target", "key", "value")
	cleanup()

	// Then the file contains the record
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "file target")
	assert.Contains(t, string(data), `"key":"value"`)
}

func TestRotatingWriter_ExceedsLimit_Rotates(t *testing.T) {
	// Given a writer with a tiny limit
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	w, err := NewRotatingWriter(path, 1, 3)
	require.NoError(t, err)
	defer w.Close()
	w.maxBytes = 64

	// When writing past the limit
	for i := 0; i < 10; i++ {
		_, err := fmt.Fprintf(w, "line %d padding padding padding\n", i)
		require.NoError(t, err)
	}

	// Then a rotated file exists alongside the live one
	_, err = os.Stat(path)
	assert.NoError(t, err)
	_, err = os.Stat(path + ".1")
	assert.NoError(t, err)
}

func TestRotatingWriter_KeepsAtMostMaxFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer w.Close()
	w.maxBytes = 32

	for i := 0; i < 20; i++ {
		_, err := fmt.Fprintf(w, "line %d padding padding\n", i)
		require.NoError(t, err)
	}

	// .1 and .2 may exist, .3 never
	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err))
}
