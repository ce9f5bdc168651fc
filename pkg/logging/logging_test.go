package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		expected slog.Level
	}{
		{"", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := ParseLevel(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}

	_, err := ParseLevel("verbose")
	assert.ErrorIs(t, err, ErrUnknownLevel)
}

func TestConsoleLevel(t *testing.T) {
	var console bytes.Buffer
	logger, closer, err := New(Options{Level: "warn", Console: &console})
	require.NoError(t, err)
	defer closer()

	logger.Info("hidden")
	logger.Warn("shown", "function", "0x401000")

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "msg=shown")
	assert.Contains(t, console.String(), "function=0x401000")
}

func TestFanoutToFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "framevars.log")

	logger, closer, err := New(Options{Level: "info", File: path, Console: &console})
	require.NoError(t, err)

	logger.Debug("analyzed function", "slots", 4)
	logger.Info("stopped", "stop", 1)
	require.NoError(t, closer())

	assert.NotContains(t, console.String(), "analyzed function")
	assert.Contains(t, console.String(), "stopped")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2, "the file receives every level")

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "analyzed function", record["msg"])
	assert.Equal(t, float64(4), record["slots"])
}

func TestSetupInstallsDefault(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	var console bytes.Buffer
	logger, closer, err := Setup(Options{Console: &console})
	require.NoError(t, err)
	defer closer()

	assert.Same(t, logger, slog.Default())
	slog.Info("hello")
	assert.Contains(t, console.String(), "msg=hello")
}

func TestBadOptions(t *testing.T) {
	_, _, err := New(Options{Level: "loud"})
	assert.ErrorIs(t, err, ErrUnknownLevel)

	_, _, err = New(Options{File: filepath.Join(t.TempDir(), "missing", "dir", "log")})
	assert.Error(t, err)
}
