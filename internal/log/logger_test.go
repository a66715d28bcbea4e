package log

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/pulse/internal/config"
)

func TestParseLevelValid(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := parseLevel(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestParseLevelInvalid(t *testing.T) {
	for _, input := range []string{"invalid", "trace", "fatal", ""} {
		t.Run(input, func(t *testing.T) {
			_, err := parseLevel(input)
			assert.Error(t, err)
		})
	}
}

func TestNewJSONFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("quiet")
	logger.Warn("tap started", "tap_id", "abc", "inputs", 2)

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, `"msg":"tap started"`)
	assert.Contains(t, out, `"tap_id":"abc"`)
	assert.Contains(t, out, `"inputs":2`)
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(config.LogConfig{Level: "info", Format: "text"}, &buf)
	require.NoError(t, err)

	logger.Info("sampled", "component", "in")
	assert.Contains(t, buf.String(), "component=in")
}

func TestNewWithFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulse.log")
	cfg := config.LogConfig{
		Level:  "debug",
		Format: "json",
		Outputs: config.LogOutputsConfig{
			File: config.FileOutputConfig{
				Enabled: true,
				Path:    path,
				Rotation: config.RotationConfig{
					MaxSizeMB:  10,
					MaxBackups: 3,
					MaxAgeDays: 7,
				},
			},
		},
	}

	var buf bytes.Buffer
	logger, closer, err := New(cfg, &buf)
	require.NoError(t, err)

	logger.Debug("to both")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both")
	assert.Contains(t, buf.String(), "to both")
}

func TestNewRejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LogConfig
		want string
	}{
		{"level", config.LogConfig{Level: "loud", Format: "json"}, "invalid log level"},
		{"format", config.LogConfig{Level: "info", Format: "xml"}, "unsupported log format"},
		{"file path", config.LogConfig{Level: "info", Format: "json", Outputs: config.LogOutputsConfig{
			File: config.FileOutputConfig{Enabled: true},
		}}, "path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := New(tt.cfg, &bytes.Buffer{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestInitInstallsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	closer, err := Init(config.LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NoError(t, closer.Close())
	assert.NotSame(t, prev, slog.Default())
}
