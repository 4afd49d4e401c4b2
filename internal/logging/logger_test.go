package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestInitLogger_JSON(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	log := InitLogger("warn", "json", &buf)
	require.Same(t, log, Logger)

	log.Info("dropped")
	slog.Warn("camera bind failed", "facing", "front")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "camera bind failed", entry["msg"])
	assert.Equal(t, "front", entry["facing"])
	assert.Equal(t, "steadyline", entry["app"])
}

func TestInitLogger_Text(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	InitLogger("debug", "text", &buf)
	Logger.Debug("frame", "fps", 30)

	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "fps=30")
}
