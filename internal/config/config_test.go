package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/steadyline/overlay"
	"github.com/teranos/steadyline/session"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.CameraPermitted)
	assert.Equal(t, session.Back, cfg.Facing())
	assert.Equal(t, overlay.DefaultParams(), cfg.Params())
	assert.Equal(t, overlay.DefaultLimits(), cfg.Limits())
	assert.Equal(t, 3*time.Second, cfg.HintDelay)
	assert.Equal(t, 5*time.Second, cfg.GuidanceDelay)
	assert.Equal(t, 300*time.Millisecond, cfg.DoubleTapWindow)
	assert.Equal(t, 30, cfg.FPS)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "steadyline.log", cfg.LogFile)
	assert.Empty(t, cfg.MetricsAddr)
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("CAMERA_FACING", "front")
	t.Setenv("CAMERA_PERMITTED", "false")
	t.Setenv("TRACK_LENGTH", "450")
	t.Setenv("PERIOD", "2s")
	t.Setenv("HINT_DELAY", "1s")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("METRICS_ADDR", ":9464")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.CameraPermitted)
	assert.Equal(t, session.Front, cfg.Facing())
	assert.Equal(t, overlay.Params{TrackLength: 450, Period: 2 * time.Second}, cfg.Params())
	assert.Equal(t, time.Second, cfg.HintDelay)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, ":9464", cfg.MetricsAddr)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"unknown facing", "CAMERA_FACING", "sideways", "CAMERA_FACING"},
		{"inverted length range", "MIN_TRACK_LENGTH", "900", "slider limits"},
		{"zero min period", "MIN_PERIOD", "0s", "slider limits"},
		{"negative track length", "TRACK_LENGTH", "-1", "TRACK_LENGTH must be positive"},
		{"zero period", "PERIOD", "0s", "PERIOD must be positive"},
		{"negative acquire delay", "CAMERA_ACQUIRE_DELAY", "-1s", "CAMERA_ACQUIRE_DELAY"},
		{"zero hint delay", "HINT_DELAY", "0s", "HINT_DELAY"},
		{"zero double tap window", "DOUBLE_TAP_WINDOW", "0s", "DOUBLE_TAP_WINDOW"},
		{"fps too high", "FPS", "500", "FPS must be between 1 and 120"},
		{"unknown log format", "LOG_FORMAT", "xml", "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MalformedDuration(t *testing.T) {
	t.Setenv("PERIOD", "fast")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load environment variables")
}
