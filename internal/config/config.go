package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"

	"github.com/teranos/steadyline/overlay"
	"github.com/teranos/steadyline/session"
)

type Config struct {
	CameraPermitted    bool          `env:"CAMERA_PERMITTED" default:"true"`
	CameraFacing       string        `env:"CAMERA_FACING" default:"back"`
	CameraAcquireDelay time.Duration `env:"CAMERA_ACQUIRE_DELAY" default:"400ms"`
	AcquireTimeout     time.Duration `env:"CAMERA_ACQUIRE_TIMEOUT" default:"10s"`

	TrackLength    float64       `env:"TRACK_LENGTH" default:"320"`
	Period         time.Duration `env:"PERIOD" default:"1200ms"`
	MinTrackLength float64       `env:"MIN_TRACK_LENGTH" default:"100"`
	MaxTrackLength float64       `env:"MAX_TRACK_LENGTH" default:"600"`
	MinPeriod      time.Duration `env:"MIN_PERIOD" default:"400ms"`
	MaxPeriod      time.Duration `env:"MAX_PERIOD" default:"5s"`

	HintDelay       time.Duration `env:"HINT_DELAY" default:"3s"`
	GuidanceDelay   time.Duration `env:"GUIDANCE_DELAY" default:"5s"`
	DoubleTapWindow time.Duration `env:"DOUBLE_TAP_WINDOW" default:"300ms"`
	FPS             int           `env:"FPS" default:"30"`

	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`
	LogFile     string `env:"LOG_FILE" default:"steadyline.log"`
	MetricsAddr string `env:"METRICS_ADDR"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Facing returns the configured default facing.
func (c *Config) Facing() session.Facing {
	f, err := session.ParseFacing(c.CameraFacing)
	if err != nil {
		return session.Back
	}
	return f
}

// Params returns the initial overlay parameters.
func (c *Config) Params() overlay.Params {
	return overlay.Params{TrackLength: c.TrackLength, Period: c.Period}
}

// Limits returns the slider ranges.
func (c *Config) Limits() overlay.Limits {
	return overlay.Limits{
		MinLength: c.MinTrackLength,
		MaxLength: c.MaxTrackLength,
		MinPeriod: c.MinPeriod,
		MaxPeriod: c.MaxPeriod,
	}
}

func validate(cfg *Config) error {
	if _, err := session.ParseFacing(cfg.CameraFacing); err != nil {
		return fmt.Errorf("CAMERA_FACING: %w", err)
	}

	if err := cfg.Limits().Validate(); err != nil {
		return fmt.Errorf("slider limits: %w", err)
	}
	if cfg.TrackLength <= 0 {
		return errors.New("TRACK_LENGTH must be positive")
	}
	if cfg.Period <= 0 {
		return errors.New("PERIOD must be positive")
	}

	if cfg.CameraAcquireDelay < 0 {
		return errors.New("CAMERA_ACQUIRE_DELAY must not be negative")
	}
	if cfg.AcquireTimeout < 0 {
		return errors.New("CAMERA_ACQUIRE_TIMEOUT must not be negative")
	}
	if cfg.HintDelay <= 0 || cfg.GuidanceDelay <= 0 {
		return errors.New("HINT_DELAY and GUIDANCE_DELAY must be positive")
	}
	if cfg.DoubleTapWindow <= 0 {
		return errors.New("DOUBLE_TAP_WINDOW must be positive")
	}
	if cfg.FPS < 1 || cfg.FPS > 120 {
		return fmt.Errorf("FPS must be between 1 and 120, got %d", cfg.FPS)
	}

	switch strings.ToLower(cfg.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	return nil
}
