package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teranos/steadyline"
	"github.com/teranos/steadyline/camera"
	"github.com/teranos/steadyline/internal/config"
	"github.com/teranos/steadyline/internal/logging"
	"github.com/teranos/steadyline/internal/metrics"
	"github.com/teranos/steadyline/overlay"
	"github.com/teranos/steadyline/session"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupLogging(cfg *config.Config) func() {
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatalf("Failed to open log file %s: %v", cfg.LogFile, err)
	}
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat, f)
	return func() { _ = f.Close() }
}

func serveMetrics(reg *prometheus.Registry, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "addr", addr, "error", err)
		}
	}()
	slog.Info("Serving metrics", "addr", addr)
	return srv
}

func run(cfg *config.Config) error {
	clock := clockwork.NewRealClock()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	sessionMetrics := metrics.NewSession(reg)
	overlayMetrics := metrics.NewOverlay(reg)

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(reg, cfg.MetricsAddr)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				slog.Error("Metrics server shutdown error", "error", err)
			}
		}()
	}

	cam := camera.NewSimulated(camera.SimulatedOptions{
		Clock:        clock,
		AcquireDelay: cfg.CameraAcquireDelay,
	})

	exec := steadyline.NewProgramExecutor()
	ctrl, err := session.NewController(session.Options{
		Source:         cam,
		Executor:       exec,
		DefaultFacing:  cfg.Facing(),
		AcquireTimeout: cfg.AcquireTimeout,
		Clock:          clock,
		Metrics:        sessionMetrics,
		OnChange: func(s session.State) {
			slog.Debug("Camera session state changed", "state", s.String())
		},
	})
	if err != nil {
		return fmt.Errorf("create session controller: %w", err)
	}

	anim := overlay.NewAnimator(clock, cfg.Params(), cfg.Limits()).
		WithLogger(slog.Default()).
		WithMetrics(overlayMetrics)

	vf, err := steadyline.NewViewfinder(steadyline.Options{
		Controller:      ctrl,
		Animator:        anim,
		Instructions:    overlay.NewInstructionSequence(clock.Now(), cfg.HintDelay, cfg.GuidanceDelay),
		Surface:         steadyline.NewTerminalSurface("terminal"),
		Executor:        exec,
		Clock:           clock,
		FPS:             cfg.FPS,
		DoubleTapWindow: cfg.DoubleTapWindow,
	})
	if err != nil {
		return fmt.Errorf("create viewfinder: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := tea.NewProgram(vf, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	go exec.Run(ctx, p)

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run viewfinder: %w", err)
	}

	// Quit already released the camera; a killed program did not.
	ctrl.Stop()
	slog.Info("Camera released", "summary", ctrl.Trips().Summary())
	return nil
}

func main() {
	cfg := setupConfig()

	closeLog := setupLogging(cfg)
	defer closeLog()

	slog.Info("Application starting", "facing", cfg.CameraFacing, "fps", cfg.FPS)

	if !cfg.CameraPermitted {
		slog.Info("Camera permission not granted, exiting")
		fmt.Println("Camera permission not granted.")
		return
	}

	if err := run(cfg); err != nil {
		slog.Error("Viewfinder failed", "error", err)
		closeLog()
		os.Exit(1)
	}
}
