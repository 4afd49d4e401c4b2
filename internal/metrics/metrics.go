// Package metrics defines the Prometheus collectors for camera sessions and the overlay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session holds the camera session collectors.
type Session struct {
	// Acquisitions counts provider acquisitions by result (ok, error, stale)
	Acquisitions *prometheus.CounterVec

	// Binds counts bind attempts by facing and result (ok, error)
	Binds *prometheus.CounterVec

	// Unbinds counts unbind-all calls, including no-op ones
	Unbinds prometheus.Counter

	// ActiveSessions is 1 while a camera is bound to a surface, 0 otherwise
	ActiveSessions prometheus.Gauge

	// BindDuration tracks how long the provider takes to bind
	BindDuration prometheus.Histogram
}

// Overlay holds the overlay animator collectors.
type Overlay struct {
	// ParameterUpdates counts slider writes by parameter and outcome (applied, clamped, rejected)
	ParameterUpdates *prometheus.CounterVec
}

// NewSession registers the session collectors with reg. A nil reg yields working,
// unregistered collectors, which is what tests and embedders without /metrics want.
func NewSession(reg prometheus.Registerer) *Session {
	factory := promauto.With(reg)

	return &Session{
		Acquisitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "camera_provider_acquisitions_total",
				Help: "Camera provider acquisitions by result",
			},
			[]string{"result"},
		),
		Binds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "camera_binds_total",
				Help: "Camera bind attempts by facing and result",
			},
			[]string{"facing", "result"},
		),
		Unbinds: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "camera_unbinds_total",
				Help: "Camera unbind-all calls",
			},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "camera_active_sessions",
				Help: "Number of camera sessions currently bound to a surface",
			},
		),
		BindDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "camera_bind_duration_seconds",
				Help:    "Time spent in the provider bind call",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5},
			},
		),
	}
}

// NewOverlay registers the overlay collectors with reg; nil behaves as in NewSession.
func NewOverlay(reg prometheus.Registerer) *Overlay {
	factory := promauto.With(reg)

	return &Overlay{
		ParameterUpdates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "overlay_parameter_updates_total",
				Help: "Overlay parameter writes by parameter and outcome",
			},
			[]string{"parameter", "outcome"},
		),
	}
}
