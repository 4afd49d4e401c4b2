// Package trip classifies the failures a camera session can run into.
//
// A session never crashes the process: when acquisition or binding goes wrong the
// controller "trips", records what happened with enough context to diagnose it, and
// settles into an inert state from which a later user action can recover.
package trip

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Failure categories.
const (
	// ProviderAcquisition means the camera provider could not be obtained.
	ProviderAcquisition = "provider_acquisition"
	// Bind means attaching a camera stream to the surface failed.
	Bind = "bind"
	// InvalidParameter means a slider delivered a value outside the accepted range.
	InvalidParameter = "invalid_parameter"
)

// Trip represents a failure with the context it happened in.
//
// Example usage:
//
//	t := NewTrip(Bind, "bind failed", Context{"facing": "front", "generation": 3}).
//		WithCause(err)
//
//	if t.CanRecover() {
//	    // keep going, the next select() may succeed
//	}
type Trip struct {
	Type      string    // Failure category
	Message   string    // Human-readable description
	Context   Context   // Additional debugging information
	Timestamp time.Time // When the failure occurred
	Attempt   int       // Which attempt this was
	Severity  Severity  // How serious this failure is
	Cause     error     // Underlying error, if any
}

// Context carries structured debugging information for trips.
type Context map[string]interface{}

// Severity indicates how serious a trip is and how it should be handled.
type Severity int

const (
	// Stumble is a minor issue that is absorbed at the boundary.
	// Examples: an out of range slider value that was clamped
	Stumble Severity = iota

	// Error is a failure that leaves a component inert until the next user action.
	// Examples: bind failure, provider acquisition failure
	Error

	// Fall is a failure the component cannot recover from on its own.
	Fall
)

func (s Severity) String() string {
	switch s {
	case Stumble:
		return "stumble"
	case Error:
		return "error"
	case Fall:
		return "fall"
	default:
		return "unknown"
	}
}

// NewTrip creates a new trip with the current timestamp and Error severity.
func NewTrip(errorType, message string, context Context) *Trip {
	return &Trip{
		Type:      errorType,
		Message:   message,
		Context:   context,
		Timestamp: time.Now(),
		Severity:  Error,
	}
}

// NewStumble creates a new trip with Stumble severity.
func NewStumble(errorType, message string, context Context) *Trip {
	return NewTrip(errorType, message, context).WithSeverity(Stumble)
}

// NewFall creates a new trip with Fall severity.
func NewFall(errorType, message string, context Context) *Trip {
	return NewTrip(errorType, message, context).WithSeverity(Fall)
}

// WithAttempt sets the attempt number for this trip.
func (t *Trip) WithAttempt(attemptNumber int) *Trip {
	t.Attempt = attemptNumber
	return t
}

// WithSeverity sets the severity level for this trip.
func (t *Trip) WithSeverity(severity Severity) *Trip {
	t.Severity = severity
	return t
}

// WithCause attaches the underlying error.
func (t *Trip) WithCause(err error) *Trip {
	t.Cause = err
	return t
}

// Error implements the error interface.
func (t *Trip) Error() string {
	if t.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", t.Type, t.Severity, t.Message, t.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", t.Type, t.Severity, t.Message)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (t *Trip) Unwrap() error {
	return t.Cause
}

// CanRecover returns true if the component stays usable after this trip.
func (t *Trip) CanRecover() bool {
	return t.Severity != Fall
}

// IsFall returns true if this trip cannot be recovered from.
func (t *Trip) IsFall() bool {
	return t.Severity == Fall
}

// GetContext returns a specific context value if it exists.
func (t *Trip) GetContext(key string) (interface{}, bool) {
	if t.Context == nil {
		return nil, false
	}
	val, exists := t.Context[key]
	return val, exists
}

// LogAttrs flattens the trip into key/value pairs for slog.
func (t *Trip) LogAttrs() []any {
	attrs := []any{"trip_type", t.Type, "severity", t.Severity.String()}
	for _, key := range t.sortedKeys() {
		attrs = append(attrs, key, t.Context[key])
	}
	if t.Cause != nil {
		attrs = append(attrs, "error", t.Cause)
	}
	return attrs
}

// DetailedString returns a comprehensive description with context.
func (t *Trip) DetailedString() string {
	var details strings.Builder

	details.WriteString(t.Error())
	details.WriteString(fmt.Sprintf("\n  Time: %s", t.Timestamp.Format("15:04:05.000")))

	if t.Attempt > 0 {
		details.WriteString(fmt.Sprintf("\n  Attempt: %d", t.Attempt))
	}

	if len(t.Context) > 0 {
		details.WriteString("\n  Context:")
		for _, key := range t.sortedKeys() {
			details.WriteString(fmt.Sprintf("\n    %s: %v", key, t.Context[key]))
		}
	}

	return details.String()
}

func (t *Trip) sortedKeys() []string {
	keys := make([]string, 0, len(t.Context))
	for key := range t.Context {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Handler collects the trips of one component.
//
// The session controller owns one handler; the renderer reads it to show why the
// preview went blank. It is not safe for concurrent use and, like the controller,
// must only be touched from the owning thread.
type Handler struct {
	component string
	trips     []*Trip
	stumbles  []*Trip
	policy    *Policy
}

// Policy defines how many trips a handler keeps and which types are recoverable.
type Policy struct {
	// MaxKept bounds the number of trips (and stumbles) retained; the oldest are dropped.
	MaxKept int

	// RecoverableTypes lists trip types a later user action can recover from.
	RecoverableTypes []string
}

// DefaultPolicy returns the policy used by the session controller.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxKept:          32,
		RecoverableTypes: []string{ProviderAcquisition, Bind, InvalidParameter},
	}
}

// NewHandler creates a new handler for a specific component.
func NewHandler(component string, policy *Policy) *Handler {
	if policy == nil {
		policy = DefaultPolicy()
	}

	return &Handler{
		component: component,
		trips:     make([]*Trip, 0),
		stumbles:  make([]*Trip, 0),
		policy:    policy,
	}
}

// Record adds a trip to the handler's collection.
func (h *Handler) Record(trip *Trip) {
	if trip.Severity == Stumble {
		h.stumbles = h.bounded(append(h.stumbles, trip))
	} else {
		h.trips = h.bounded(append(h.trips, trip))
	}
}

func (h *Handler) bounded(list []*Trip) []*Trip {
	if h.policy.MaxKept > 0 && len(list) > h.policy.MaxKept {
		return list[len(list)-h.policy.MaxKept:]
	}
	return list
}

// HasTrips returns true if any non-stumble trips have been recorded.
func (h *Handler) HasTrips() bool {
	return len(h.trips) > 0
}

// HasStumbles returns true if any stumbles have been recorded.
func (h *Handler) HasStumbles() bool {
	return len(h.stumbles) > 0
}

// GetTrips returns all retained trips.
func (h *Handler) GetTrips() []*Trip {
	return h.trips
}

// GetStumbles returns all retained stumbles.
func (h *Handler) GetStumbles() []*Trip {
	return h.stumbles
}

// Last returns the most recent non-stumble trip, or nil.
func (h *Handler) Last() *Trip {
	if len(h.trips) == 0 {
		return nil
	}
	return h.trips[len(h.trips)-1]
}

// CanRecover returns true if the given trip type is considered recoverable.
func (h *Handler) CanRecover(errorType string) bool {
	for _, recoverableType := range h.policy.RecoverableTypes {
		if recoverableType == errorType {
			return true
		}
	}
	return false
}

// Summary provides a concise overview of all trips and stumbles.
func (h *Handler) Summary() string {
	if len(h.trips) == 0 && len(h.stumbles) == 0 {
		return fmt.Sprintf("[%s] no trips", h.component)
	}

	return fmt.Sprintf("[%s] %d trips, %d stumbles",
		h.component, len(h.trips), len(h.stumbles))
}

// DetailedReport provides a comprehensive report of all issues.
func (h *Handler) DetailedReport() string {
	var report strings.Builder

	report.WriteString(fmt.Sprintf("=== %s ===\n", h.component))
	report.WriteString(h.Summary() + "\n")

	if len(h.trips) > 0 {
		report.WriteString("\nTrips:\n")
		for i, trip := range h.trips {
			report.WriteString(fmt.Sprintf("%d. %s\n", i+1, trip.DetailedString()))
		}
	}

	if len(h.stumbles) > 0 {
		report.WriteString("\nStumbles:\n")
		for i, stumble := range h.stumbles {
			report.WriteString(fmt.Sprintf("%d. %s\n", i+1, stumble.DetailedString()))
		}
	}

	return report.String()
}
