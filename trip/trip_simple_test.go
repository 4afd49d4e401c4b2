package trip

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestTrip_Core tests core Trip functionality
func TestTrip_Core(t *testing.T) {
	context := Context{
		"facing":     "front",
		"generation": uint64(2),
	}

	trip := NewTrip(Bind, "bind failed", context)

	assert.Equal(t, Bind, trip.Type)
	assert.Equal(t, "bind failed", trip.Message)
	assert.Equal(t, context, trip.Context)
	assert.Equal(t, Error, trip.Severity)
	assert.WithinDuration(t, time.Now(), trip.Timestamp, time.Second)

	assert.Contains(t, trip.Error(), "bind failed")
	assert.Contains(t, trip.Error(), "bind")
	assert.Contains(t, trip.Error(), "error")
}

// TestTrip_Severities tests different severity levels
func TestTrip_Severities(t *testing.T) {
	stumble := NewStumble(InvalidParameter, "period clamped", nil)
	error_ := NewTrip(Bind, "camera busy", nil)
	fall := NewFall(ProviderAcquisition, "no camera", nil)

	assert.Equal(t, Stumble, stumble.Severity)
	assert.Equal(t, Error, error_.Severity)
	assert.Equal(t, Fall, fall.Severity)

	assert.True(t, stumble.CanRecover())
	assert.True(t, error_.CanRecover())
	assert.False(t, fall.CanRecover())

	assert.False(t, stumble.IsFall())
	assert.False(t, error_.IsFall())
	assert.True(t, fall.IsFall())
}

// TestTrip_Methods tests trip methods
func TestTrip_Methods(t *testing.T) {
	cause := errors.New("device busy")
	trip := NewTrip(Bind, "bind failed", Context{"facing": "back"}).WithCause(cause)

	trip.WithAttempt(3)
	assert.Equal(t, 3, trip.Attempt)

	trip.WithSeverity(Fall)
	assert.Equal(t, Fall, trip.Severity)

	val, exists := trip.GetContext("facing")
	assert.True(t, exists)
	assert.Equal(t, "back", val)

	_, exists = trip.GetContext("missing")
	assert.False(t, exists)

	assert.ErrorIs(t, trip, cause)
	assert.Contains(t, trip.Error(), "device busy")

	detailed := trip.DetailedString()
	assert.Contains(t, detailed, "bind failed")
	assert.Contains(t, detailed, "facing: back")
	assert.Contains(t, detailed, "Attempt: 3")
}

func TestTrip_LogAttrs(t *testing.T) {
	cause := errors.New("boom")
	trip := NewTrip(ProviderAcquisition, "acquire", Context{"generation": 1, "facing": "back"}).WithCause(cause)

	attrs := trip.LogAttrs()
	assert.Equal(t, []any{
		"trip_type", ProviderAcquisition,
		"severity", "error",
		"facing", "back",
		"generation", 1,
		"error", cause,
	}, attrs)
}

// TestHandler_Basic tests basic Handler functionality
func TestHandler_Basic(t *testing.T) {
	handler := NewHandler("session", DefaultPolicy())
	assert.Nil(t, handler.Last())
	assert.Contains(t, handler.Summary(), "no trips")

	handler.Record(NewStumble(InvalidParameter, "clamped", nil))
	assert.True(t, handler.HasStumbles())
	assert.False(t, handler.HasTrips())

	bind := NewTrip(Bind, "bind failed", nil)
	handler.Record(bind)
	assert.True(t, handler.HasTrips())
	assert.Same(t, bind, handler.Last())
	assert.Equal(t, "[session] 1 trips, 1 stumbles", handler.Summary())
	assert.Contains(t, handler.DetailedReport(), "bind failed")
}

func TestHandler_Bounded(t *testing.T) {
	handler := NewHandler("session", &Policy{MaxKept: 2})

	for i := 0; i < 5; i++ {
		handler.Record(NewTrip(Bind, "bind failed", nil).WithAttempt(i + 1))
	}

	trips := handler.GetTrips()
	assert.Len(t, trips, 2)
	assert.Equal(t, 4, trips[0].Attempt)
	assert.Equal(t, 5, trips[1].Attempt)
}

// TestPolicy_Default tests default policy
func TestPolicy_Default(t *testing.T) {
	policy := DefaultPolicy()
	handler := NewHandler("session", nil)

	assert.Equal(t, 32, policy.MaxKept)
	assert.True(t, handler.CanRecover(Bind))
	assert.True(t, handler.CanRecover(ProviderAcquisition))
	assert.True(t, handler.CanRecover(InvalidParameter))
	assert.False(t, handler.CanRecover("unknown"))
}

// TestSeverity_String tests severity string representation
func TestSeverity_String(t *testing.T) {
	assert.Equal(t, "stumble", Stumble.String())
	assert.Equal(t, "error", Error.String())
	assert.Equal(t, "fall", Fall.String())
	assert.Equal(t, "unknown", Severity(9).String())
}
