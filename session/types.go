// Package session keeps exactly one live binding between a camera and a render surface.
//
// The Controller owns the camera provider handle, the selected facing and the attached
// surface. Provider acquisition is asynchronous; its completion is delivered back on the
// owning thread through an Executor and tagged with a generation so that results that
// arrive after a Stop are thrown away instead of being applied.
//
// Basic usage:
//
//	ctrl := session.NewController(session.Options{
//		Source:        cam,
//		Executor:      loop,
//		DefaultFacing: session.Back,
//	})
//	ctrl.Start()
//	ctrl.AttachSurface(surface)
//	// later, on a double tap
//	ctrl.Toggle()
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Facing selects which physical camera is active.
type Facing int

const (
	Back Facing = iota
	Front
)

func (f Facing) String() string {
	switch f {
	case Front:
		return "front"
	case Back:
		return "back"
	default:
		return fmt.Sprintf("facing(%d)", int(f))
	}
}

// Opposite returns the other camera.
func (f Facing) Opposite() Facing {
	if f == Front {
		return Back
	}
	return Front
}

// ParseFacing accepts "front" or "back", case-insensitively.
func ParseFacing(s string) (Facing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "front":
		return Front, nil
	case "back":
		return Back, nil
	default:
		return Back, fmt.Errorf("unknown camera facing %q", s)
	}
}

// State is the lifecycle state of a Controller.
type State int

const (
	Uninitialized State = iota
	Acquiring
	Idle
	Binding
	Bound
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Acquiring:
		return "acquiring"
	case Idle:
		return "idle"
	case Binding:
		return "binding"
	case Bound:
		return "bound"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// SurfaceTarget is an opaque render target that can receive a video frame stream.
type SurfaceTarget interface {
	SurfaceID() string
}

// Provider is an acquired camera provider.
//
// Bind attaches the camera with the given facing to target. Implementations are free to
// fail a Bind while another session is active, as most camera stacks do; the controller
// always calls UnbindAll first. UnbindAll must be safe to call with nothing bound.
type Provider interface {
	Bind(facing Facing, target SurfaceTarget) error
	UnbindAll()
	Close() error
}

// ProviderSource produces a Provider. Acquire may block; the controller calls it off the
// owning thread.
type ProviderSource interface {
	Acquire(ctx context.Context) (Provider, error)
}

// Executor runs fn on the controller's owning thread. Post must not block on fn.
type Executor interface {
	Post(fn func())
}

// BoundSession describes the one active camera binding.
type BoundSession struct {
	ID         string
	Generation uint64
	Facing     Facing
	Surface    SurfaceTarget
	BoundAt    time.Time
}

var (
	// ErrProviderAcquisition wraps failures to obtain the camera provider.
	ErrProviderAcquisition = errors.New("camera provider acquisition failed")
	// ErrBind wraps failures to attach the camera to the surface.
	ErrBind = errors.New("camera bind failed")
	// ErrStopped is reported by an Acquisition abandoned by Stop.
	ErrStopped = errors.New("session stopped")
)
