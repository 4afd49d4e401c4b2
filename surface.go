package steadyline

import (
	"image"
	"sync"
	"time"

	"github.com/teranos/steadyline/camera"
	"github.com/teranos/steadyline/session"
)

// TerminalSurface is the render target the camera preview is bound to. The simulated camera
// streams into it through camera.FrameSink; the viewfinder samples it every frame.
type TerminalSurface struct {
	id string

	mu          sync.RWMutex
	src         camera.FrameSource
	connects    int
	disconnects int
}

var (
	_ session.SurfaceTarget = (*TerminalSurface)(nil)
	_ camera.FrameSink      = (*TerminalSurface)(nil)
)

// NewTerminalSurface creates a surface identified by id.
func NewTerminalSurface(id string) *TerminalSurface {
	return &TerminalSurface{id: id}
}

func (s *TerminalSurface) SurfaceID() string { return s.id }

// Connect starts showing src.
func (s *TerminalSurface) Connect(src camera.FrameSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src = src
	s.connects++
}

// Disconnect stops showing the current source.
func (s *TerminalSurface) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src = nil
	s.disconnects++
}

// Live reports whether a source is connected.
func (s *TerminalSurface) Live() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.src != nil
}

// Facing returns the facing of the connected source.
func (s *TerminalSurface) Facing() (session.Facing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.src == nil {
		return session.Back, false
	}
	return s.src.Facing(), true
}

// Frame samples the connected source at now, nil when nothing is connected.
func (s *TerminalSurface) Frame(now time.Time) image.Image {
	s.mu.RLock()
	src := s.src
	s.mu.RUnlock()
	if src == nil {
		return nil
	}
	return src.Frame(now)
}

// Connections returns how many times a source was connected and disconnected.
func (s *TerminalSurface) Connections() (connects, disconnects int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connects, s.disconnects
}
