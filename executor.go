package steadyline

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// uiTaskMsg carries work posted from other goroutines onto the event loop.
type uiTaskMsg struct {
	fn func()
}

// Sender delivers messages into a running bubbletea program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramExecutor is the session.Executor of the terminal UI: posted tasks run inside
// Viewfinder.Update, on the bubbletea event loop. Posting never blocks, so it is safe from
// any goroutine including the event loop itself. Messages queue until Run forwards them.
type ProgramExecutor struct {
	mu      sync.Mutex
	pending []tea.Msg
	wake    chan struct{}
	stopped bool
}

// NewProgramExecutor creates an executor with nothing to forward to yet.
func NewProgramExecutor() *ProgramExecutor {
	return &ProgramExecutor{wake: make(chan struct{}, 1)}
}

// Post schedules fn on the event loop.
func (e *ProgramExecutor) Post(fn func()) {
	e.Send(uiTaskMsg{fn: fn})
}

// Send queues msg for the program, in order.
func (e *ProgramExecutor) Send(msg tea.Msg) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.pending = append(e.pending, msg)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Pending returns how many messages wait to be forwarded.
func (e *ProgramExecutor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Run forwards queued messages to p until ctx is done. Messages posted after that are
// dropped.
func (e *ProgramExecutor) Run(ctx context.Context, p Sender) {
	defer func() {
		e.mu.Lock()
		e.stopped = true
		e.pending = nil
		e.mu.Unlock()
	}()

	for {
		for _, msg := range e.drain() {
			if ctx.Err() != nil {
				return
			}
			p.Send(msg)
		}

		select {
		case <-ctx.Done():
			return
		case <-e.wake:
		}
	}
}

func (e *ProgramExecutor) drain() []tea.Msg {
	e.mu.Lock()
	defer e.mu.Unlock()
	msgs := e.pending
	e.pending = nil
	return msgs
}
