// Package sessiontest provides in-memory fakes for exercising session.Controller.
package sessiontest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/teranos/steadyline/session"
)

var (
	// ErrInjected is returned by binds failed on purpose.
	ErrInjected = errors.New("injected bind failure")
	// ErrBusy is returned when a bind arrives while another session is active.
	ErrBusy = errors.New("camera busy")
)

// Provider is a fake camera provider that records every call and counts active sessions.
type Provider struct {
	mu            sync.Mutex
	active        int
	maxActive     int
	calls         []string
	failBinds     int
	partialOnFail bool
	closed        bool
}

// NewProvider returns an empty fake provider.
func NewProvider() *Provider {
	return &Provider{}
}

// FailNextBinds makes the next n binds fail. With partial set, a failed bind leaves a
// half-open session behind, like a driver that crashed mid-configuration.
func (p *Provider) FailNextBinds(n int, partial bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failBinds = n
	p.partialOnFail = partial
}

func (p *Provider) Bind(facing session.Facing, target session.SurfaceTarget) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, "bind:"+facing.String())
	if p.closed {
		return errors.New("provider closed")
	}
	if p.failBinds > 0 {
		p.failBinds--
		if p.partialOnFail {
			p.active++
			p.trackMax()
		}
		return ErrInjected
	}
	if p.active > 0 {
		return fmt.Errorf("%w: %d session(s) active", ErrBusy, p.active)
	}
	p.active++
	p.trackMax()
	return nil
}

func (p *Provider) trackMax() {
	if p.active > p.maxActive {
		p.maxActive = p.active
	}
}

func (p *Provider) UnbindAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "unbind")
	p.active = 0
}

func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "close")
	p.closed = true
	p.active = 0
	return nil
}

// ActiveSessions returns the number of currently bound sessions.
func (p *Provider) ActiveSessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// MaxActive returns the highest number of simultaneously bound sessions ever observed.
func (p *Provider) MaxActive() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxActive
}

// Calls returns the call log: "bind:<facing>", "unbind" and "close".
func (p *Provider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Count returns how many times call appears in the log.
func (p *Provider) Count(call string) int {
	n := 0
	for _, c := range p.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

// Binds returns the number of bind calls regardless of facing.
func (p *Provider) Binds() int {
	return p.Count("bind:front") + p.Count("bind:back")
}

// Closed reports whether Close was called.
func (p *Provider) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Reset clears the call log but keeps the active session count.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}

// Source is a fake provider source. Acquisitions return the configured provider, or
// block until Release when held.
type Source struct {
	mu       sync.Mutex
	next     []session.Provider
	err      error
	held     chan struct{}
	calls    int
	provided []session.Provider
}

// NewSource returns a source handing out the given providers in order; when they run out
// it creates fresh fakes.
func NewSource(providers ...session.Provider) *Source {
	return &Source{next: providers}
}

// FailWith makes subsequent acquisitions fail with err (nil clears it).
func (s *Source) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Hold makes subsequent acquisitions block until Release.
func (s *Source) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = make(chan struct{})
}

// Release unblocks held acquisitions.
func (s *Source) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held != nil {
		close(s.held)
		s.held = nil
	}
}

func (s *Source) Acquire(ctx context.Context) (session.Provider, error) {
	s.mu.Lock()
	s.calls++
	held := s.held
	s.mu.Unlock()

	if held != nil {
		select {
		case <-held:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}

	var p session.Provider
	if len(s.next) > 0 {
		p, s.next = s.next[0], s.next[1:]
	} else {
		p = NewProvider()
	}
	s.provided = append(s.provided, p)
	return p, nil
}

// Calls returns the number of Acquire calls.
func (s *Source) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Provided returns every provider handed out so far.
func (s *Source) Provided() []session.Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]session.Provider(nil), s.provided...)
}

// Queue is a manually driven Executor: posted tasks run only when the test says so.
type Queue struct {
	tasks chan func()
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{tasks: make(chan func(), 64)}
}

func (q *Queue) Post(fn func()) {
	q.tasks <- fn
}

// RunNext waits up to timeout for one task and runs it.
func (q *Queue) RunNext(timeout time.Duration) bool {
	select {
	case fn := <-q.tasks:
		fn()
		return true
	case <-time.After(timeout):
		return false
	}
}

// Drain runs every task already queued and returns how many ran.
func (q *Queue) Drain() int {
	n := 0
	for {
		select {
		case fn := <-q.tasks:
			fn()
			n++
		default:
			return n
		}
	}
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	return len(q.tasks)
}

// Surface is a named SurfaceTarget.
type Surface string

func (s Surface) SurfaceID() string { return string(s) }
