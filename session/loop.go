package session

import (
	"context"
	"sync"
)

// Loop is a single-goroutine task queue. Everything posted to it runs in order on the
// goroutine that calls Run, which makes that goroutine the controller's owning thread.
type Loop struct {
	mu      sync.Mutex
	tasks   []func()
	wake    chan struct{}
	stopped bool
}

// NewLoop creates an idle loop. Tasks posted before Run are kept and run once Run starts.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post enqueues fn. Posting to a stopped loop drops fn.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run executes posted tasks until ctx is done. Tasks still queued at that point are dropped.
func (l *Loop) Run(ctx context.Context) {
	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.tasks = nil
		l.mu.Unlock()
	}()

	for {
		for _, fn := range l.drain() {
			if ctx.Err() != nil {
				return
			}
			fn()
		}

		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}
	}
}

func (l *Loop) drain() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	tasks := l.tasks
	l.tasks = nil
	return tasks
}

// Do posts fn and waits until it has run or ctx is done.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		fn()
		close(done)
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
