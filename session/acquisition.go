package session

import "sync"

// Acquisition is the pending or completed result of a provider acquisition.
//
// It completes on the owning thread. Waiters on other goroutines may block on Done;
// Err is valid once Done is closed.
type Acquisition struct {
	generation uint64
	done       chan struct{}
	once       sync.Once
	err        error
}

func newAcquisition(generation uint64) *Acquisition {
	return &Acquisition{
		generation: generation,
		done:       make(chan struct{}),
	}
}

// Done is closed when the acquisition has completed, failed, or was abandoned by Stop.
func (a *Acquisition) Done() <-chan struct{} {
	return a.done
}

// Err reports the outcome. It returns nil before completion and after success.
func (a *Acquisition) Err() error {
	select {
	case <-a.done:
		return a.err
	default:
		return nil
	}
}

// Completed reports whether Done has been closed.
func (a *Acquisition) Completed() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

// Generation is the controller generation this acquisition belongs to.
func (a *Acquisition) Generation() uint64 {
	return a.generation
}

func (a *Acquisition) complete(err error) {
	a.once.Do(func() {
		a.err = err
		close(a.done)
	})
}
