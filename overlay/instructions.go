package overlay

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Stage is what the instruction area shows.
type Stage int

const (
	ShowingHint Stage = iota
	ShowingGuidance
	Hidden
)

func (s Stage) String() string {
	switch s {
	case ShowingHint:
		return "hint"
	case ShowingGuidance:
		return "guidance"
	case Hidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// Instruction texts.
const (
	HintText     = "Double tap to change the camera view"
	GuidanceText = "Modify the speed first then adjust the height to see results."
)

// Text returns the line shown for the stage, empty when hidden.
func (s Stage) Text() string {
	switch s {
	case ShowingHint:
		return HintText
	case ShowingGuidance:
		return GuidanceText
	default:
		return ""
	}
}

// Default delays between the instruction stages.
const (
	DefaultHintDelay     = 3 * time.Second
	DefaultGuidanceDelay = 5 * time.Second
)

// InstructionSequence shows the hint, then the guidance, then nothing. It runs once and
// cannot be restarted; the stage is a function of the time elapsed since start.
type InstructionSequence struct {
	start         time.Time
	hintDelay     time.Duration
	guidanceDelay time.Duration
}

// NewInstructionSequence starts the sequence at start. The hint is visible for hintDelay,
// then the guidance for guidanceDelay.
func NewInstructionSequence(start time.Time, hintDelay, guidanceDelay time.Duration) *InstructionSequence {
	return &InstructionSequence{
		start:         start,
		hintDelay:     hintDelay,
		guidanceDelay: guidanceDelay,
	}
}

// StageAt returns the stage visible at t.
func (s *InstructionSequence) StageAt(t time.Time) Stage {
	elapsed := t.Sub(s.start)
	switch {
	case elapsed < s.hintDelay:
		return ShowingHint
	case elapsed < s.hintDelay+s.guidanceDelay:
		return ShowingGuidance
	default:
		return Hidden
	}
}

// NextTransition returns how long after t the stage changes next, and to what.
// ok is false once the sequence is finished.
func (s *InstructionSequence) NextTransition(t time.Time) (wait time.Duration, next Stage, ok bool) {
	switch s.StageAt(t) {
	case ShowingHint:
		return s.start.Add(s.hintDelay).Sub(t), ShowingGuidance, true
	case ShowingGuidance:
		return s.start.Add(s.hintDelay + s.guidanceDelay).Sub(t), Hidden, true
	default:
		return 0, Hidden, false
	}
}

// Watch calls fn once for every stage change still ahead, from a timer goroutine. Stage
// changes already in the past are not replayed. The returned stop disarms the timers.
func (s *InstructionSequence) Watch(clock clockwork.Clock, fn func(Stage)) (stop func()) {
	var (
		mu      sync.Mutex
		stopped bool
		last    = s.StageAt(clock.Now())
		timers  []clockwork.Timer
	)

	deliver := func(stage Stage) {
		mu.Lock()
		if stopped || stage <= last {
			mu.Unlock()
			return
		}
		last = stage
		mu.Unlock()
		fn(stage)
	}

	now := clock.Now()
	boundaries := []struct {
		at    time.Time
		stage Stage
	}{
		{s.start.Add(s.hintDelay), ShowingGuidance},
		{s.start.Add(s.hintDelay + s.guidanceDelay), Hidden},
	}
	for _, b := range boundaries {
		wait := b.at.Sub(now)
		if wait <= 0 {
			continue
		}
		stage := b.stage
		timers = append(timers, clock.AfterFunc(wait, func() { deliver(stage) }))
	}

	return func() {
		mu.Lock()
		stopped = true
		mu.Unlock()
		for _, t := range timers {
			t.Stop()
		}
	}
}
