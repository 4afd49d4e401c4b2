package stage

import (
	"errors"
	"fmt"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/teranos/steadyline/trip"
)

var errTimeout = errors.New("timed out")

// wrapper forwards every model the program produces to the director.
type wrapper struct {
	Model
	director *Director
}

func (w wrapper) Update(msg tea.Msg) (next tea.Model, cmd tea.Cmd) {
	defer func() {
		if r := recover(); r != nil {
			w.director.handleModelPanic(r, msg)
			next, cmd = w, tea.Quit
		}
	}()

	updated, cmd := w.Model.Update(msg)
	if updated == nil {
		w.director.handleInvalidModelState("Update returned nil model", msg)
		return w, cmd
	}

	m, ok := updated.(Model)
	if !ok {
		w.director.handleInvalidModelState(fmt.Sprintf("Update returned %T", updated), msg)
		return w, cmd
	}

	seq := atomic.AddInt64(&w.director.updateSeq, 1)
	select {
	case w.director.updates <- modelUpdate{model: m, sequence: seq}:
	default:
		atomic.AddInt64(&w.director.droppedUpdate, 1)
	}

	return wrapper{Model: m, director: w.director}, cmd
}

// DroppedUpdates returns how many model updates the director could not keep up with.
func (d *Director) DroppedUpdates() int64 {
	return atomic.LoadInt64(&d.droppedUpdate)
}

func (d *Director) handleModelPanic(value interface{}, msg tea.Msg) {
	d.recordTrip(trip.NewFall(ModelPanic, fmt.Sprintf("model panic during Update: %v", value), trip.Context{
		"tea_msg":    fmt.Sprintf("%T", msg),
		"model_type": fmt.Sprintf("%T", d.model),
	}))
	d.cancel()
}

func (d *Director) handleInvalidModelState(reason string, msg tea.Msg) {
	d.recordTrip(trip.NewFall(InvalidModelState, reason, trip.Context{
		"tea_msg":    fmt.Sprintf("%T", msg),
		"model_type": fmt.Sprintf("%T", d.model),
	}))
	d.cancel()
}
