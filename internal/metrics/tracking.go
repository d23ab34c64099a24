package metrics

import (
	"math"

	"github.com/san-kum/trajopt/internal/dynamo"
	"gonum.org/v1/gonum/floats"
)

// TrackingError is the largest Euclidean distance between the simulated
// state and the nominal state, sampled at knot times.
type TrackingError struct {
	name    string
	nominal []dynamo.State
	dt      float64
	worst   float64
}

func NewTrackingError(nominal []dynamo.State, dt float64) *TrackingError {
	return &TrackingError{
		name:    "tracking_error",
		nominal: nominal,
		dt:      dt,
	}
}

func (e *TrackingError) Name() string { return e.name }

func (e *TrackingError) Observe(x dynamo.State, u dynamo.Control, t float64) {
	e.observe(x, t)
}

// Finish also compares the final state.
func (e *TrackingError) Finish(x dynamo.State, t float64) {
	e.observe(x, t)
}

func (e *TrackingError) observe(x dynamo.State, t float64) {
	pos := t / e.dt
	k := math.Round(pos)
	if math.Abs(pos-k) > 1e-6 || k < 0 || int(k) >= len(e.nominal) {
		return
	}
	e.worst = math.Max(e.worst, floats.Distance(x, e.nominal[int(k)], 2))
}

func (e *TrackingError) Value() float64 {
	return e.worst
}

func (e *TrackingError) Reset() {
	e.worst = 0
}

// TerminalError is the Euclidean distance between the final simulated
// state and a target.
type TerminalError struct {
	name   string
	target dynamo.State
	last   float64
}

func NewTerminalError(target dynamo.State) *TerminalError {
	return &TerminalError{name: "terminal_error", target: target}
}

func (e *TerminalError) Name() string { return e.name }

func (e *TerminalError) Observe(x dynamo.State, u dynamo.Control, t float64) {
	e.last = floats.Distance(x, e.target, 2)
}

func (e *TerminalError) Finish(x dynamo.State, t float64) {
	e.last = floats.Distance(x, e.target, 2)
}

func (e *TerminalError) Value() float64 { return e.last }

func (e *TerminalError) Reset() { e.last = 0 }
