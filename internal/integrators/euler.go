package integrators

import "github.com/san-kum/trajopt/internal/dynamo"

// Euler is the explicit first-order method.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t float64, dt float64) dynamo.State {
	dx := dyn.Derive(x, u, t)
	result := make(dynamo.State, len(x))
	for i := range x {
		result[i] = x[i] + dt*dx[i]
	}
	return result
}

// StepHold only sees the control at the start of the interval.
func (e *Euler) StepHold(dyn dynamo.System, x dynamo.State, u1, u2 dynamo.Control, t float64, dt float64) dynamo.State {
	return e.Step(dyn, x, u1, t, dt)
}
