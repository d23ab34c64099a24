package integrators

import (
	"math"
	"testing"

	"github.com/san-kum/trajopt/internal/dynamo"
)

type simpleDynamics struct{}

func (s *simpleDynamics) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}

func (s *simpleDynamics) StateDim() int   { return 2 }
func (s *simpleDynamics) ControlDim() int { return 0 }

// ramp integrates its control: dx/dt = u.
type ramp struct{}

func (r *ramp) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{u[0]}
}

func (r *ramp) StateDim() int   { return 1 }
func (r *ramp) ControlDim() int { return 1 }

func TestRK4Accuracy(t *testing.T) {
	dyn := &simpleDynamics{}
	integ := NewRK4()

	x0 := dynamo.State{1.0, 0.0}
	u := dynamo.Control{}
	dt := 0.01
	steps := 100

	x := x0
	for i := 0; i < steps; i++ {
		x = integ.Step(dyn, x, u, float64(i)*dt, dt)
	}

	expectedX := math.Cos(float64(steps) * dt)
	expectedV := -math.Sin(float64(steps) * dt)

	if math.Abs(x[0]-expectedX) > 1e-4 {
		t.Errorf("position error too large: got %.6f, expected %.6f", x[0], expectedX)
	}

	if math.Abs(x[1]-expectedV) > 1e-4 {
		t.Errorf("velocity error too large: got %.6f, expected %.6f", x[1], expectedV)
	}
}

func TestHoldStepsIntegrateLinearControl(t *testing.T) {
	methods := map[string]dynamo.HoldIntegrator{
		"rk3": NewHoldRK3(),
		"rk4": NewRK4(),
	}
	for name, m := range methods {
		t.Run(name, func(t *testing.T) {
			x := m.StepHold(&ramp{}, dynamo.State{1}, dynamo.Control{2}, dynamo.Control{4}, 0, 0.5)
			// ∫ (2 + 4s) ds over [0, 0.5]
			if math.Abs(x[0]-2.5) > 1e-12 {
				t.Errorf("got %.12f, want 2.5", x[0])
			}
		})
	}
}

func TestHoldRK3Order(t *testing.T) {
	dyn := &simpleDynamics{}
	integ := NewHoldRK3()

	errAt := func(dt float64) float64 {
		x := dynamo.State{1, 0}
		steps := int(math.Round(1 / dt))
		for i := 0; i < steps; i++ {
			x = integ.Step(dyn, x, nil, float64(i)*dt, dt)
		}
		return math.Abs(x[0] - math.Cos(1))
	}

	ratio := errAt(0.02) / errAt(0.01)
	// third order: halving dt cuts the error by about 8
	if ratio < 6 || ratio > 10 {
		t.Errorf("error ratio %.2f, expected about 8", ratio)
	}
}

func TestEulerHoldUsesFirstSample(t *testing.T) {
	x := NewEuler().StepHold(&ramp{}, dynamo.State{0}, dynamo.Control{1}, dynamo.Control{100}, 0, 0.1)
	if math.Abs(x[0]-0.1) > 1e-15 {
		t.Errorf("got %g, want 0.1", x[0])
	}
}

func TestHermiteMidpoint(t *testing.T) {
	// x(t) = cos t is matched to third order by the Hermite cubic
	dyn := &simpleDynamics{}
	dt := 0.1
	x1 := dynamo.State{1, 0}
	x2 := dynamo.State{math.Cos(dt), -math.Sin(dt)}
	xm := HermiteMidpoint(dyn, x1, x2, nil, nil, 0, dt)
	if math.Abs(xm[0]-math.Cos(dt/2)) > 1e-6 {
		t.Errorf("midpoint %.9f, want %.9f", xm[0], math.Cos(dt/2))
	}
}

func TestLerp(t *testing.T) {
	u := Lerp(dynamo.Control{0, 10}, dynamo.Control{2, 20}, 0.25)
	if u[0] != 0.5 || u[1] != 12.5 {
		t.Errorf("got %v", u)
	}
}

func TestNew(t *testing.T) {
	for _, name := range Names() {
		if _, err := New(name); err != nil {
			t.Errorf("New(%q): %v", name, err)
		}
	}
	if _, err := New("verlet"); err == nil {
		t.Error("expected an error for an unknown integrator")
	}
}
