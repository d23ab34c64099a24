package solver

import (
	"math"
	"testing"

	"github.com/san-kum/trajopt/internal/ddp"
	"github.com/san-kum/trajopt/internal/dynamo"
	"github.com/san-kum/trajopt/internal/integrators"
	"github.com/san-kum/trajopt/internal/physics"
)

func doubleIntegratorProblem(knots int, method string) *Problem {
	integ, err := integrators.New(method)
	if err != nil {
		panic(err)
	}
	return &Problem{
		System:     physics.NewDoubleIntegrator(),
		Integrator: integ,
		Weights: ddp.Weights{
			Q:      Identity(2, 1),
			R:      Identity(1, 0.1),
			Qf:     Identity(2, 10),
			Target: dynamo.State{1, 0},
		},
		Initial: dynamo.State{0, 0},
		Knots:   knots,
		Dt:      0.1,
	}
}

func assertClose(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.10g, want %.10g", name, got, want)
	}
}

// diverging blows up on its first derivative evaluation.
type diverging struct{}

func (diverging) StateDim() int   { return 1 }
func (diverging) ControlDim() int { return 1 }
func (diverging) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{math.Inf(1)}
}

// opaque hides any analytic Jacobians of the wrapped system.
type opaque struct {
	dynamo.System
}
