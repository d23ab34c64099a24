package solver

import (
	"fmt"

	"github.com/san-kum/trajopt/internal/ddp"
	"github.com/san-kum/trajopt/internal/dynamo"
	"github.com/san-kum/trajopt/internal/integrators"
	"gonum.org/v1/gonum/mat"
)

// Bounds are element-wise control limits Lower <= u <= Upper.
type Bounds struct {
	Lower dynamo.Control
	Upper dynamo.Control
}

// Problem is a trajectory optimization problem over Knots states spaced
// Dt apart.
type Problem struct {
	System     dynamo.System
	Integrator integrators.Method
	Weights    ddp.Weights
	Initial    dynamo.State
	Knots      int
	Dt         float64

	// Guess holds the initial controls; zero controls when nil.
	Guess []dynamo.Control
	// Bounds, when set, are enforced with an augmented Lagrangian.
	Bounds *Bounds
	// Goal requires the final state to reach the target exactly.
	Goal bool
}

func (p *Problem) constrained() bool {
	return p.Bounds != nil || p.Goal
}

// controls is the number of control samples: one per interval for a
// zero-order hold, one per knot for a first-order hold.
func (p *Problem) controls(hold bool) int {
	if hold {
		return p.Knots
	}
	return p.Knots - 1
}

func (p *Problem) validate(hold bool) error {
	if p.System == nil || p.Integrator == nil {
		return fmt.Errorf("%w: system and integrator are required", ErrInvalidProblem)
	}
	if p.Knots < 2 {
		return fmt.Errorf("%w: need at least two knots, got %d", ErrInvalidProblem, p.Knots)
	}
	if p.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %g", ErrInvalidProblem, p.Dt)
	}
	n, m := p.System.StateDim(), p.System.ControlDim()
	if len(p.Initial) != n {
		return fmt.Errorf("%w: initial state has %d entries, system has %d", dynamo.ErrDimensionMismatch, len(p.Initial), n)
	}
	if p.Guess != nil {
		if len(p.Guess) != p.controls(hold) {
			return fmt.Errorf("%w: guess has %d controls, want %d", dynamo.ErrDimensionMismatch, len(p.Guess), p.controls(hold))
		}
		for k, u := range p.Guess {
			if len(u) != m {
				return fmt.Errorf("%w: guess %d has %d entries, system has %d", dynamo.ErrDimensionMismatch, k, len(u), m)
			}
		}
	}
	if b := p.Bounds; b != nil {
		if len(b.Lower) != m || len(b.Upper) != m {
			return fmt.Errorf("%w: bounds must have %d entries", dynamo.ErrDimensionMismatch, m)
		}
		if !b.Lower.IsValid() || !b.Upper.IsValid() {
			return fmt.Errorf("%w: bounds must be finite", ErrInvalidProblem)
		}
		for i := range b.Lower {
			if b.Lower[i] > b.Upper[i] {
				return fmt.Errorf("%w: lower bound %g above upper bound %g", ErrInvalidProblem, b.Lower[i], b.Upper[i])
			}
		}
	}
	if p.Weights.Q == nil || p.Weights.R == nil || p.Weights.Qf == nil {
		return fmt.Errorf("%w: cost weights Q, R and Qf are required", ErrInvalidProblem)
	}
	if p.Weights.Q.SymmetricDim() != n || p.Weights.Qf.SymmetricDim() != n || p.Weights.R.SymmetricDim() != m {
		return fmt.Errorf("%w: weights do not match a %d-state %d-control system", dynamo.ErrDimensionMismatch, n, m)
	}
	if len(p.Weights.Target) != n {
		return fmt.Errorf("%w: target has %d entries, system has %d", dynamo.ErrDimensionMismatch, len(p.Weights.Target), n)
	}
	return nil
}

func (p *Problem) time(k int) float64 {
	return float64(k) * p.Dt
}

func (p *Problem) step() ddp.Discrete {
	return func(k int, x dynamo.State, u dynamo.Control) dynamo.State {
		return p.Integrator.Step(p.System, x, u, p.time(k), p.Dt)
	}
}

func (p *Problem) holdStep() ddp.HoldDiscrete {
	return func(k int, x dynamo.State, u1, u2 dynamo.Control) dynamo.State {
		return p.Integrator.StepHold(p.System, x, u1, u2, p.time(k), p.Dt)
	}
}

// initial rolls the guess out open loop.
func (p *Problem) initial(hold bool) (ddp.Trajectory, error) {
	m := p.System.ControlDim()
	U := make([]dynamo.Control, p.controls(hold))
	for k := range U {
		if p.Guess != nil {
			U[k] = p.Guess[k].Clone()
		} else {
			U[k] = make(dynamo.Control, m)
		}
	}
	X := make([]dynamo.State, p.Knots)
	X[0] = p.Initial.Clone()
	step, holdStep := p.step(), p.holdStep()
	for k := 0; k < p.Knots-1; k++ {
		if hold {
			X[k+1] = holdStep(k, X[k], U[k], U[k+1])
		} else {
			X[k+1] = step(k, X[k], U[k])
		}
		if !X[k+1].IsValid() {
			return ddp.Trajectory{}, fmt.Errorf("%w: knot %d", ErrInitialRollout, k+1)
		}
	}
	return ddp.Trajectory{X: X, U: U}, nil
}

// Identity returns s·I as a weight matrix.
func Identity(n int, s float64) *mat.SymDense {
	w := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		w.SetSym(i, i, s)
	}
	return w
}

// Diagonal returns a diagonal weight matrix.
func Diagonal(d []float64) *mat.SymDense {
	w := mat.NewSymDense(len(d), nil)
	for i, v := range d {
		w.SetSym(i, i, v)
	}
	return w
}
