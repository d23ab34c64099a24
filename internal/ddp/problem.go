package ddp

import (
	"fmt"

	"github.com/san-kum/trajopt/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Trajectory is a sequence of N states and N-1 controls, or N controls
// when the controls are first-order-hold samples.
type Trajectory struct {
	X []dynamo.State
	U []dynamo.Control
}

func (t Trajectory) Clone() Trajectory {
	c := Trajectory{
		X: make([]dynamo.State, len(t.X)),
		U: make([]dynamo.Control, len(t.U)),
	}
	for i, x := range t.X {
		c.X[i] = x.Clone()
	}
	for i, u := range t.U {
		c.U[i] = u.Clone()
	}
	return c
}

// IsValid reports whether every state and control is finite.
func (t Trajectory) IsValid() bool {
	for _, x := range t.X {
		if !x.IsValid() {
			return false
		}
	}
	for _, u := range t.U {
		if !u.IsValid() {
			return false
		}
	}
	return true
}

// Knots returns the number of states N.
func (t Trajectory) Knots() int { return len(t.X) }

// Weights are the quadratic cost weights of one solve:
//
//	J = Σ dt·(½(x-xf)ᵀQ(x-xf) + ½uᵀRu) + ½(xN-xf)ᵀQf(xN-xf)
type Weights struct {
	Q, R, Qf *mat.SymDense
	Target   dynamo.State
}

// Linearization holds the discrete Jacobians x⁺ = A·x + B·u for each of
// the N-1 intervals.
type Linearization struct {
	A, B []*mat.Dense
}

// HoldLinearization holds what the first-order-hold pass needs: the
// continuous Jacobians Ac, Bc at each of the N knots, the discrete
// Jacobians of x⁺ = f(x, u, v) for each interval, and the Hermite-Simpson
// midpoint state of each interval.
type HoldLinearization struct {
	Ac, Bc     []*mat.Dense
	Ad, Bd, Cd []*mat.Dense
	Mid        []dynamo.State
}

// Problem bundles the read-only inputs of one backward sweep.
type Problem struct {
	Trajectory    Trajectory
	Weights       Weights
	Dt            float64
	Linearization *Linearization
	Hold          *HoldLinearization
	Constraints   Constraints
}

func (p *Problem) dims() (n, m, N int) {
	return len(p.Trajectory.X[0]), len(p.Trajectory.U[0]), len(p.Trajectory.X)
}

func (p *Problem) constraints() Constraints {
	if p.Constraints == nil {
		return Unconstrained{}
	}
	return p.Constraints
}

func (p *Problem) validate(hold bool) error {
	if len(p.Trajectory.X) < 2 || len(p.Trajectory.U) == 0 {
		return fmt.Errorf("%w: trajectory needs at least two knots", dynamo.ErrDimensionMismatch)
	}
	if p.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %g", ErrInvalidConfig, p.Dt)
	}
	w := p.Weights
	if w.Q == nil || w.R == nil || w.Qf == nil {
		return fmt.Errorf("%w: cost weights Q, R and Qf are required", ErrInvalidConfig)
	}
	n, m, N := p.dims()
	if len(w.Target) != n {
		return fmt.Errorf("%w: target has %d entries, state has %d", dynamo.ErrDimensionMismatch, len(w.Target), n)
	}
	x := mat.NewVecDense(n, nil)
	u := mat.NewVecDense(m, nil)
	for k, uk := range p.Trajectory.U {
		if len(uk) != m {
			return fmt.Errorf("%w: control %d has %d entries, want %d", dynamo.ErrDimensionMismatch, k, len(uk), m)
		}
	}
	if err := checkDims(w.Q, x, "Q", "x", rows2rows); err != nil {
		return err
	}
	if err := checkDims(w.Qf, x, "Qf", "x", rows2rows); err != nil {
		return err
	}
	if err := checkDims(w.R, u, "R", "u", rows2rows); err != nil {
		return err
	}

	controls := N - 1
	if hold {
		controls = N
	}
	if len(p.Trajectory.U) != controls {
		return fmt.Errorf("%w: %d knots need %d controls, got %d", dynamo.ErrDimensionMismatch, N, controls, len(p.Trajectory.U))
	}

	if hold {
		h := p.Hold
		if h == nil {
			return ErrMissingLinearization
		}
		if len(h.Ac) != N || len(h.Bc) != N || len(h.Ad) != N-1 || len(h.Bd) != N-1 || len(h.Cd) != N-1 || len(h.Mid) != N-1 {
			return fmt.Errorf("%w: hold linearization does not cover %d knots", dynamo.ErrDimensionMismatch, N)
		}
		for k := range h.Ac {
			if err := checkDims(h.Ac[k], w.Q, "Ac", "Q", rowsAndcols); err != nil {
				return err
			}
			if err := checkDims(h.Bc[k], w.R, "Bc", "R", cols2rows); err != nil {
				return err
			}
		}
		for k := range h.Ad {
			if err := checkDims(h.Ad[k], w.Q, "Ad", "Q", rowsAndcols); err != nil {
				return err
			}
			if err := checkDims(h.Bd[k], h.Ad[k], "Bd", "Ad", rows2rows); err != nil {
				return err
			}
			if err := checkDims(h.Bd[k], w.R, "Bd", "R", cols2rows); err != nil {
				return err
			}
			if err := checkDims(h.Cd[k], h.Bd[k], "Cd", "Bd", rowsAndcols); err != nil {
				return err
			}
		}
	} else {
		l := p.Linearization
		if l == nil {
			return ErrMissingLinearization
		}
		if len(l.A) != N-1 || len(l.B) != N-1 {
			return fmt.Errorf("%w: linearization does not cover %d intervals", dynamo.ErrDimensionMismatch, N-1)
		}
		for k := range l.A {
			if err := checkDims(l.A[k], w.Q, "A", "Q", rowsAndcols); err != nil {
				return err
			}
			if err := checkDims(l.B[k], l.A[k], "B", "A", rows2rows); err != nil {
				return err
			}
			if err := checkDims(l.B[k], w.R, "B", "R", cols2rows); err != nil {
				return err
			}
		}
	}
	return p.constraints().validate(N, controls)
}

// Gains is the feedback schedule of a sweep: δu = K·δx + d, plus B·δu⁻
// (feedback on the previous control) for first-order hold.
type Gains struct {
	K []*mat.Dense
	D []*mat.VecDense
	B []*mat.Dense
}

// Value is the quadratic cost-to-go of every knot. Hess and Grad are
// filled by the dense and first-order-hold passes (the latter over the
// block [x; u]); Factor holds the upper-triangular root used by the
// square-root pass.
type Value struct {
	Hess   []*mat.SymDense
	Grad   []*mat.VecDense
	Factor []*mat.TriDense
	// StateGrad and StateHess are the first-order-hold cost-to-go over the
	// initial state once the first control sample is eliminated.
	StateGrad *mat.VecDense
	StateHess *mat.SymDense
}

// Hessian returns the cost-to-go Hessian at knot k, expanding the factor
// UᵀU when the sweep kept only the square root.
func (v Value) Hessian(k int) *mat.SymDense {
	if v.Hess != nil && v.Hess[k] != nil {
		return v.Hess[k]
	}
	u := v.Factor[k]
	n, _ := u.Dims()
	s := mat.NewSymDense(n, nil)
	s.SymOuterK(1, u.T())
	return s
}

// ExpectedChange is the predicted cost change model ΔJ(α) = α·Linear + α²·Quadratic.
type ExpectedChange struct {
	Linear    float64
	Quadratic float64
}

func (e *ExpectedChange) add(d, g *mat.VecDense, h mat.Matrix) {
	e.Linear += mat.Dot(d, g)
	e.Quadratic += 0.5 * mat.Inner(d, h, d)
}

// Decrease returns the predicted decrease -α(Linear + α·Quadratic).
func (e ExpectedChange) Decrease(alpha float64) float64 {
	return -alpha * (e.Linear + alpha*e.Quadratic)
}

// Magnitude is |Linear + Quadratic|, the predicted change of a full step.
func (e ExpectedChange) Magnitude() float64 {
	v := e.Linear + e.Quadratic
	if v < 0 {
		return -v
	}
	return v
}

// Policy is the complete output of one successful sweep.
type Policy struct {
	Gains    Gains
	Value    Value
	Expected ExpectedChange
	// Restarts counts sweeps discarded for ill-conditioning.
	Restarts int
	// Fallbacks counts square-root downdates recovered through a dense
	// refactorization.
	Fallbacks int
}

// BackwardPass is implemented by the dense, square-root and first-order-hold
// recursions. Sweep either returns a policy computed entirely under one
// damping value or an error; it never returns partial gains.
type BackwardPass interface {
	Sweep(p *Problem, reg *Regularizer) (*Policy, error)
}

// DefaultMaxRestarts bounds the number of discarded sweeps when a pass is
// built with a non-positive limit.
const DefaultMaxRestarts = 50

func restartLimit(n int) int {
	if n <= 0 {
		return DefaultMaxRestarts
	}
	return n
}

// retry runs sweep until it succeeds, raising the damping after each
// failure. sweep reports the knot where it failed.
func retry(limit int, reg *Regularizer, sweep func() (*Policy, int, bool)) (*Policy, error) {
	limit = restartLimit(limit)
	for restarts := 0; ; restarts++ {
		pol, knot, ok := sweep()
		if ok {
			pol.Restarts = restarts
			return pol, nil
		}
		if restarts == limit {
			return nil, &SweepError{Knot: knot, Restarts: restarts, Damping: reg.Value(), Wrapped: ErrSweepDiverged}
		}
		reg.Increase()
		if reg.Saturated() {
			return nil, &SweepError{Knot: knot, Restarts: restarts + 1, Damping: reg.Value(), Wrapped: ErrRegularizationLimit}
		}
	}
}
