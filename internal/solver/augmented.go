package solver

import (
	"math"

	"github.com/san-kum/trajopt/internal/ddp"
	"github.com/san-kum/trajopt/internal/dynamo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// augmented keeps the multipliers and penalties of an augmented-Lagrangian
// solve. Control bounds become 2m inequalities per control sample,
//
//	c(u) = [u - upper; lower - u] <= 0,
//
// and a terminal goal is the equality x_N - target = 0.
type augmented struct {
	bounds *Bounds
	goal   bool
	target dynamo.State
	opts   ConstraintOptions

	lambda [][]float64
	mu     [][]float64

	goalLambda []float64
	goalMu     []float64
}

func newAugmented(p *Problem, hold bool, opts ConstraintOptions) *augmented {
	if !p.constrained() {
		return nil
	}
	a := &augmented{bounds: p.Bounds, goal: p.Goal, target: p.Weights.Target, opts: opts}
	if p.Bounds != nil {
		stages := p.controls(hold)
		size := 2 * p.System.ControlDim()
		a.lambda = make([][]float64, stages)
		a.mu = make([][]float64, stages)
		for k := range a.lambda {
			a.lambda[k] = make([]float64, size)
			a.mu[k] = constant(size, opts.PenaltyInitial)
		}
	}
	if p.Goal {
		n := p.System.StateDim()
		a.goalLambda = make([]float64, n)
		a.goalMu = constant(n, opts.PenaltyInitial)
	}
	return a
}

func constant(n int, v float64) []float64 {
	s := make([]float64, n)
	floats.AddConst(v, s)
	return s
}

func (a *augmented) stageValue(u dynamo.Control) []float64 {
	m := len(u)
	c := make([]float64, 2*m)
	for i := range u {
		c[i] = u[i] - a.bounds.Upper[i]
		c[m+i] = a.bounds.Lower[i] - u[i]
	}
	return c
}

func (a *augmented) goalValue(x dynamo.State) []float64 {
	c := make([]float64, len(x))
	floats.SubTo(c, x, a.target)
	return c
}

// active returns the diagonal of Iμ: an inequality is penalized while it
// is violated or its multiplier is positive.
func active(c, lambda, mu []float64) []float64 {
	w := make([]float64, len(c))
	for i := range c {
		if c[i] > 0 || lambda[i] > 0 {
			w[i] = mu[i]
		}
	}
	return w
}

// activeSet builds the constraint expansion around tr.
func (a *augmented) activeSet(tr ddp.Trajectory) *ddp.ActiveSet {
	set := &ddp.ActiveSet{}
	if a.bounds != nil {
		n := len(tr.X[0])
		m := len(tr.U[0])
		Ju := mat.NewDense(2*m, m, nil)
		for i := 0; i < m; i++ {
			Ju.Set(i, i, 1)
			Ju.Set(m+i, i, -1)
		}
		Jx := mat.NewDense(2*m, n, nil)
		set.Stages = make([]ddp.ConstraintTerm, len(a.lambda))
		for k := range set.Stages {
			c := a.stageValue(tr.U[k])
			set.Stages[k] = ddp.ConstraintTerm{
				Value:      mat.NewVecDense(len(c), c),
				Jx:         Jx,
				Ju:         Ju,
				Penalty:    mat.NewDiagDense(len(c), active(c, a.lambda[k], a.mu[k])),
				Multiplier: mat.NewVecDense(len(c), append([]float64(nil), a.lambda[k]...)),
			}
		}
	}
	if a.goal {
		N := len(tr.X)
		n := len(tr.X[0])
		c := a.goalValue(tr.X[N-1])
		Jx := mat.NewDense(n, n, nil)
		for i := 0; i < n; i++ {
			Jx.Set(i, i, 1)
		}
		set.Terminal = &ddp.ConstraintTerm{
			Value:      mat.NewVecDense(n, c),
			Jx:         Jx,
			Penalty:    mat.NewDiagDense(n, append([]float64(nil), a.goalMu...)),
			Multiplier: mat.NewVecDense(n, append([]float64(nil), a.goalLambda...)),
		}
	}
	return set
}

// penalty is Σ λᵀc + ½cᵀIμc over every constraint.
func (a *augmented) penalty(tr ddp.Trajectory) float64 {
	if a == nil {
		return 0
	}
	total := 0.0
	term := func(c, lambda, w []float64) {
		for i := range c {
			total += lambda[i]*c[i] + 0.5*w[i]*c[i]*c[i]
		}
	}
	for k := range a.lambda {
		c := a.stageValue(tr.U[k])
		term(c, a.lambda[k], active(c, a.lambda[k], a.mu[k]))
	}
	if a.goal {
		term(a.goalValue(tr.X[len(tr.X)-1]), a.goalLambda, a.goalMu)
	}
	return total
}

// violation is the largest bound excess or goal error.
func (a *augmented) violation(tr ddp.Trajectory) float64 {
	if a == nil {
		return 0
	}
	worst := 0.0
	for k := range a.lambda {
		worst = math.Max(worst, floats.Max(a.stageValue(tr.U[k])))
	}
	if a.goal {
		c := a.goalValue(tr.X[len(tr.X)-1])
		worst = math.Max(worst, floats.Norm(c, math.Inf(1)))
	}
	return worst
}

// update applies the first-order multiplier update and grows the
// penalties:
//
//	λ ← max(0, λ + μc)   (bounds)
//	λ ← λ + μc           (goal)
//	μ ← min(φμ, μmax)
func (a *augmented) update(tr ddp.Trajectory) {
	grow := func(mu []float64) {
		for i := range mu {
			mu[i] = math.Min(mu[i]*a.opts.PenaltyScale, a.opts.PenaltyMax)
		}
	}
	for k := range a.lambda {
		c := a.stageValue(tr.U[k])
		for i := range c {
			a.lambda[k][i] = math.Max(0, a.lambda[k][i]+a.mu[k][i]*c[i])
		}
		grow(a.mu[k])
	}
	if a.goal {
		c := a.goalValue(tr.X[len(tr.X)-1])
		for i := range c {
			a.goalLambda[i] += a.goalMu[i] * c[i]
		}
		grow(a.goalMu)
	}
}

// maxPenalty is the largest current penalty weight.
func (a *augmented) maxPenalty() float64 {
	if a == nil {
		return 0
	}
	worst := 0.0
	for _, mu := range a.mu {
		worst = math.Max(worst, floats.Max(mu))
	}
	if a.goal {
		worst = math.Max(worst, floats.Max(a.goalMu))
	}
	return worst
}
