package ddp

import (
	"fmt"
	"math"
)

// LineSearch is the backtracking forward pass. The bounds and the
// iteration cap are required; there are no defaults.
type LineSearch struct {
	// LowerBound and UpperBound bracket the accepted ratio of actual to
	// predicted decrease: LowerBound < z <= UpperBound.
	LowerBound    float64
	UpperBound    float64
	MaxIterations int
}

// Step is the outcome of one forward pass.
type Step struct {
	Trajectory Trajectory
	Cost       float64
	// Alpha is the accepted step size, 0 when the search gave up.
	Alpha      float64
	Ratio      float64
	Iterations int
	Accepted   bool
}

func (ls LineSearch) Validate() error {
	if ls.MaxIterations <= 0 {
		return fmt.Errorf("%w: line search needs a positive iteration cap, got %d", ErrInvalidConfig, ls.MaxIterations)
	}
	if math.IsNaN(ls.LowerBound) || math.IsNaN(ls.UpperBound) || ls.LowerBound >= ls.UpperBound {
		return fmt.Errorf("%w: line search bounds (%g, %g] are empty", ErrInvalidConfig, ls.LowerBound, ls.UpperBound)
	}
	return nil
}

// Run halves the step size from 1 until the decrease ratio
//
//	z = (baseline - J(α)) / -α(Δv₁ + α·Δv₂)
//
// is accepted. A rollout or cost that is not finite costs one iteration
// and halves the step. When the budget runs out the nominal trajectory is
// returned unchanged with the baseline cost and the damping is increased.
func (ls LineSearch) Run(nominal Trajectory, dv ExpectedChange, baseline float64, rollout Rollout, cost CostFunc, reg *Regularizer) (*Step, error) {
	if err := ls.Validate(); err != nil {
		return nil, err
	}

	alpha := 1.0
	z := math.NaN()
	for it := 1; it <= ls.MaxIterations; it++ {
		cand, ok := rollout(alpha)
		if !ok {
			alpha /= 2
			continue
		}
		J := cost(cand)
		if math.IsNaN(J) || math.IsInf(J, 0) {
			alpha /= 2
			continue
		}

		// NaN never falls inside the bounds
		z = math.NaN()
		if expected := dv.Decrease(alpha); expected > 0 {
			z = (baseline - J) / expected
		}
		if ls.LowerBound < z && z <= ls.UpperBound {
			return &Step{Trajectory: cand, Cost: J, Alpha: alpha, Ratio: z, Iterations: it, Accepted: true}, nil
		}
		alpha /= 2
	}

	reg.Increase()
	return &Step{
		Trajectory: nominal.Clone(),
		Cost:       baseline,
		Ratio:      z,
		Iterations: ls.MaxIterations,
	}, nil
}
