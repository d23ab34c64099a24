package solver

import (
	"fmt"

	"github.com/san-kum/trajopt/internal/ddp"
)

// Pass selects the backward pass and with it the control parameterization.
type Pass int

const (
	DensePass Pass = iota
	SquareRootPass
	// HoldPass uses first-order-hold controls.
	HoldPass
)

func (p Pass) String() string {
	switch p {
	case DensePass:
		return "dense"
	case SquareRootPass:
		return "sqrt"
	case HoldPass:
		return "foh"
	}
	return fmt.Sprintf("Pass(%d)", int(p))
}

func ParsePass(s string) (Pass, error) {
	switch s {
	case "dense":
		return DensePass, nil
	case "sqrt":
		return SquareRootPass, nil
	case "foh":
		return HoldPass, nil
	}
	return 0, fmt.Errorf("%w: unknown backward pass %q", ErrInvalidOptions, s)
}

// Hold reports whether controls are first-order-hold samples.
func (p Pass) Hold() bool { return p == HoldPass }

func (p Pass) backward(maxRestarts int) ddp.BackwardPass {
	switch p {
	case SquareRootPass:
		return ddp.NewSquareRoot(maxRestarts)
	case HoldPass:
		return ddp.NewFirstOrderHold(maxRestarts)
	}
	return ddp.NewDense(maxRestarts)
}

type Options struct {
	Pass           Pass
	MaxIterations  int
	MaxRestarts    int
	Regularization ddp.RegularizerConfig
	LineSearch     ddp.LineSearch

	// GradientTolerance stops the solve once the predicted change of a
	// full step |Δv₁ + Δv₂| falls below it.
	GradientTolerance float64
	// CostTolerance stops the solve once an accepted step improves the
	// cost by less than this fraction.
	CostTolerance float64

	Constraints ConstraintOptions
}

// ConstraintOptions configure the augmented-Lagrangian outer loop used
// when a problem has control bounds or a terminal goal.
type ConstraintOptions struct {
	MaxOuter  int
	Tolerance float64
	// Penalty starts at PenaltyInitial and is multiplied by PenaltyScale
	// after every outer iteration, up to PenaltyMax.
	PenaltyInitial float64
	PenaltyScale   float64
	PenaltyMax     float64
}

func (o Options) Validate() error {
	if o.MaxIterations <= 0 {
		return fmt.Errorf("%w: max iterations must be positive, got %d", ErrInvalidOptions, o.MaxIterations)
	}
	if o.GradientTolerance < 0 || o.CostTolerance < 0 {
		return fmt.Errorf("%w: tolerances must not be negative", ErrInvalidOptions)
	}
	if o.Pass < DensePass || o.Pass > HoldPass {
		return fmt.Errorf("%w: unknown backward pass %d", ErrInvalidOptions, o.Pass)
	}
	if err := o.LineSearch.Validate(); err != nil {
		return err
	}
	if _, err := ddp.NewRegularizer(o.Regularization); err != nil {
		return err
	}
	return nil
}

func (c ConstraintOptions) validate() error {
	if c.MaxOuter <= 0 {
		return fmt.Errorf("%w: max outer iterations must be positive, got %d", ErrInvalidOptions, c.MaxOuter)
	}
	if c.Tolerance <= 0 {
		return fmt.Errorf("%w: constraint tolerance must be positive", ErrInvalidOptions)
	}
	if c.PenaltyInitial <= 0 || c.PenaltyScale < 1 || c.PenaltyMax < c.PenaltyInitial {
		return fmt.Errorf("%w: penalty schedule %g×%g up to %g", ErrInvalidOptions, c.PenaltyInitial, c.PenaltyScale, c.PenaltyMax)
	}
	return nil
}
