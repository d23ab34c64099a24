package ddp

import (
	"fmt"
	"math"
)

// Mode selects where the damping enters the backward-pass algebra.
type Mode int

const (
	// StateMode inflates the propagated cost-to-go Hessian (S + ρI) before
	// it is pushed through the dynamics Jacobians.
	StateMode Mode = iota
	// ControlMode adds ρI directly to the control-control block.
	ControlMode
)

func (m Mode) String() string {
	switch m {
	case StateMode:
		return "state"
	case ControlMode:
		return "control"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode converts "state" or "control" into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "state":
		return StateMode, nil
	case "control":
		return ControlMode, nil
	}
	return 0, fmt.Errorf("%w: unknown regularization mode %q", ErrInvalidConfig, s)
}

type RegularizerConfig struct {
	Mode Mode
	// Initial damping; values below Min start at Min.
	Initial float64
	Min     float64
	Max     float64
	// Factor is the growth-rate multiplier, must be > 1.
	Factor float64
}

// Regularizer owns the damping value ρ and its growth rate. It is shared by
// every backward-pass attempt and line-search failure of a solve and is
// carried from one outer iteration to the next.
type Regularizer struct {
	mode   Mode
	value  float64
	rate   float64
	min    float64
	max    float64
	factor float64
}

func NewRegularizer(cfg RegularizerConfig) (*Regularizer, error) {
	if cfg.Min <= 0 || math.IsInf(cfg.Min, 0) || math.IsNaN(cfg.Min) {
		return nil, fmt.Errorf("%w: regularization minimum must be positive, got %g", ErrInvalidConfig, cfg.Min)
	}
	if cfg.Max < cfg.Min {
		return nil, fmt.Errorf("%w: regularization maximum %g below minimum %g", ErrInvalidConfig, cfg.Max, cfg.Min)
	}
	if cfg.Factor <= 1 {
		return nil, fmt.Errorf("%w: regularization factor must exceed 1, got %g", ErrInvalidConfig, cfg.Factor)
	}
	if cfg.Mode != StateMode && cfg.Mode != ControlMode {
		return nil, fmt.Errorf("%w: unknown regularization mode %d", ErrInvalidConfig, cfg.Mode)
	}
	return &Regularizer{
		mode:   cfg.Mode,
		value:  math.Max(cfg.Initial, cfg.Min),
		rate:   1,
		min:    cfg.Min,
		max:    cfg.Max,
		factor: cfg.Factor,
	}, nil
}

// Mode reports where the damping is applied. It is fixed at construction.
func (r *Regularizer) Mode() Mode { return r.mode }

// Value returns the current damping ρ.
func (r *Regularizer) Value() float64 { return r.value }

// Rate returns the current growth-rate multiplier.
func (r *Regularizer) Rate() float64 { return r.rate }

// Min returns the damping floor.
func (r *Regularizer) Min() float64 { return r.min }

// Increase grows the rate geometrically (never below Factor) and applies
// it to the damping.
func (r *Regularizer) Increase() {
	r.rate = math.Max(r.rate*r.factor, r.factor)
	r.value = math.Max(r.value*r.rate, r.min)
}

// Decrease shrinks the rate (never above 1/Factor) and applies it to the
// damping, which stays at or above Min.
func (r *Regularizer) Decrease() {
	r.rate = math.Min(r.rate/r.factor, 1/r.factor)
	r.value = math.Max(r.value*r.rate, r.min)
}

// Saturated reports whether the damping has grown past Max.
func (r *Regularizer) Saturated() bool {
	return r.value > r.max
}

func (r *Regularizer) String() string {
	return fmt.Sprintf("ρ=%.3g dρ=%.3g (%s)", r.value, r.rate, r.mode)
}
