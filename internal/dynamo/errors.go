package dynamo

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState reports a NaN or Inf in a state vector.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")
	ErrUnknownParam    = errors.New("dynamo: unknown parameter")
	ErrUnknownModel    = errors.New("dynamo: unknown model")

	// ErrDimensionMismatch reports vectors or gain schedules that do not fit
	// the system or trajectory they are used with.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")
)

// SimulationError records where a closed-loop run failed.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4g): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
