package solver

import "errors"

var (
	// ErrInvalidProblem indicates a problem definition that cannot be solved.
	ErrInvalidProblem = errors.New("solver: invalid problem")

	// ErrInvalidOptions indicates solver options that cannot be used.
	ErrInvalidOptions = errors.New("solver: invalid options")

	// ErrInitialRollout indicates that the initial guess already produces
	// non-finite states.
	ErrInitialRollout = errors.New("solver: initial rollout is not finite")
)
