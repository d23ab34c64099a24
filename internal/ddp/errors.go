package ddp

import (
	"errors"
	"fmt"

	"github.com/san-kum/trajopt/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrSweepDiverged is returned when a backward pass exhausts its
	// restart budget without completing a sweep.
	ErrSweepDiverged = errors.New("ddp: backward sweep did not complete within the restart budget")

	// ErrRegularizationLimit is returned when the damping grows past the
	// configured maximum.
	ErrRegularizationLimit = errors.New("ddp: regularization exceeded its maximum")

	// ErrMissingLinearization indicates that the problem lacks the Jacobians
	// the selected backward pass needs.
	ErrMissingLinearization = errors.New("ddp: problem has no linearization for this backward pass")

	// ErrInvalidConfig indicates line search or regularization settings
	// that cannot be used.
	ErrInvalidConfig = errors.New("ddp: invalid configuration")
)

// SweepError reports where a backward sweep gave up.
type SweepError struct {
	Knot     int
	Restarts int
	Damping  float64
	Wrapped  error
}

func (e *SweepError) Error() string {
	return fmt.Sprintf("%s (knot %d, %d restarts, damping %.3g)", e.Wrapped, e.Knot, e.Restarts, e.Damping)
}

func (e *SweepError) Unwrap() error {
	return e.Wrapped
}

// dimAgreement defines how two matrices' dimensions should agree.
type dimAgreement uint8

const (
	rows2cols dimAgreement = iota + 1
	cols2rows
	rows2rows
	rowsAndcols
)

// checkDims checks the matrix dimensions match provided a dimAgreement.
// Mismatches wrap dynamo.ErrDimensionMismatch.
func checkDims(m1, m2 mat.Matrix, name1, name2 string, method dimAgreement) error {
	r1, c1 := m1.Dims()
	r2, c2 := m2.Dims()
	switch method {
	case rows2cols:
		if r1 != c2 {
			return fmt.Errorf("%w: %s(%dx...) %s(...x%d)", dynamo.ErrDimensionMismatch, name1, r1, name2, c2)
		}
	case cols2rows:
		if c1 != r2 {
			return fmt.Errorf("%w: %s(...x%d) %s(%dx...)", dynamo.ErrDimensionMismatch, name1, c1, name2, r2)
		}
	case rows2rows:
		if r1 != r2 {
			return fmt.Errorf("%w: %s(%dx...) %s(%dx...)", dynamo.ErrDimensionMismatch, name1, r1, name2, r2)
		}
	case rowsAndcols:
		if c1 != c2 || r1 != r2 {
			return fmt.Errorf("%w: %s(%dx%d) %s(%dx%d)", dynamo.ErrDimensionMismatch, name1, r1, c1, name2, r2, c2)
		}
	}
	return nil
}
