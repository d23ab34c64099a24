package physics

import (
	"fmt"

	"github.com/san-kum/trajopt/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// DoubleIntegrator is a mass on a frictionless line: x = [pos, vel], u = [force].
type DoubleIntegrator struct {
	Mass float64
}

func NewDoubleIntegrator() *DoubleIntegrator {
	return &DoubleIntegrator{Mass: 1.0}
}

func (d *DoubleIntegrator) StateDim() int   { return 2 }
func (d *DoubleIntegrator) ControlDim() int { return 1 }

func (d *DoubleIntegrator) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	force := 0.0
	if len(u) > 0 {
		force = u[0]
	}
	return dynamo.State{x[1], force / d.Mass}
}

func (d *DoubleIntegrator) Jacobians(x dynamo.State, u dynamo.Control, t float64) (*mat.Dense, *mat.Dense) {
	A := mat.NewDense(2, 2, []float64{0, 1, 0, 0})
	B := mat.NewDense(2, 1, []float64{0, 1 / d.Mass})
	return A, B
}

func (d *DoubleIntegrator) GetParams() map[string]float64 {
	return map[string]float64{"mass": d.Mass}
}

func (d *DoubleIntegrator) SetParam(name string, value float64) error {
	switch name {
	case "mass":
		if value <= 0 {
			return fmt.Errorf("%w: mass must be positive", dynamo.ErrParameterBounds)
		}
		d.Mass = value
	default:
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParam, name)
	}
	return nil
}
