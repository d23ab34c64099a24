package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/trajopt/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Pendulum is x = [theta, omega] with theta = 0 hanging down, u = [torque].
type Pendulum struct {
	Mass    float64
	Length  float64
	Damping float64
	Gravity float64
}

func NewPendulum() *Pendulum {
	return &Pendulum{
		Mass:    1.0,
		Length:  1.0,
		Damping: 0.1,
		Gravity: 9.81,
	}
}

func (p *Pendulum) StateDim() int {
	return 2
}

func (p *Pendulum) ControlDim() int {
	return 1
}

func (p *Pendulum) inertia() float64 {
	return p.Mass * p.Length * p.Length
}

func (p *Pendulum) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	theta := x[0]
	omega := x[1]

	torque := 0.0
	if len(u) > 0 {
		torque = u[0]
	}
	alpha := (-p.Damping*omega - p.Mass*p.Gravity*p.Length*math.Sin(theta) + torque) / p.inertia()

	return dynamo.State{omega, alpha}
}

func (p *Pendulum) Jacobians(x dynamo.State, u dynamo.Control, t float64) (*mat.Dense, *mat.Dense) {
	A := mat.NewDense(2, 2, []float64{
		0, 1,
		-p.Gravity * math.Cos(x[0]) / p.Length, -p.Damping / p.inertia(),
	})
	B := mat.NewDense(2, 1, []float64{0, 1 / p.inertia()})
	return A, B
}

func (p *Pendulum) GetParams() map[string]float64 {
	return map[string]float64{
		"mass":    p.Mass,
		"length":  p.Length,
		"damping": p.Damping,
		"gravity": p.Gravity,
	}
}

func (p *Pendulum) SetParam(name string, value float64) error {
	switch name {
	case "mass":
		p.Mass = value
	case "length":
		p.Length = value
	case "damping":
		p.Damping = value
	case "gravity":
		p.Gravity = value
	default:
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownParam, name)
	}
	if p.Mass <= 0 || p.Length <= 0 {
		return fmt.Errorf("%w: mass and length must be positive", dynamo.ErrParameterBounds)
	}
	return nil
}
