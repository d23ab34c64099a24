package control

import (
	"fmt"
	"math"

	"github.com/san-kum/trajopt/internal/ddp"
	"github.com/san-kum/trajopt/internal/dynamo"
	"github.com/san-kum/trajopt/internal/integrators"
	"gonum.org/v1/gonum/mat"
)

// Tracking follows a nominal trajectory with the gain schedule of the
// sweep that produced it. Corrections are measured as each knot is
// reached. Under a zero-order hold the control on interval k is
//
//	u = U[k] + K[k]·(x[k] - X[k])
//
// Under a first-order hold the sample corrections follow the sweep
// recursion δu[k+1] = K[k+1]·δx[k] + B[k+1]·δu[k] and u is interpolated
// between samples.
//
// Tracking keeps the corrections of the current knot, so a controller
// drives one simulation at a time; call Reset before reusing it.
type Tracking struct {
	Nominal ddp.Trajectory
	Gains   ddp.Gains
	Dt      float64
	Hold    bool
	// After, when set, takes over once the horizon has passed. Otherwise the
	// last control keeps being applied with the last gain.
	After dynamo.Controller

	knot     int
	du, next *mat.VecDense
}

func NewTracking(nominal ddp.Trajectory, gains ddp.Gains, dt float64, hold bool) (*Tracking, error) {
	N := len(nominal.X)
	if N < 2 || dt <= 0 {
		return nil, fmt.Errorf("%w: tracking needs two knots and a positive dt", dynamo.ErrDimensionMismatch)
	}
	controls := N - 1
	if hold {
		controls = N
	}
	if len(nominal.U) != controls {
		return nil, fmt.Errorf("%w: %d controls for %d knots", dynamo.ErrDimensionMismatch, len(nominal.U), N)
	}
	if gains.K != nil && len(gains.K) != controls {
		return nil, fmt.Errorf("%w: %d gains for %d controls", dynamo.ErrDimensionMismatch, len(gains.K), controls)
	}
	if hold && gains.K != nil && len(gains.B) != controls {
		return nil, fmt.Errorf("%w: first-order hold needs %d control gains", dynamo.ErrDimensionMismatch, controls)
	}
	tr := &Tracking{Nominal: nominal, Gains: gains, Dt: dt, Hold: hold}
	tr.Reset()
	return tr, nil
}

// NewOpenLoop replays the nominal controls without feedback.
func NewOpenLoop(nominal ddp.Trajectory, dt float64, hold bool) (*Tracking, error) {
	return NewTracking(nominal, ddp.Gains{}, dt, hold)
}

func (c *Tracking) Reset() {
	c.knot = -1
	c.du, c.next = nil, nil
}

// Horizon is the time spanned by the nominal trajectory.
func (c *Tracking) Horizon() float64 {
	return float64(len(c.Nominal.X)-1) * c.Dt
}

// locate returns the interval containing t and the fraction of it elapsed.
func (c *Tracking) locate(t float64) (int, float64) {
	last := len(c.Nominal.X) - 2
	pos := t / c.Dt
	k := int(math.Floor(pos + 1e-9))
	if k < 0 {
		return 0, 0
	}
	if k > last {
		return last, 1
	}
	return k, math.Max(0, pos-float64(k))
}

func (c *Tracking) Compute(x dynamo.State, t float64) dynamo.Control {
	if c.After != nil && t >= c.Horizon()-1e-9 {
		return c.After.Compute(x, t)
	}
	k, s := c.locate(t)
	if c.Hold {
		return c.hold(x, k, s)
	}

	if c.Gains.K != nil && k != c.knot {
		c.knot = k
		c.du = feedback(c.Gains.K[k], x.Sub(c.Nominal.X[k]))
	}
	u := c.Nominal.U[k].Clone()
	if c.du != nil {
		add(u, c.du)
	}
	return u
}

func (c *Tracking) hold(x dynamo.State, k int, s float64) dynamo.Control {
	if c.Gains.K != nil && k != c.knot {
		c.advance(x, k)
	}
	u1 := c.Nominal.U[k].Clone()
	u2 := c.Nominal.U[k+1].Clone()
	if c.du != nil {
		add(u1, c.du)
		add(u2, c.next)
	}
	return integrators.Lerp(u1, u2, s)
}

// advance moves the sample corrections to knot k using the state measured
// there. Knots skipped by a coarse caller are bridged with the nominal
// states.
func (c *Tracking) advance(x dynamo.State, k int) {
	if c.knot < 0 {
		dx := x.Sub(c.Nominal.X[0])
		c.du = feedback(c.Gains.K[0], dx)
		c.next = c.propagate(1, dx, c.du)
		c.knot = 0
	}
	for c.knot < k {
		c.knot++
		dx := make(dynamo.State, len(x))
		if c.knot == k {
			dx = x.Sub(c.Nominal.X[k])
		}
		c.du = c.next
		c.next = c.propagate(c.knot+1, dx, c.du)
	}
}

func (c *Tracking) propagate(k int, dx dynamo.State, du *mat.VecDense) *mat.VecDense {
	v := feedback(c.Gains.K[k], dx)
	var b mat.VecDense
	b.MulVec(c.Gains.B[k], du)
	v.AddVec(v, &b)
	return v
}

func feedback(K mat.Matrix, dx dynamo.State) *mat.VecDense {
	r, _ := K.Dims()
	v := mat.NewVecDense(r, nil)
	v.MulVec(K, mat.NewVecDense(len(dx), dx))
	return v
}

func add(u dynamo.Control, v mat.Vector) {
	for i := range u {
		u[i] += v.AtVec(i)
	}
}
