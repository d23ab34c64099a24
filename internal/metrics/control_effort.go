package metrics

import (
	"github.com/san-kum/trajopt/internal/dynamo"
	"gonum.org/v1/gonum/floats"
)

// ControlEffort integrates uᵀu over the run. Each control is held until the
// next observation, the same way the simulator applies it.
type ControlEffort struct {
	name  string
	total float64
	held  float64
	since float64
	seen  bool
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{name: "control_effort"}
}

func (c *ControlEffort) Name() string { return c.name }

func (c *ControlEffort) Observe(x dynamo.State, u dynamo.Control, t float64) {
	c.advance(t)
	c.held = floats.Dot(u, u)
}

func (c *ControlEffort) Finish(x dynamo.State, t float64) {
	c.advance(t)
	c.held = 0
}

func (c *ControlEffort) advance(t float64) {
	if c.seen && t > c.since {
		c.total += c.held * (t - c.since)
	}
	c.since, c.seen = t, true
}

func (c *ControlEffort) Value() float64 { return c.total }

func (c *ControlEffort) Reset() {
	*c = ControlEffort{name: c.name}
}
