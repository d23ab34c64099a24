package control

import "github.com/san-kum/trajopt/internal/dynamo"

// None applies zero control, the uncontrolled baseline a solved policy is
// compared against.
type None struct {
	zero dynamo.Control
}

func NewNone(dim int) *None {
	return &None{zero: make(dynamo.Control, dim)}
}

func (n *None) Compute(dynamo.State, float64) dynamo.Control {
	return n.zero.Clone()
}
