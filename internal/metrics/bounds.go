package metrics

import (
	"math"

	"github.com/san-kum/trajopt/internal/dynamo"
)

// BoundViolation is the largest amount by which any applied control left
// [lower, upper].
type BoundViolation struct {
	name         string
	lower, upper dynamo.Control
	worst        float64
}

func NewBoundViolation(lower, upper dynamo.Control) *BoundViolation {
	return &BoundViolation{
		name:  "bound_violation",
		lower: lower,
		upper: upper,
	}
}

func (b *BoundViolation) Name() string {
	return b.name
}

func (b *BoundViolation) Observe(x dynamo.State, u dynamo.Control, t float64) {
	for i, val := range u {
		if i < len(b.upper) {
			b.worst = math.Max(b.worst, val-b.upper[i])
		}
		if i < len(b.lower) {
			b.worst = math.Max(b.worst, b.lower[i]-val)
		}
	}
}

func (b *BoundViolation) Value() float64 {
	return b.worst
}

func (b *BoundViolation) Reset() {
	b.worst = 0
}
