package control

import (
	"github.com/san-kum/trajopt/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// LQR applies u = -K(x - target).
type LQR struct {
	K      [][]float64
	Target dynamo.State
}

func NewLQR(k [][]float64, target dynamo.State) *LQR {
	return &LQR{K: k, Target: target}
}

// FromGain builds an LQR from a feedback gain in the δu = K·δx convention
// of a backward sweep.
func FromGain(K mat.Matrix, target dynamo.State) *LQR {
	r, c := K.Dims()
	k := make([][]float64, r)
	for i := range k {
		k[i] = make([]float64, c)
		for j := range k[i] {
			k[i][j] = -K.At(i, j)
		}
	}
	return NewLQR(k, target.Clone())
}

func (l *LQR) Compute(x dynamo.State, t float64) dynamo.Control {
	u := make(dynamo.Control, len(l.K))
	for i := range u {
		for j := range x {
			target := 0.0
			if j < len(l.Target) {
				target = l.Target[j]
			}
			if j < len(l.K[i]) {
				u[i] -= l.K[i][j] * (x[j] - target)
			}
		}
	}
	return u
}
