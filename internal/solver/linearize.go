package solver

import (
	"github.com/san-kum/trajopt/internal/ddp"
	"github.com/san-kum/trajopt/internal/dynamo"
	"github.com/san-kum/trajopt/internal/integrators"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

var central = &fd.JacobianSettings{Formula: fd.Central}

// jacobian differentiates f with respect to the concatenation of its
// arguments and splits the result into one block per argument.
func jacobian(rows int, f func(y, z []float64), args ...[]float64) []*mat.Dense {
	var z []float64
	for _, a := range args {
		z = append(z, a...)
	}
	J := mat.NewDense(rows, len(z), nil)
	fd.Jacobian(J, f, z, central)

	blocks := make([]*mat.Dense, len(args))
	at := 0
	for i, a := range args {
		blocks[i] = mat.DenseCopyOf(J.Slice(0, rows, at, at+len(a)))
		at += len(a)
	}
	return blocks
}

// continuous returns df/dx and df/du, analytically when the system
// provides them.
func continuous(sys dynamo.System, x dynamo.State, u dynamo.Control, t float64) (*mat.Dense, *mat.Dense) {
	if l, ok := sys.(dynamo.Linearizable); ok {
		return l.Jacobians(x, u, t)
	}
	n := len(x)
	b := jacobian(n, func(y, z []float64) {
		copy(y, sys.Derive(z[:n], z[n:], t))
	}, x, u)
	return b[0], b[1]
}

// linearize returns the discrete Jacobians of every interval of a
// zero-order-hold trajectory.
func linearize(p *Problem, tr ddp.Trajectory) *ddp.Linearization {
	N := len(tr.X)
	n := len(tr.X[0])
	step := p.step()
	lin := &ddp.Linearization{A: make([]*mat.Dense, N-1), B: make([]*mat.Dense, N-1)}
	for k := 0; k < N-1; k++ {
		b := jacobian(n, func(y, z []float64) {
			copy(y, step(k, z[:n], z[n:]))
		}, tr.X[k], tr.U[k])
		lin.A[k], lin.B[k] = b[0], b[1]
	}
	return lin
}

// linearizeHold returns what the first-order-hold pass needs: continuous
// Jacobians at every knot, discrete Jacobians of x⁺ = F(x, u, v) for every
// interval and the interval midpoints.
func linearizeHold(p *Problem, tr ddp.Trajectory) *ddp.HoldLinearization {
	N := len(tr.X)
	n := len(tr.X[0])
	m := len(tr.U[0])
	step := p.holdStep()
	h := &ddp.HoldLinearization{
		Ac:  make([]*mat.Dense, N),
		Bc:  make([]*mat.Dense, N),
		Ad:  make([]*mat.Dense, N-1),
		Bd:  make([]*mat.Dense, N-1),
		Cd:  make([]*mat.Dense, N-1),
		Mid: make([]dynamo.State, N-1),
	}
	for k := 0; k < N; k++ {
		h.Ac[k], h.Bc[k] = continuous(p.System, tr.X[k], tr.U[k], p.time(k))
	}
	for k := 0; k < N-1; k++ {
		b := jacobian(n, func(y, z []float64) {
			copy(y, step(k, z[:n], z[n:n+m], z[n+m:]))
		}, tr.X[k], tr.U[k], tr.U[k+1])
		h.Ad[k], h.Bd[k], h.Cd[k] = b[0], b[1], b[2]
		h.Mid[k] = integrators.HermiteMidpoint(p.System, tr.X[k], tr.X[k+1], tr.U[k], tr.U[k+1], p.time(k), p.Dt)
	}
	return h
}
