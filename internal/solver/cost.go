package solver

import (
	"github.com/san-kum/trajopt/internal/ddp"
	"github.com/san-kum/trajopt/internal/dynamo"
	"github.com/san-kum/trajopt/internal/integrators"
	"gonum.org/v1/gonum/mat"
)

func stageCost(w ddp.Weights, x dynamo.State, u dynamo.Control) float64 {
	e := make([]float64, len(x))
	for i := range x {
		e[i] = x[i] - w.Target[i]
	}
	ev := mat.NewVecDense(len(e), e)
	uv := mat.NewVecDense(len(u), u)
	return 0.5*mat.Inner(ev, w.Q, ev) + 0.5*mat.Inner(uv, w.R, uv)
}

func terminalCost(w ddp.Weights, x dynamo.State) float64 {
	e := make([]float64, len(x))
	for i := range x {
		e[i] = x[i] - w.Target[i]
	}
	ev := mat.NewVecDense(len(e), e)
	return 0.5 * mat.Inner(ev, w.Qf, ev)
}

// Cost is the objective without constraint penalties. Zero-order-hold
// stages are weighted by dt; first-order-hold intervals are integrated
// with Simpson's rule over the Hermite midpoint.
func Cost(p *Problem, hold bool, tr ddp.Trajectory) float64 {
	w := p.Weights
	N := len(tr.X)
	J := terminalCost(w, tr.X[N-1])
	if !hold {
		for k := 0; k < N-1; k++ {
			J += p.Dt * stageCost(w, tr.X[k], tr.U[k])
		}
		return J
	}
	for k := 0; k < N-1; k++ {
		xm := integrators.HermiteMidpoint(p.System, tr.X[k], tr.X[k+1], tr.U[k], tr.U[k+1], p.time(k), p.Dt)
		um := integrators.Lerp(tr.U[k], tr.U[k+1], 0.5)
		J += p.Dt / 6 * (stageCost(w, tr.X[k], tr.U[k]) + 4*stageCost(w, xm, um) + stageCost(w, tr.X[k+1], tr.U[k+1]))
	}
	return J
}
