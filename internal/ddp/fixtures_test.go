package ddp

import (
	"testing"

	"github.com/san-kum/trajopt/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// lti is a continuous linear system dx/dt = Ac·x + Bc·u.
type lti struct {
	Ac, Bc *mat.Dense
}

func doubleIntegrator() lti {
	return lti{
		Ac: mat.NewDense(2, 2, []float64{0, 1, 0, 0}),
		Bc: mat.NewDense(2, 1, []float64{0, 1}),
	}
}

func (s lti) f(x dynamo.State, u dynamo.Control) dynamo.State {
	var dx, bu mat.VecDense
	dx.MulVec(s.Ac, vec(x))
	bu.MulVec(s.Bc, vec(u))
	dx.AddVec(&dx, &bu)
	out := make(dynamo.State, dx.Len())
	for i := range out {
		out[i] = dx.AtVec(i)
	}
	return out
}

// exact zero-order-hold discretization of the double integrator
func zohMatrices(dt float64) (*mat.Dense, *mat.Dense) {
	return mat.NewDense(2, 2, []float64{1, dt, 0, 1}), mat.NewDense(2, 1, []float64{dt * dt / 2, dt})
}

func zohStep(A, B *mat.Dense) Discrete {
	return func(_ int, x dynamo.State, u dynamo.Control) dynamo.State {
		var nx, bu mat.VecDense
		nx.MulVec(A, vec(x))
		bu.MulVec(B, vec(u))
		nx.AddVec(&nx, &bu)
		out := make(dynamo.State, nx.Len())
		for i := range out {
			out[i] = nx.AtVec(i)
		}
		return out
	}
}

func (s lti) rk3(dt float64) HoldDiscrete {
	return func(_ int, x dynamo.State, u1, u2 dynamo.Control) dynamo.State {
		um := make(dynamo.Control, len(u1))
		for i := range um {
			um[i] = 0.5 * (u1[i] + u2[i])
		}
		k1 := s.f(x, u1)
		k2 := s.f(x.Add(k1.Scale(dt/2)), um)
		k3 := s.f(x.Sub(k1.Scale(dt)).Add(k2.Scale(2*dt)), u2)
		return x.Add(k1.Add(k2.Scale(4)).Add(k3).Scale(dt / 6))
	}
}

func testWeights() Weights {
	return Weights{
		Q:      mat.NewSymDense(2, []float64{1, 0, 0, 1}),
		R:      mat.NewSymDense(1, []float64{0.1}),
		Qf:     mat.NewSymDense(2, []float64{10, 0, 0, 10}),
		Target: dynamo.State{1, 0},
	}
}

func newTestRegularizer(t *testing.T, mode Mode) *Regularizer {
	t.Helper()
	reg, err := NewRegularizer(RegularizerConfig{Mode: mode, Min: 1e-12, Max: 1e10, Factor: 1.6})
	if err != nil {
		t.Fatalf("regularizer: %v", err)
	}
	return reg
}

// zohProblem rolls a constant control through the double integrator.
func zohProblem(N int, dt float64) (*Problem, Discrete) {
	A, B := zohMatrices(dt)
	step := zohStep(A, B)
	traj := Trajectory{X: make([]dynamo.State, N), U: make([]dynamo.Control, N-1)}
	traj.X[0] = dynamo.State{-0.5, 0.2}
	lin := &Linearization{A: make([]*mat.Dense, N-1), B: make([]*mat.Dense, N-1)}
	for k := 0; k < N-1; k++ {
		traj.U[k] = dynamo.Control{0.3}
		traj.X[k+1] = step(k, traj.X[k], traj.U[k])
		lin.A[k], lin.B[k] = A, B
	}
	return &Problem{Trajectory: traj, Weights: testWeights(), Dt: dt, Linearization: lin}, step
}

func zohCost(w Weights, dt float64) CostFunc {
	return func(tr Trajectory) float64 {
		J := 0.0
		for k, u := range tr.U {
			J += dt * stageCost(w, tr.X[k], u)
		}
		e := deviation(tr.X[len(tr.X)-1], w.Target)
		return J + 0.5*mat.Inner(e, w.Qf, e)
	}
}

func stageCost(w Weights, x dynamo.State, u dynamo.Control) float64 {
	e := deviation(x, w.Target)
	return 0.5*mat.Inner(e, w.Q, e) + 0.5*mat.Inner(vec(u), w.R, vec(u))
}

// holdProblem builds the first-order-hold linearization of the double
// integrator. The RK3 step is linear, so its discrete Jacobians are the
// images of the unit vectors.
func holdProblem(N int, dt float64) (*Problem, lti) {
	sys := doubleIntegrator()
	step := sys.rk3(dt)
	traj := Trajectory{X: make([]dynamo.State, N), U: make([]dynamo.Control, N)}
	traj.X[0] = dynamo.State{-0.5, 0.2}
	for k := 0; k < N; k++ {
		traj.U[k] = dynamo.Control{0.2 - 0.01*float64(k)}
	}
	for k := 0; k < N-1; k++ {
		traj.X[k+1] = step(k, traj.X[k], traj.U[k], traj.U[k+1])
	}

	zx, zu := dynamo.State{0, 0}, dynamo.Control{0}
	Ad, Bd, Cd := mat.NewDense(2, 2, nil), mat.NewDense(2, 1, nil), mat.NewDense(2, 1, nil)
	for j := 0; j < 2; j++ {
		e := dynamo.State{0, 0}
		e[j] = 1
		Ad.SetCol(j, step(0, e, zu, zu))
	}
	Bd.SetCol(0, step(0, zx, dynamo.Control{1}, zu))
	Cd.SetCol(0, step(0, zx, zu, dynamo.Control{1}))

	h := &HoldLinearization{
		Ac: make([]*mat.Dense, N), Bc: make([]*mat.Dense, N),
		Ad: make([]*mat.Dense, N-1), Bd: make([]*mat.Dense, N-1), Cd: make([]*mat.Dense, N-1),
		Mid: make([]dynamo.State, N-1),
	}
	for k := 0; k < N; k++ {
		h.Ac[k], h.Bc[k] = sys.Ac, sys.Bc
	}
	for k := 0; k < N-1; k++ {
		h.Ad[k], h.Bd[k], h.Cd[k] = Ad, Bd, Cd
		h.Mid[k] = midpoint(sys, dt, traj.X[k], traj.X[k+1], traj.U[k], traj.U[k+1])
	}
	return &Problem{Trajectory: traj, Weights: testWeights(), Dt: dt, Hold: h}, sys
}

func midpoint(sys lti, dt float64, x1, x2 dynamo.State, u1, u2 dynamo.Control) dynamo.State {
	return x1.Add(x2).Scale(0.5).Add(sys.f(x1, u1).Sub(sys.f(x2, u2)).Scale(dt / 8))
}

func holdCost(sys lti, w Weights, dt float64) CostFunc {
	return func(tr Trajectory) float64 {
		J := 0.0
		for k := 0; k < len(tr.X)-1; k++ {
			xm := midpoint(sys, dt, tr.X[k], tr.X[k+1], tr.U[k], tr.U[k+1])
			um := dynamo.Control{0.5 * (tr.U[k][0] + tr.U[k+1][0])}
			J += dt / 6 * (stageCost(w, tr.X[k], tr.U[k]) + 4*stageCost(w, xm, um) + stageCost(w, tr.X[k+1], tr.U[k+1]))
		}
		e := deviation(tr.X[len(tr.X)-1], w.Target)
		return J + 0.5*mat.Inner(e, w.Qf, e)
	}
}
