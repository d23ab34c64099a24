package ddp

import (
	"github.com/san-kum/trajopt/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Rollout simulates the closed-loop trajectory for step size alpha and
// reports false when any state or control is not finite.
type Rollout func(alpha float64) (Trajectory, bool)

// CostFunc evaluates a candidate trajectory, constraint penalties included.
type CostFunc func(Trajectory) float64

// Discrete advances x over interval k under a held control.
type Discrete func(k int, x dynamo.State, u dynamo.Control) dynamo.State

// HoldDiscrete advances x over interval k under a control that moves
// linearly from u1 to u2.
type HoldDiscrete func(k int, x dynamo.State, u1, u2 dynamo.Control) dynamo.State

// ZeroOrderRollout returns the rollout of u_k = ū_k + K_k(x_k - x̄_k) + α·d_k.
// Controls past the last interval are copied from the nominal.
func ZeroOrderRollout(nominal Trajectory, g Gains, step Discrete) Rollout {
	return func(alpha float64) (Trajectory, bool) {
		N := len(nominal.X)
		X := make([]dynamo.State, N)
		U := make([]dynamo.Control, len(nominal.U))
		X[0] = nominal.X[0].Clone()
		for k := 0; k < N-1; k++ {
			du := mat.NewVecDense(len(nominal.U[k]), nil)
			du.MulVec(g.K[k], deviation(X[k], nominal.X[k]))
			du.AddScaledVec(du, alpha, g.D[k])
			U[k] = perturb(nominal.U[k], du)
			X[k+1] = step(k, X[k], U[k])
			if !U[k].IsValid() || !X[k+1].IsValid() {
				return Trajectory{}, false
			}
		}
		for k := N - 1; k < len(U); k++ {
			U[k] = nominal.U[k].Clone()
		}
		return Trajectory{X: X, U: U}, true
	}
}

// HoldRollout returns the first-order-hold rollout. The first sample is
// u_0 = ū_0 + K_0·δx_0 + α·d_0; every later sample feeds back on the state
// and control deviations of the previous knot:
//
//	δu_k = K_k·δx_{k-1} + B_k·δu_{k-1} + α·d_k
func HoldRollout(nominal Trajectory, g Gains, step HoldDiscrete) Rollout {
	return func(alpha float64) (Trajectory, bool) {
		N := len(nominal.X)
		m := len(nominal.U[0])
		X := make([]dynamo.State, N)
		U := make([]dynamo.Control, N)
		X[0] = nominal.X[0].Clone()

		du := mat.NewVecDense(m, nil)
		du.MulVec(g.K[0], deviation(X[0], nominal.X[0]))
		du.AddScaledVec(du, alpha, g.D[0])
		U[0] = perturb(nominal.U[0], du)
		if !U[0].IsValid() {
			return Trajectory{}, false
		}

		for k := 1; k < N; k++ {
			next := mat.NewVecDense(m, nil)
			next.MulVec(g.K[k], deviation(X[k-1], nominal.X[k-1]))
			var fb mat.VecDense
			fb.MulVec(g.B[k], du)
			next.AddVec(next, &fb)
			next.AddScaledVec(next, alpha, g.D[k])
			U[k] = perturb(nominal.U[k], next)
			X[k] = step(k-1, X[k-1], U[k-1], U[k])
			if !U[k].IsValid() || !X[k].IsValid() {
				return Trajectory{}, false
			}
			du = next
		}
		return Trajectory{X: X, U: U}, true
	}
}

func perturb(u dynamo.Control, du mat.Vector) dynamo.Control {
	out := make(dynamo.Control, len(u))
	for i := range u {
		out[i] = u[i] + du.AtVec(i)
	}
	return out
}
