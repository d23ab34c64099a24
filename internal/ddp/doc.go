// Package ddp implements the local optimization step of an iterative LQR /
// differential dynamic programming trajectory solver.
//
// Given a nominal trajectory and its linearization, a [BackwardPass]
// computes a time-varying feedback law and a model of the expected cost
// change, and [LineSearch] uses that law to find an improved trajectory:
//
//   - [Dense]: discrete Riccati-like recursion on the cost-to-go Hessian
//   - [SquareRoot]: the same recursion on upper-triangular Cholesky factors
//   - [FirstOrderHold]: piecewise-linear controls, cost-to-go over [x; u]
//   - [Regularizer]: damping shared by the backward and forward passes
//
// # Usage
//
//	reg, _ := ddp.NewRegularizer(ddp.RegularizerConfig{Min: 1e-8, Max: 1e8, Factor: 1.6})
//	pol, err := ddp.NewDense(0).Sweep(problem, reg)
//	step, err := ls.Run(traj, pol.Expected, cost, ddp.ZeroOrderRollout(traj, pol.Gains, f), costFn, reg)
//
// Ill-conditioned sub-problems are handled inside the passes by raising the
// damping and restarting the sweep; callers only see an error when a
// configured limit is exceeded.
//
// Nothing in this package is safe for concurrent use. Independent solves
// must each own their [Regularizer].
package ddp
