// Package solver drives the ddp core: it discretizes and linearizes a
// [dynamo.System] around the current trajectory, evaluates costs, keeps the
// augmented-Lagrangian state for control bounds and terminal goals, and
// decides when a solve has converged.
//
// # Usage
//
//	s, err := solver.New(opts, logger)
//	res, err := s.Solve(ctx, &solver.Problem{
//	    System:     physics.NewPendulum(),
//	    Integrator: integrators.NewRK4(),
//	    Weights:    w,
//	    Initial:    dynamo.State{0, 0},
//	    Knots:      101,
//	    Dt:         0.02,
//	})
//
// Independent problems may be solved concurrently with [Batch]; a single
// [Solver] is not safe for concurrent use.
package solver
