// Package control turns optimized trajectories into feedback controllers.
//
//   - [Tracking]: replays a nominal trajectory with its time-varying gains
//   - [LQR]: static state feedback around a target
//   - [None]: zero control
//
// Controllers implement [dynamo.Controller] and can be handed to the
// closed-loop simulator:
//
//	ctrl, _ := control.NewTracking(res.Trajectory, res.Gains, dt, res.Hold)
//	ctrl.After = control.FromGain(res.Gains.K[len(res.Gains.K)-1], target)
//	s := sim.New(sys, integrators.NewRK4(), ctrl)
package control
