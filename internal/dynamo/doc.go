// Package dynamo provides the vector and model primitives shared by the
// trajectory optimizer and its collaborators.
//
//   - [State]: vector representing system state
//   - [Control]: vector representing the control input
//   - [System]: interface for continuous dynamics (dX/dt = f(X, u, t))
//   - [Linearizable]: systems that expose analytic Jacobians
//   - [Integrator]: zero-order-hold numerical integrator
//   - [HoldIntegrator]: integrator with linearly interpolated control
//   - [Controller]: feedback controller interface
//
// # Example
//
//	dyn := physics.NewDoubleIntegrator()
//	integ := integrators.NewRK4()
//	x1 := integ.Step(dyn, x0, u0, 0, 0.1)
//
// # Thread Safety
//
// Integrators keep scratch buffers and are NOT thread-safe. Give each
// concurrent solve its own integrator instance.
package dynamo
