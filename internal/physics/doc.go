// Package physics provides the plant models trajectories are optimized for.
//
// Each model implements [dynamo.System]:
//
//   - [DoubleIntegrator]: point mass pushed by a force
//   - [Pendulum]: damped pendulum driven by a torque
//   - [CartPole]: pole balanced on a cart driven by a force
//
// Models that know their continuous Jacobians also implement
// [dynamo.Linearizable]; the rest are differentiated numerically by the
// solver. Every model implements [dynamo.Configurable] so presets and
// config files can override physical parameters:
//
//	dyn, _ := physics.New("pendulum")
//	_ = dyn.(dynamo.Configurable).SetParam("damping", 0.05)
package physics
