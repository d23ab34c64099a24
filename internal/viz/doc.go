// Package viz renders solver progress and trajectories in the terminal.
//
//   - [Progress]: live view of a running solve, fed from a solver observer
//   - [Replay]: animation of a solved trajectory on a Braille [Canvas]
//   - [CostChart], [TrajectoryChart]: asciigraph plots for plain output
//
// # Key Bindings
//
//	Space - Pause/Resume replay
//	R     - Restart replay
//	[ ]   - Step backward/forward while paused
//	T     - Cycle color themes
//	Q     - Quit (cancels a running solve)
package viz
