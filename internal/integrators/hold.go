package integrators

import "github.com/san-kum/trajopt/internal/dynamo"

// HoldRK3 is the third-order Runge-Kutta step (Kutta's rule) for a control
// that moves linearly from u1 to u2 over the interval:
//
//	k1 = f(x, u1)
//	k2 = f(x + dt/2·k1, (u1+u2)/2)
//	k3 = f(x - dt·k1 + 2dt·k2, u2)
//	x⁺ = x + dt/6·(k1 + 4k2 + k3)
//
// Its quadrature weights match the Simpson rule used for the running cost.
type HoldRK3 struct{}

func NewHoldRK3() *HoldRK3 {
	return &HoldRK3{}
}

func (h *HoldRK3) StepHold(dyn dynamo.System, x dynamo.State, u1, u2 dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	k1 := dyn.Derive(x, u1, t)

	tmp := make(dynamo.State, n)
	for i := range tmp {
		tmp[i] = x[i] + dt/2*k1[i]
	}
	k2 := dyn.Derive(tmp, Lerp(u1, u2, 0.5), t+dt/2)

	for i := range tmp {
		tmp[i] = x[i] - dt*k1[i] + 2*dt*k2[i]
	}
	k3 := dyn.Derive(tmp, u2, t+dt)

	result := make(dynamo.State, n)
	for i := range result {
		result[i] = x[i] + dt/6*(k1[i]+4*k2[i]+k3[i])
	}
	return result
}

// Step holds u constant over the interval.
func (h *HoldRK3) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	return h.StepHold(dyn, x, u, u, t, dt)
}

// HermiteMidpoint returns the state at the middle of an interval from the
// cubic Hermite interpolant through both endpoints:
//
//	xm = ½(x1 + x2) + dt/8·(f(x1, u1) - f(x2, u2))
func HermiteMidpoint(dyn dynamo.System, x1, x2 dynamo.State, u1, u2 dynamo.Control, t, dt float64) dynamo.State {
	f1 := dyn.Derive(x1, u1, t)
	f2 := dyn.Derive(x2, u2, t+dt)
	xm := make(dynamo.State, len(x1))
	for i := range xm {
		xm[i] = 0.5*(x1[i]+x2[i]) + dt/8*(f1[i]-f2[i])
	}
	return xm
}

// Lerp returns (1-s)·u1 + s·u2.
func Lerp(u1, u2 dynamo.Control, s float64) dynamo.Control {
	u := make(dynamo.Control, len(u1))
	for i := range u {
		u[i] = (1-s)*u1[i] + s*u2[i]
	}
	return u
}
