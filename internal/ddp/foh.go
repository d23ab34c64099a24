package ddp

import (
	"gonum.org/v1/gonum/mat"
)

// FirstOrderHold is the backward pass for controls that vary linearly
// between samples. The running cost of each interval is integrated with
// Simpson's rule over the endpoints and the Hermite-Simpson midpoint
//
//	xm = ½(x + y) + dt/8·(f(x, u) - f(y, v)),  um = ½(u + v)
//
// and the cost-to-go of knot k is a block quadratic over [x_k; u_k]. The
// gains act on the held control v = u_{k+1}:
//
//	δv = K·δx + B·δu + d
//
// Gains, feedforwards and value blocks are indexed by the knot of the
// control they produce, so K[0], B[0] = 0 and D[0] come from the final
// elimination of the first control sample.
type FirstOrderHold struct {
	MaxRestarts int
}

func NewFirstOrderHold(maxRestarts int) *FirstOrderHold {
	return &FirstOrderHold{MaxRestarts: maxRestarts}
}

// Sweep implements BackwardPass.
func (f *FirstOrderHold) Sweep(p *Problem, reg *Regularizer) (*Policy, error) {
	if err := p.validate(true); err != nil {
		return nil, err
	}
	pol, err := retry(f.MaxRestarts, reg, func() (*Policy, int, bool) {
		return f.sweep(p, reg, p.constraints())
	})
	if err != nil {
		return nil, err
	}
	reg.Decrease()
	return pol, nil
}

// intervalCost is the second-order expansion of the Simpson-integrated
// running cost over one interval in the deviations of x, u (start) and
// y, v (end). Cross blocks are stored with the later variable first.
type intervalCost struct {
	Lx, Lu, Ly, Lv               *mat.VecDense
	Lxx, Luu, Lyy, Lvv           *mat.Dense
	Lux, Lyx, Lvx, Lyu, Lvu, Lvy *mat.Dense
}

func (f *FirstOrderHold) expand(p *Problem, k int) *intervalCost {
	w := p.Weights
	h := p.Hold
	X, U := p.Trajectory.X, p.Trajectory.U
	dt := p.Dt
	n := len(X[0])
	m := len(U[0])
	ws, wm := dt/6, 4*dt/6

	// midpoint sensitivities
	half := scaledIdentity(n, 0.5)
	Mx1 := sum(half, scale(dt/8, h.Ac[k]))
	Mu1 := scale(dt/8, h.Bc[k])
	Mx2 := sum(half, scale(-dt/8, h.Ac[k+1]))
	Mu2 := scale(-dt/8, h.Bc[k+1])

	um := mat.NewVecDense(m, nil)
	um.AddVec(vec(U[k]), vec(U[k+1]))
	um.ScaleVec(0.5, um)
	var em, rum mat.VecDense
	em.MulVec(w.Q, deviation(h.Mid[k], w.Target))
	rum.MulVec(w.R, um)

	grad := func(x []float64, weight mat.Symmetric, M mat.Matrix, isControl bool) *mat.VecDense {
		g := mat.NewVecDense(len(x), nil)
		if isControl {
			g.MulVec(weight, vec(x))
		} else {
			g.MulVec(weight, deviation(x, w.Target))
		}
		g.ScaleVec(ws, g)
		var t mat.VecDense
		t.MulVec(M.T(), &em)
		if isControl {
			t.AddScaledVec(&t, 0.5, &rum)
		}
		g.AddScaledVec(g, wm, &t)
		return g
	}

	c := &intervalCost{
		Lx: grad(X[k], w.Q, Mx1, false),
		Lu: grad(U[k], w.R, Mu1, true),
		Ly: grad(X[k+1], w.Q, Mx2, false),
		Lv: grad(U[k+1], w.R, Mu2, true),
	}

	quarterR := scale(0.25, w.R)
	c.Lxx = sum(scale(ws, w.Q), scale(wm, atbc(Mx1, w.Q, Mx1)))
	c.Luu = sum(scale(ws, w.R), scale(wm, sum(atbc(Mu1, w.Q, Mu1), quarterR)))
	c.Lyy = sum(scale(ws, w.Q), scale(wm, atbc(Mx2, w.Q, Mx2)))
	c.Lvv = sum(scale(ws, w.R), scale(wm, sum(atbc(Mu2, w.Q, Mu2), quarterR)))
	c.Lux = scale(wm, atbc(Mu1, w.Q, Mx1))
	c.Lyx = scale(wm, atbc(Mx2, w.Q, Mx1))
	c.Lvx = scale(wm, atbc(Mu2, w.Q, Mx1))
	c.Lyu = scale(wm, atbc(Mx2, w.Q, Mu1))
	c.Lvu = scale(wm, sum(atbc(Mu2, w.Q, Mu1), quarterR))
	c.Lvy = scale(wm, atbc(Mu2, w.Q, Mx2))
	return c
}

func (f *FirstOrderHold) sweep(p *Problem, reg *Regularizer, con Constraints) (*Policy, int, bool) {
	n, m, N := p.dims()
	pol := &Policy{
		Gains: Gains{K: make([]*mat.Dense, N), D: make([]*mat.VecDense, N), B: make([]*mat.Dense, N)},
		Value: Value{Hess: make([]*mat.SymDense, N), Grad: make([]*mat.VecDense, N)},
	}

	Sxx, sx := terminalValue(p, con)
	S := block(Sxx, mat.NewDense(m, n, nil), mat.NewDense(m, m, nil))
	s := stackVec(sx, mat.NewVecDense(m, nil))
	pol.Value.Hess[N-1], pol.Value.Grad[N-1] = S, s

	rho := reg.Value()
	for k := N - 2; k >= 0; k-- {
		c := f.expand(p, k)

		// fold in the cost-to-go of knot k+1 over [y; v]
		c.Ly.AddVec(c.Ly, s.SliceVec(0, n))
		c.Lv.AddVec(c.Lv, s.SliceVec(n, n+m))
		c.Lyy.Add(c.Lyy, S.SliceSym(0, n))
		c.Lvv.Add(c.Lvv, S.SliceSym(n, n+m))
		c.Lvy.Add(c.Lvy, mat.DenseCopyOf(S).Slice(n, n+m, 0, n))
		con.stage(k+1).addTo(expansion{
			x:  c.Ly,
			u:  c.Lv,
			xx: []*mat.Dense{c.Lyy},
			uu: []*mat.Dense{c.Lvv},
			ux: []*mat.Dense{c.Lvy},
		})

		// eliminate y = Ad·x + Bd·u + Cd·v
		Ad, Bd, Cd := p.Hold.Ad[k], p.Hold.Bd[k], p.Hold.Cd[k]
		Qx := mat.NewVecDense(n, nil)
		Qx.MulVec(Ad.T(), c.Ly)
		Qx.AddVec(Qx, c.Lx)
		Qu := mat.NewVecDense(m, nil)
		Qu.MulVec(Bd.T(), c.Ly)
		Qu.AddVec(Qu, c.Lu)
		Qv := mat.NewVecDense(m, nil)
		Qv.MulVec(Cd.T(), c.Ly)
		Qv.AddVec(Qv, c.Lv)

		LvyCd := mul(c.Lvy, Cd)
		Qxx := sum(c.Lxx, atb(c.Lyx, Ad), atb(Ad, c.Lyx), atbc(Ad, c.Lyy, Ad))
		Quu := sum(c.Luu, atb(c.Lyu, Bd), atb(Bd, c.Lyu), atbc(Bd, c.Lyy, Bd))
		Qvv := sum(c.Lvv, LvyCd, LvyCd.T(), atbc(Cd, c.Lyy, Cd))
		Qux := sum(c.Lux, atb(Bd, c.Lyx), atb(c.Lyu, Ad), atbc(Bd, c.Lyy, Ad))
		Qvx := sum(c.Lvx, atb(Cd, c.Lyx), mul(c.Lvy, Ad), atbc(Cd, c.Lyy, Ad))
		Qvu := sum(c.Lvu, atb(Cd, c.Lyu), mul(c.Lvy, Bd), atbc(Cd, c.Lyy, Bd))

		var QvvR, QvxR, QvuR *mat.Dense
		switch reg.Mode() {
		case StateMode:
			QvvR = sum(Qvv, scale(rho, atb(Cd, Cd)))
			QvxR = sum(Qvx, scale(rho, atb(Cd, Ad)))
			QvuR = sum(Qvu, scale(rho, atb(Cd, Bd)))
		case ControlMode:
			QvvR = sum(Qvv)
			addDiag(QvvR, rho)
			QvxR, QvuR = Qvx, Qvu
		}

		ch, ok := factorize(QvvR)
		if !ok {
			return nil, k + 1, false
		}
		K := mat.NewDense(m, n, nil)
		Bg := mat.NewDense(m, m, nil)
		d := mat.NewVecDense(m, nil)
		if ch.SolveTo(K, QvxR) != nil || ch.SolveTo(Bg, QvuR) != nil || ch.SolveVecTo(d, Qv) != nil {
			return nil, k + 1, false
		}
		K.Scale(-1, K)
		Bg.Scale(-1, Bg)
		d.ScaleVec(-1, d)
		pol.Gains.K[k+1], pol.Gains.B[k+1], pol.Gains.D[k+1] = K, Bg, d
		pol.Expected.add(d, Qv, Qvv)

		// cost-to-go over [x; u] with the unregularized blocks
		var Qvvd mat.VecDense
		Qvvd.MulVec(Qvv, d)
		Qvvd.AddVec(&Qvvd, Qv)
		sx := mat.NewVecDense(n, nil)
		sx.MulVec(K.T(), &Qvvd)
		var t mat.VecDense
		t.MulVec(Qvx.T(), d)
		sx.AddVec(sx, &t)
		sx.AddVec(sx, Qx)
		su := mat.NewVecDense(m, nil)
		su.MulVec(Bg.T(), &Qvvd)
		t.Reset()
		t.MulVec(Qvu.T(), d)
		su.AddVec(su, &t)
		su.AddVec(su, Qu)

		QvvK := mul(Qvv, K)
		QvvB := mul(Qvv, Bg)
		Sxx := sum(Qxx, atb(Qvx, K), atb(K, Qvx), atb(K, QvvK))
		Suu := sum(Quu, atb(Qvu, Bg), atb(Bg, Qvu), atb(Bg, QvvB))
		Sux := sum(Qux, atb(Bg, Qvx), atb(Qvu, K), atb(Bg, QvvK))

		if k == 0 {
			con.stage(0).addTo(expansion{
				x:  sx,
				u:  su,
				xx: []*mat.Dense{Sxx},
				uu: []*mat.Dense{Suu},
				ux: []*mat.Dense{Sux},
			})
		}
		S, s = block(Sxx, Sux, Suu), stackVec(sx, su)
		pol.Value.Hess[k], pol.Value.Grad[k] = S, s

		if k == 0 {
			if !f.eliminateFirst(pol, reg, sx, su, Sxx, Suu, Sux) {
				return nil, 0, false
			}
		}
	}
	return pol, 0, true
}

// eliminateFirst optimizes the first control sample, which has no earlier
// control to feed back on, so B[0] is zero.
func (f *FirstOrderHold) eliminateFirst(pol *Policy, reg *Regularizer, sx, su *mat.VecDense, Sxx, Suu, Sux *mat.Dense) bool {
	m, n := Sux.Dims()
	SuuR := sum(Suu)
	addDiag(SuuR, reg.Value())
	ch, ok := factorize(SuuR)
	if !ok {
		return false
	}
	K := mat.NewDense(m, n, nil)
	d := mat.NewVecDense(m, nil)
	if ch.SolveTo(K, Sux) != nil || ch.SolveVecTo(d, su) != nil {
		return false
	}
	K.Scale(-1, K)
	d.ScaleVec(-1, d)
	pol.Gains.K[0], pol.Gains.B[0], pol.Gains.D[0] = K, mat.NewDense(m, m, nil), d
	pol.Expected.add(d, su, Suu)

	pol.Value.StateGrad, pol.Value.StateHess = valueUpdate(sx, su, Sxx, Suu, Sux, K, d)
	return true
}
