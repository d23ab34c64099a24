package ddp

import (
	"gonum.org/v1/gonum/mat"
)

// Dense is the standard discrete-time backward recursion on the explicit
// cost-to-go Hessian.
type Dense struct {
	// MaxRestarts bounds the sweeps discarded for an indefinite
	// control-control block; DefaultMaxRestarts when not positive.
	MaxRestarts int
}

func NewDense(maxRestarts int) *Dense {
	return &Dense{MaxRestarts: maxRestarts}
}

// Sweep implements BackwardPass.
func (d *Dense) Sweep(p *Problem, reg *Regularizer) (*Policy, error) {
	if err := p.validate(false); err != nil {
		return nil, err
	}
	pol, err := retry(d.MaxRestarts, reg, func() (*Policy, int, bool) {
		return d.sweep(p, reg, p.constraints())
	})
	if err != nil {
		return nil, err
	}
	reg.Decrease()
	return pol, nil
}

// terminalValue returns S = Qf and s = Qf(xN - xf), augmented by the
// terminal penalty.
func terminalValue(p *Problem, con Constraints) (*mat.Dense, *mat.VecDense) {
	n, _, N := p.dims()
	S := mat.NewDense(n, n, nil)
	S.Copy(p.Weights.Qf)
	s := mat.NewVecDense(n, nil)
	s.MulVec(p.Weights.Qf, deviation(p.Trajectory.X[N-1], p.Weights.Target))
	con.terminal().addTo(expansion{x: s, xx: []*mat.Dense{S}})
	return S, s
}

func (d *Dense) sweep(p *Problem, reg *Regularizer, con Constraints) (*Policy, int, bool) {
	n, m, N := p.dims()
	w := p.Weights
	dt := p.Dt
	pol := &Policy{
		Gains: Gains{K: make([]*mat.Dense, N-1), D: make([]*mat.VecDense, N-1)},
		Value: Value{Hess: make([]*mat.SymDense, N), Grad: make([]*mat.VecDense, N)},
	}

	Sd, s := terminalValue(p, con)
	S := symmetrize(Sd)
	pol.Value.Hess[N-1], pol.Value.Grad[N-1] = S, s

	rho := reg.Value()
	for k := N - 2; k >= 0; k-- {
		A, B := p.Linearization.A[k], p.Linearization.B[k]

		// stage expansion, scaled by the timestep
		var lx, lu mat.VecDense
		lx.MulVec(w.Q, deviation(p.Trajectory.X[k], w.Target))
		lx.ScaleVec(dt, &lx)
		lu.MulVec(w.R, vec(p.Trajectory.U[k]))
		lu.ScaleVec(dt, &lu)

		Qx := mat.NewVecDense(n, nil)
		Qx.MulVec(A.T(), s)
		Qx.AddVec(Qx, &lx)
		Qu := mat.NewVecDense(m, nil)
		Qu.MulVec(B.T(), s)
		Qu.AddVec(Qu, &lu)

		var SA, SB mat.Dense
		SA.Mul(S, A)
		SB.Mul(S, B)
		Qxx := mat.NewDense(n, n, nil)
		Qxx.Mul(A.T(), &SA)
		addScaled(Qxx, dt, w.Q)
		Quu := mat.NewDense(m, m, nil)
		Quu.Mul(B.T(), &SB)
		addScaled(Quu, dt, w.R)
		Qux := mat.NewDense(m, n, nil)
		Qux.Mul(B.T(), &SA)

		QuuR := mat.NewDense(m, m, nil)
		QuxR := mat.NewDense(m, n, nil)
		switch reg.Mode() {
		case StateMode:
			// fuᵀ(S + ρI)fu and fuᵀ(S + ρI)fx
			var btb, bta mat.Dense
			btb.Mul(B.T(), B)
			bta.Mul(B.T(), A)
			QuuR.Scale(rho, &btb)
			QuuR.Add(QuuR, Quu)
			QuxR.Scale(rho, &bta)
			QuxR.Add(QuxR, Qux)
		case ControlMode:
			QuuR.Copy(Quu)
			addDiag(QuuR, rho)
			QuxR.Copy(Qux)
		}

		con.stage(k).addTo(expansion{
			x:  Qx,
			u:  Qu,
			xx: []*mat.Dense{Qxx},
			uu: []*mat.Dense{Quu, QuuR},
			ux: []*mat.Dense{Qux, QuxR},
		})

		ch, ok := factorize(QuuR)
		if !ok {
			return nil, k, false
		}
		K := mat.NewDense(m, n, nil)
		if err := ch.SolveTo(K, QuxR); err != nil {
			return nil, k, false
		}
		K.Scale(-1, K)
		dk := mat.NewVecDense(m, nil)
		if err := ch.SolveVecTo(dk, Qu); err != nil {
			return nil, k, false
		}
		dk.ScaleVec(-1, dk)

		s, S = valueUpdate(Qx, Qu, Qxx, Quu, Qux, K, dk)
		pol.Gains.K[k], pol.Gains.D[k] = K, dk
		pol.Value.Hess[k], pol.Value.Grad[k] = S, s
		pol.Expected.add(dk, Qu, Quu)
	}
	return pol, 0, true
}

// valueUpdate applies the closed-form DDP value equations with the
// unregularized blocks:
//
//	s = Qx + KᵀQuu·d + KᵀQu + Quxᵀd
//	S = Qxx + KᵀQuuK + KᵀQux + QuxᵀK
func valueUpdate(Qx, Qu *mat.VecDense, Qxx, Quu, Qux, K *mat.Dense, d *mat.VecDense) (*mat.VecDense, *mat.SymDense) {
	n, _ := Qxx.Dims()
	m, _ := Quu.Dims()

	var Quud mat.VecDense
	Quud.MulVec(Quu, d)
	Quud.AddVec(&Quud, Qu)
	s := mat.NewVecDense(n, nil)
	s.MulVec(K.T(), &Quud)
	var t mat.VecDense
	t.MulVec(Qux.T(), d)
	s.AddVec(s, &t)
	s.AddVec(s, Qx)

	QuuK := mat.NewDense(m, n, nil)
	QuuK.Mul(Quu, K)
	QuuK.Add(QuuK, Qux)
	S := mat.NewDense(n, n, nil)
	S.Mul(K.T(), QuuK)
	var cross mat.Dense
	cross.Mul(Qux.T(), K)
	S.Add(S, &cross)
	S.Add(S, Qxx)
	return s, symmetrize(S)
}

// addScaled sets m = m + alpha·a.
func addScaled(m *mat.Dense, alpha float64, a mat.Matrix) {
	var t mat.Dense
	t.Scale(alpha, a)
	m.Add(m, &t)
}
