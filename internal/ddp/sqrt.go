package ddp

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// SquareRoot runs the backward recursion on upper-triangular factors U of
// the cost-to-go (S = UᵀU) so that the propagated curvature stays positive
// semi-definite by construction. Curvature from the stage cost, the
// propagated value and the constraint penalty is folded together by
// triangularizing stacked rows; the value update is a sequence of rank-one
// downdates.
//
// When a downdate stops being positive definite the factor is rebuilt
// from the dense matrix plus the current damping. If that also fails the
// sweep is discarded and restarted with more damping, like Dense.
type SquareRoot struct {
	MaxRestarts int
}

func NewSquareRoot(maxRestarts int) *SquareRoot {
	return &SquareRoot{MaxRestarts: maxRestarts}
}

// Sweep implements BackwardPass.
func (q *SquareRoot) Sweep(p *Problem, reg *Regularizer) (*Policy, error) {
	if err := p.validate(false); err != nil {
		return nil, err
	}
	pol, err := retry(q.MaxRestarts, reg, func() (*Policy, int, bool) {
		return q.sweep(p, reg, p.constraints())
	})
	if err != nil {
		return nil, err
	}
	// a sweep that needed a dense rebuild keeps its damping
	if pol.Fallbacks == 0 {
		reg.Decrease()
	}
	return pol, nil
}

func (q *SquareRoot) sweep(p *Problem, reg *Regularizer, con Constraints) (*Policy, int, bool) {
	n, m, N := p.dims()
	w := p.Weights
	dt := p.Dt
	pol := &Policy{
		Gains: Gains{K: make([]*mat.Dense, N-1), D: make([]*mat.VecDense, N-1)},
		Value: Value{Grad: make([]*mat.VecDense, N), Factor: make([]*mat.TriDense, N)},
	}

	term := con.terminal()
	U := combine(append([]mat.Matrix{psdRoot(w.Qf)}, term.stateRows()...)...)
	s := mat.NewVecDense(n, nil)
	s.MulVec(w.Qf, deviation(p.Trajectory.X[N-1], w.Target))
	term.addGrad(s, nil)
	pol.Value.Factor[N-1], pol.Value.Grad[N-1] = U, s

	var lxx, luu mat.SymDense
	lxx.ScaleSym(dt, w.Q)
	luu.ScaleSym(dt, w.R)
	rootQ, rootR := psdRoot(&lxx), psdRoot(&luu)

	rho := reg.Value()
	for k := N - 2; k >= 0; k-- {
		A, B := p.Linearization.A[k], p.Linearization.B[k]
		pen := con.stage(k)

		Qx := mat.NewVecDense(n, nil)
		Qx.MulVec(&lxx, deviation(p.Trajectory.X[k], w.Target))
		var t mat.VecDense
		t.MulVec(A.T(), s)
		Qx.AddVec(Qx, &t)
		Qu := mat.NewVecDense(m, nil)
		Qu.MulVec(&luu, vec(p.Trajectory.U[k]))
		t.Reset()
		t.MulVec(B.T(), s)
		Qu.AddVec(Qu, &t)
		pen.addGrad(Qx, Qu)

		var UA, UB mat.Dense
		UA.Mul(U, A)
		UB.Mul(U, B)
		Wxx := combine(append([]mat.Matrix{&UA, rootQ}, pen.stateRows()...)...)
		Wuu := combine(append([]mat.Matrix{&UB, rootR}, pen.controlRows()...)...)
		Qux := mat.NewDense(m, n, nil)
		Qux.Mul(UB.T(), &UA)
		if c := pen.cross(); c != nil {
			Qux.Add(Qux, c)
		}

		var Wr *mat.TriDense
		QuxR := mat.NewDense(m, n, nil)
		QuxR.Copy(Qux)
		switch reg.Mode() {
		case StateMode:
			var rb mat.Dense
			rb.Scale(math.Sqrt(rho), B)
			Wr = combine(Wuu, &rb)
			var bta mat.Dense
			bta.Mul(B.T(), A)
			addScaled(QuxR, rho, &bta)
		case ControlMode:
			Wr = combine(Wuu, scaledIdentity(m, math.Sqrt(rho)))
		}
		if !nonsingular(Wr) {
			return nil, k, false
		}

		chR := cholFromU(Wr)
		K := mat.NewDense(m, n, nil)
		if err := chR.SolveTo(K, QuxR); err != nil {
			return nil, k, false
		}
		K.Scale(-1, K)
		d := mat.NewVecDense(m, nil)
		if err := chR.SolveVecTo(d, Qu); err != nil {
			return nil, k, false
		}
		d.ScaleVec(-1, d)

		Quu := mat.NewSymDense(m, nil)
		Quu.SymOuterK(1, Wuu.T())

		next, ok := downdate(Wxx, Wuu, Qux, K)
		if !ok {
			// rebuild S + ρI densely at the current damping
			Qxx := mat.NewSymDense(n, nil)
			Qxx.SymOuterK(1, Wxx.T())
			var Qxxd mat.Dense
			Qxxd.CloneFrom(Qxx)
			var Quud mat.Dense
			Quud.CloneFrom(Quu)
			_, S := valueUpdate(Qx, Qu, &Qxxd, &Quud, Qux, K, d)
			var Sr mat.Dense
			Sr.CloneFrom(S)
			addDiag(&Sr, rho)
			ch, ok := factorize(&Sr)
			if !ok {
				return nil, k, false
			}
			next = mat.NewTriDense(n, mat.Upper, nil)
			ch.UTo(next)
			pol.Fallbacks++
		}
		U = next

		// s = Qx + KᵀQuu·d + KᵀQu + Quxᵀd
		var Quud mat.VecDense
		Quud.MulVec(Quu, d)
		Quud.AddVec(&Quud, Qu)
		s = mat.NewVecDense(n, nil)
		s.MulVec(K.T(), &Quud)
		t.Reset()
		t.MulVec(Qux.T(), d)
		s.AddVec(s, &t)
		s.AddVec(s, Qx)

		pol.Gains.K[k], pol.Gains.D[k] = K, d
		pol.Value.Factor[k], pol.Value.Grad[k] = U, s
		pol.Expected.add(d, Qu, Quu)
	}
	return pol, 0, true
}

// downdate computes the factor of Qxx + KᵀQuuK + KᵀQux + QuxᵀK as
//
//	(Qxx - QuxᵀQuu⁻¹Qux) + (WuuK + Wuu⁻ᵀQux)ᵀ(WuuK + Wuu⁻ᵀQux)
//
// which needs one factor-subtract and one factor-combine. The second term
// vanishes when K was computed without damping.
func downdate(Wxx, Wuu *mat.TriDense, Qux, K *mat.Dense) (*mat.TriDense, bool) {
	if !nonsingular(Wuu) {
		return nil, false
	}
	G := solveUT(Wuu, Qux)
	schur, ok := subtract(Wxx, G)
	if !ok {
		return nil, false
	}
	var E mat.Dense
	E.Mul(Wuu, K)
	E.Add(&E, G)
	return combine(schur, &E), true
}
