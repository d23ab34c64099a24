package ddp

import (
	"fmt"
	"math"

	"github.com/san-kum/trajopt/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Constraints selects between the plain and the augmented-Lagrangian form
// of every expansion in a sweep. It is either Unconstrained or *ActiveSet.
type Constraints interface {
	validate(knots, stages int) error
	stage(k int) *penalty
	terminal() *penalty
}

// Unconstrained leaves every expansion untouched.
type Unconstrained struct{}

func (Unconstrained) validate(int, int) error { return nil }
func (Unconstrained) stage(int) *penalty      { return nil }
func (Unconstrained) terminal() *penalty      { return nil }

// ConstraintTerm is the augmented-Lagrangian data of one knot: the
// constraint value c, its Jacobians, the diagonal active penalty Iμ and
// the multiplier λ. Ju is nil for the terminal term.
type ConstraintTerm struct {
	Value      *mat.VecDense
	Jx, Ju     *mat.Dense
	Penalty    *mat.DiagDense
	Multiplier *mat.VecDense
}

// ActiveSet carries either no stage terms or one per control knot (N-1
// for zero-order hold, N for first-order hold), and an optional terminal
// term.
type ActiveSet struct {
	Stages   []ConstraintTerm
	Terminal *ConstraintTerm
}

func (a *ActiveSet) validate(knots, stages int) error {
	if len(a.Stages) != 0 && len(a.Stages) != stages {
		return fmt.Errorf("%w: %d constraint stages for %d controls", dynamo.ErrDimensionMismatch, len(a.Stages), stages)
	}
	for k := range a.Stages {
		if err := a.Stages[k].validate(true); err != nil {
			return fmt.Errorf("stage %d: %w", k, err)
		}
	}
	if a.Terminal != nil {
		if err := a.Terminal.validate(false); err != nil {
			return fmt.Errorf("terminal: %w", err)
		}
	}
	return nil
}

func (c *ConstraintTerm) validate(stage bool) error {
	if c.Value == nil || c.Jx == nil || c.Penalty == nil || c.Multiplier == nil {
		return fmt.Errorf("%w: incomplete constraint term", ErrInvalidConfig)
	}
	if err := checkDims(c.Jx, c.Value, "Cx", "c", rows2rows); err != nil {
		return err
	}
	if err := checkDims(c.Penalty, c.Value, "Iμ", "c", rows2rows); err != nil {
		return err
	}
	if err := checkDims(c.Multiplier, c.Value, "λ", "c", rows2rows); err != nil {
		return err
	}
	if stage {
		if c.Ju == nil {
			return fmt.Errorf("%w: stage constraint without control Jacobian", ErrInvalidConfig)
		}
		return checkDims(c.Ju, c.Value, "Cu", "c", rows2rows)
	}
	return nil
}

func (a *ActiveSet) stage(k int) *penalty {
	if len(a.Stages) == 0 {
		return nil
	}
	return newPenalty(&a.Stages[k])
}

func (a *ActiveSet) terminal() *penalty {
	if a.Terminal == nil {
		return nil
	}
	return newPenalty(a.Terminal)
}

// penalty is the contribution of one constraint term to an expansion:
// gradients Jᵀ(Iμ·c + λ) and the rows √Iμ·J whose Gram matrices are the
// curvature terms JᵀIμJ.
type penalty struct {
	gx, gu *mat.VecDense
	rx, ru *mat.Dense
}

func newPenalty(c *ConstraintTerm) *penalty {
	p := c.Value.Len()
	w := mat.NewVecDense(p, nil)
	sq := mat.NewDiagDense(p, nil)
	for i := 0; i < p; i++ {
		mu := c.Penalty.At(i, i)
		w.SetVec(i, mu*c.Value.AtVec(i)+c.Multiplier.AtVec(i))
		sq.SetDiag(i, math.Sqrt(mu))
	}

	pen := &penalty{}
	_, n := c.Jx.Dims()
	pen.gx = mat.NewVecDense(n, nil)
	pen.gx.MulVec(c.Jx.T(), w)
	pen.rx = mat.NewDense(p, n, nil)
	pen.rx.Mul(sq, c.Jx)
	if c.Ju != nil {
		_, m := c.Ju.Dims()
		pen.gu = mat.NewVecDense(m, nil)
		pen.gu.MulVec(c.Ju.T(), w)
		pen.ru = mat.NewDense(p, m, nil)
		pen.ru.Mul(sq, c.Ju)
	}
	return pen
}

// expansion lists every copy of an expansion that receives a penalty:
// the regularized and unregularized control blocks both get the same
// curvature.
type expansion struct {
	x, u *mat.VecDense
	xx   []*mat.Dense
	uu   []*mat.Dense
	ux   []*mat.Dense
}

func (p *penalty) addTo(e expansion) {
	if p == nil {
		return
	}
	if e.x != nil {
		e.x.AddVec(e.x, p.gx)
	}
	if e.u != nil && p.gu != nil {
		e.u.AddVec(e.u, p.gu)
	}
	if len(e.xx) > 0 {
		var h mat.Dense
		h.Mul(p.rx.T(), p.rx)
		for _, m := range e.xx {
			m.Add(m, &h)
		}
	}
	if p.ru == nil {
		return
	}
	if len(e.uu) > 0 {
		var h mat.Dense
		h.Mul(p.ru.T(), p.ru)
		for _, m := range e.uu {
			m.Add(m, &h)
		}
	}
	if len(e.ux) > 0 {
		var h mat.Dense
		h.Mul(p.ru.T(), p.rx)
		for _, m := range e.ux {
			m.Add(m, &h)
		}
	}
}

// stateRows and controlRows return the √Iμ·J rows folded into the
// square-root factors; both are empty when there is no penalty.
func (p *penalty) stateRows() []mat.Matrix {
	if p == nil {
		return nil
	}
	return []mat.Matrix{p.rx}
}

func (p *penalty) controlRows() []mat.Matrix {
	if p == nil || p.ru == nil {
		return nil
	}
	return []mat.Matrix{p.ru}
}

// cross returns (√Iμ·Ju)ᵀ(√Iμ·Jx), or nil.
func (p *penalty) cross() *mat.Dense {
	if p == nil || p.ru == nil {
		return nil
	}
	var h mat.Dense
	h.Mul(p.ru.T(), p.rx)
	return &h
}

func (p *penalty) addGrad(x, u *mat.VecDense) {
	if p == nil {
		return
	}
	x.AddVec(x, p.gx)
	if u != nil && p.gu != nil {
		u.AddVec(u, p.gu)
	}
}
