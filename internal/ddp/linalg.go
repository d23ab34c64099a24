package ddp

import (
	"math"

	"github.com/san-kum/trajopt/internal/dynamo"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"
)

// vec wraps a state or control without copying; callers must not write
// through it.
func vec(x []float64) *mat.VecDense {
	return mat.NewVecDense(len(x), x)
}

// deviation returns x - ref as a new vector.
func deviation(x, ref dynamo.State) *mat.VecDense {
	d := mat.NewVecDense(len(x), nil)
	d.SubVec(vec(x), vec(ref))
	return d
}

// scaledIdentity returns v·I of size n.
func scaledIdentity(n int, v float64) *mat.DiagDense {
	d := make([]float64, n)
	for i := range d {
		d[i] = v
	}
	return mat.NewDiagDense(n, d)
}

// addDiag adds rho to the diagonal of the square matrix m.
func addDiag(m *mat.Dense, rho float64) {
	n, _ := m.Dims()
	for i := 0; i < n; i++ {
		m.Set(i, i, m.At(i, i)+rho)
	}
}

// symmetrize returns ½(m + mᵀ), countering floating-point drift.
func symmetrize(m mat.Matrix) *mat.SymDense {
	n, _ := m.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, 0.5*(m.At(i, j)+m.At(j, i)))
		}
	}
	return s
}

// factorize returns the Cholesky factorization of ½(m + mᵀ) and whether
// it is positive definite.
func factorize(m mat.Matrix) (*mat.Cholesky, bool) {
	var ch mat.Cholesky
	ok := ch.Factorize(symmetrize(m))
	return &ch, ok
}

// psdRoot returns W with WᵀW = a for a symmetric positive semi-definite a.
// Unlike a Cholesky factor it exists for singular weights.
func psdRoot(a mat.Symmetric) *mat.Dense {
	n := a.SymmetricDim()
	var es mat.EigenSym
	if !es.Factorize(a, true) {
		return mat.NewDense(n, n, nil)
	}
	vals := es.Values(nil)
	var v mat.Dense
	es.VectorsTo(&v)
	w := mat.NewDense(n, n, nil)
	for i, l := range vals {
		s := math.Sqrt(math.Max(l, 0))
		for j := 0; j < n; j++ {
			w.Set(i, j, s*v.At(j, i))
		}
	}
	return w
}

// combine stacks the given blocks row-wise and triangularizes the stack,
// returning the upper-triangular U with UᵀU = Σ BᵢᵀBᵢ. Diagonal entries
// are made non-negative.
func combine(blocks ...mat.Matrix) *mat.TriDense {
	_, c := blocks[0].Dims()
	rows := 0
	for _, b := range blocks {
		r, _ := b.Dims()
		rows += r
	}
	stack := mat.NewDense(max(rows, c), c, nil)
	at := 0
	for _, b := range blocks {
		r, _ := b.Dims()
		stack.Slice(at, at+r, 0, c).(*mat.Dense).Copy(b)
		at += r
	}

	var qr mat.QR
	qr.Factorize(stack)
	var r mat.Dense
	qr.RTo(&r)

	u := mat.NewTriDense(c, mat.Upper, nil)
	for i := 0; i < c; i++ {
		sign := 1.0
		if r.At(i, i) < 0 {
			sign = -1
		}
		for j := i; j < c; j++ {
			u.SetTri(i, j, sign*r.At(i, j))
		}
	}
	return u
}

// nonsingular reports whether every diagonal entry of u is finite and
// positive relative to the largest one.
func nonsingular(u *mat.TriDense) bool {
	n, _ := u.Dims()
	largest := 0.0
	for i := 0; i < n; i++ {
		d := u.At(i, i)
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return false
		}
		largest = math.Max(largest, math.Abs(d))
	}
	if largest == 0 {
		return false
	}
	for i := 0; i < n; i++ {
		if u.At(i, i) <= 1e-14*largest {
			return false
		}
	}
	return true
}

func cholFromU(u *mat.TriDense) *mat.Cholesky {
	var ch mat.Cholesky
	ch.SetFromU(u)
	return &ch
}

// subtract returns the upper-triangular factor of UᵀU - BᵀB by sequential
// rank-one downdates with the rows of B. It reports false as soon as an
// intermediate matrix stops being positive definite.
func subtract(u *mat.TriDense, b mat.Matrix) (*mat.TriDense, bool) {
	if !nonsingular(u) {
		return nil, false
	}
	ch := cholFromU(u)
	r, c := b.Dims()
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, b)
		if !ch.SymRankOne(ch, -1, mat.NewVecDense(c, row)) {
			return nil, false
		}
	}
	var out mat.TriDense
	ch.UTo(&out)
	if !nonsingular(&out) {
		return nil, false
	}
	return &out, true
}

// solveUT solves Uᵀ·X = B for X without forming an inverse.
func solveUT(u *mat.TriDense, b mat.Matrix) *mat.Dense {
	var x mat.Dense
	x.CloneFrom(b)
	blas64.Trsm(blas.Left, blas.Trans, 1, u.RawTriangular(), x.RawMatrix())
	return &x
}

// mul returns a·b.
func mul(a, b mat.Matrix) *mat.Dense {
	var c mat.Dense
	c.Mul(a, b)
	return &c
}

// atb returns aᵀ·b.
func atb(a, b mat.Matrix) *mat.Dense {
	var c mat.Dense
	c.Mul(a.T(), b)
	return &c
}

// atbc returns aᵀ·b·c.
func atbc(a, b, c mat.Matrix) *mat.Dense {
	return mul(atb(a, b), c)
}

// sum returns the sum of equally sized matrices.
func sum(terms ...mat.Matrix) *mat.Dense {
	var s mat.Dense
	s.CloneFrom(terms[0])
	for _, t := range terms[1:] {
		s.Add(&s, t)
	}
	return &s
}

// scale returns alpha·a.
func scale(alpha float64, a mat.Matrix) *mat.Dense {
	var s mat.Dense
	s.Scale(alpha, a)
	return &s
}

// block assembles the symmetric matrix [xx uxᵀ; ux uu].
func block(xx, ux, uu mat.Matrix) *mat.SymDense {
	n, _ := xx.Dims()
	m, _ := uu.Dims()
	b := mat.NewDense(n+m, n+m, nil)
	b.Slice(0, n, 0, n).(*mat.Dense).Copy(xx)
	b.Slice(n, n+m, 0, n).(*mat.Dense).Copy(ux)
	b.Slice(0, n, n, n+m).(*mat.Dense).Copy(ux.T())
	b.Slice(n, n+m, n, n+m).(*mat.Dense).Copy(uu)
	return symmetrize(b)
}

// stackVec returns [a; b].
func stackVec(a, b mat.Vector) *mat.VecDense {
	n, m := a.Len(), b.Len()
	v := mat.NewVecDense(n+m, nil)
	for i := 0; i < n; i++ {
		v.SetVec(i, a.AtVec(i))
	}
	for i := 0; i < m; i++ {
		v.SetVec(n+i, b.AtVec(i))
	}
	return v
}
