package ddp

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func gram(m mat.Matrix) *mat.Dense {
	var g mat.Dense
	g.Mul(m.T(), m)
	return &g
}

func TestCombine(t *testing.T) {
	a := mat.NewDense(2, 3, []float64{1, 2, 0, -1, 0.5, 3})
	b := mat.NewDense(3, 3, []float64{2, 0, 0, 0.1, 1, 0, 0, 0, 4})
	u := combine(a, b)

	want := gram(a)
	want.Add(want, gram(b))
	if !mat.EqualApprox(gram(u), want, 1e-12) {
		t.Errorf("UᵀU = %v, want %v", mat.Formatted(gram(u)), mat.Formatted(want))
	}
	for i := 0; i < 3; i++ {
		if u.At(i, i) < 0 {
			t.Errorf("diagonal %d is negative: %g", i, u.At(i, i))
		}
	}
}

func TestCombineFewRows(t *testing.T) {
	// a single row still yields a square factor
	a := mat.NewDense(1, 2, []float64{3, 4})
	u := combine(a)
	if r, c := u.Dims(); r != 2 || c != 2 {
		t.Fatalf("factor is %dx%d", r, c)
	}
	if !mat.EqualApprox(gram(u), gram(a), 1e-12) {
		t.Errorf("UᵀU = %v, want %v", mat.Formatted(gram(u)), mat.Formatted(gram(a)))
	}
}

func TestSubtract(t *testing.T) {
	u := combine(mat.NewDense(2, 2, []float64{3, 1, 0, 2}))
	b := mat.NewDense(1, 2, []float64{1, 0.5})

	got, ok := subtract(u, b)
	if !ok {
		t.Fatal("downdate failed")
	}
	want := gram(u)
	want.Sub(want, gram(b))
	if !mat.EqualApprox(gram(got), want, 1e-12) {
		t.Errorf("UᵀU = %v, want %v", mat.Formatted(gram(got)), mat.Formatted(want))
	}

	if _, ok := subtract(u, mat.NewDense(1, 2, []float64{5, 0})); ok {
		t.Error("expected an indefinite downdate to fail")
	}
}

func TestPSDRoot(t *testing.T) {
	tests := []struct {
		name string
		a    *mat.SymDense
	}{
		{"definite", mat.NewSymDense(2, []float64{4, 1, 1, 3})},
		{"singular", mat.NewSymDense(2, []float64{1, 1, 1, 1})},
		{"zero", mat.NewSymDense(3, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := psdRoot(tt.a)
			if !mat.EqualApprox(gram(w), tt.a, 1e-12) {
				t.Errorf("WᵀW = %v, want %v", mat.Formatted(gram(w)), mat.Formatted(tt.a))
			}
		})
	}
}

func TestSolveUT(t *testing.T) {
	u := mat.NewTriDense(2, mat.Upper, []float64{2, 1, 0, 4})
	b := mat.NewDense(2, 1, []float64{4, 6})
	x := solveUT(u, b)

	var back mat.Dense
	back.Mul(u.T(), x)
	if !mat.EqualApprox(&back, b, 1e-12) {
		t.Errorf("Uᵀx = %v, want %v", mat.Formatted(&back), mat.Formatted(b))
	}
}

func TestNonsingular(t *testing.T) {
	if nonsingular(mat.NewTriDense(2, mat.Upper, []float64{1, 0, 0, 0})) {
		t.Error("zero diagonal accepted")
	}
	if !nonsingular(mat.NewTriDense(2, mat.Upper, []float64{1, 5, 0, 1e-3})) {
		t.Error("well-conditioned factor rejected")
	}
}
