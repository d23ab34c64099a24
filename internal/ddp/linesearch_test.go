package ddp

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/trajopt/internal/dynamo"
)

func stubTrajectory() Trajectory {
	return Trajectory{
		X: []dynamo.State{{0, 0}, {1, 1}, {2, 2}},
		U: []dynamo.Control{{1}, {2}},
	}
}

func TestLineSearchAcceptsExactModel(t *testing.T) {
	nominal := stubTrajectory()
	dv := ExpectedChange{Linear: -4, Quadratic: 1.5}
	baseline := 10.0
	reg := newTestRegularizer(t, ControlMode)
	before := reg.Value()

	rollout := func(alpha float64) (Trajectory, bool) { return nominal.Clone(), true }
	cost := func(Trajectory) float64 { return baseline - dv.Decrease(1) }

	ls := LineSearch{LowerBound: 1e-4, UpperBound: 10, MaxIterations: 10}
	st, err := ls.Run(nominal, dv, baseline, rollout, cost, reg)
	if err != nil {
		t.Fatalf("line search failed: %v", err)
	}
	if !st.Accepted || st.Iterations != 1 || st.Alpha != 1 {
		t.Errorf("expected acceptance at alpha 1 on the first iteration, got %+v", st)
	}
	if math.Abs(st.Ratio-1) > 1e-12 {
		t.Errorf("ratio = %g, want 1", st.Ratio)
	}
	if st.Cost != baseline-2.5 {
		t.Errorf("cost = %g, want %g", st.Cost, baseline-2.5)
	}
	if reg.Value() != before {
		t.Errorf("damping changed on success: %g -> %g", before, reg.Value())
	}
}

func TestLineSearchHalvesOnNonFiniteRollout(t *testing.T) {
	nominal := stubTrajectory()
	reg := newTestRegularizer(t, ControlMode)
	before := reg.Value()

	var alphas []float64
	rollout := func(alpha float64) (Trajectory, bool) {
		alphas = append(alphas, alpha)
		if alpha > 1e-3 {
			return Trajectory{}, false
		}
		return nominal.Clone(), true
	}
	cost := func(Trajectory) float64 {
		t.Fatal("cost evaluated for a failed rollout")
		return 0
	}

	ls := LineSearch{LowerBound: 1e-4, UpperBound: 10, MaxIterations: 6}
	st, err := ls.Run(nominal, ExpectedChange{Linear: -1}, 3, rollout, cost, reg)
	if err != nil {
		t.Fatalf("line search failed: %v", err)
	}

	if len(alphas) != 6 {
		t.Fatalf("expected 6 rollouts, got %d", len(alphas))
	}
	for i := 1; i < len(alphas); i++ {
		if alphas[i] != alphas[i-1]/2 {
			t.Errorf("step %d: alpha %g after %g", i, alphas[i], alphas[i-1])
		}
	}
	if st.Accepted || st.Alpha != 0 || st.Cost != 3 {
		t.Errorf("expected fallback with alpha 0 and baseline cost, got %+v", st)
	}
	if st.Trajectory.X[2][1] != 2 || len(st.Trajectory.U) != 2 {
		t.Errorf("fallback trajectory differs from nominal: %+v", st.Trajectory)
	}
	if reg.Value() <= before {
		t.Errorf("damping not increased: %g -> %g", before, reg.Value())
	}
}

func TestLineSearchRejectsNonDescentModel(t *testing.T) {
	nominal := stubTrajectory()
	reg := newTestRegularizer(t, StateMode)
	calls := 0
	rollout := func(alpha float64) (Trajectory, bool) {
		calls++
		return nominal.Clone(), true
	}
	cost := func(Trajectory) float64 { return 0 }

	// the model predicts an increase, so no ratio is acceptable
	ls := LineSearch{LowerBound: -1e9, UpperBound: 1e9, MaxIterations: 4}
	st, err := ls.Run(nominal, ExpectedChange{Linear: 2, Quadratic: 1}, 5, rollout, cost, reg)
	if err != nil {
		t.Fatalf("line search failed: %v", err)
	}
	if st.Accepted || calls != 4 {
		t.Errorf("expected 4 rejected tries, got accepted=%v after %d", st.Accepted, calls)
	}
}

func TestLineSearchSkipsNonFiniteCost(t *testing.T) {
	nominal := stubTrajectory()
	dv := ExpectedChange{Linear: -2, Quadratic: 1}
	rollout := func(alpha float64) (Trajectory, bool) {
		tr := nominal.Clone()
		tr.U[0][0] = alpha
		return tr, true
	}
	cost := func(tr Trajectory) float64 {
		if tr.U[0][0] == 1 {
			return math.Inf(1)
		}
		return 4 - dv.Decrease(tr.U[0][0])
	}

	ls := LineSearch{LowerBound: 0.5, UpperBound: 2, MaxIterations: 5}
	st, err := ls.Run(nominal, dv, 4, rollout, cost, newTestRegularizer(t, ControlMode))
	if err != nil {
		t.Fatalf("line search failed: %v", err)
	}
	if !st.Accepted || st.Alpha != 0.5 || st.Iterations != 2 {
		t.Errorf("expected acceptance at alpha 0.5 on iteration 2, got %+v", st)
	}
}

func TestLineSearchValidate(t *testing.T) {
	tests := []struct {
		name string
		ls   LineSearch
	}{
		{"no iterations", LineSearch{LowerBound: 0, UpperBound: 1}},
		{"empty interval", LineSearch{LowerBound: 1, UpperBound: 1, MaxIterations: 3}},
		{"nan bound", LineSearch{LowerBound: math.NaN(), UpperBound: 1, MaxIterations: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.ls.Run(stubTrajectory(), ExpectedChange{}, 0, nil, nil, nil)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
