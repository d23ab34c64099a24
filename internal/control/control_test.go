package control

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/trajopt/internal/ddp"
	"github.com/san-kum/trajopt/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

func nominal(hold bool) ddp.Trajectory {
	tr := ddp.Trajectory{
		X: []dynamo.State{{0, 0}, {1, 0}, {2, 0}},
		U: []dynamo.Control{{1}, {2}},
	}
	if hold {
		tr.U = append(tr.U, dynamo.Control{3})
	}
	return tr
}

func gains(n int, k, b float64) ddp.Gains {
	g := ddp.Gains{}
	for i := 0; i < n; i++ {
		g.K = append(g.K, mat.NewDense(1, 2, []float64{k, 0}))
		g.B = append(g.B, mat.NewDense(1, 1, []float64{b}))
	}
	return g
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("%s: got %g, want %g", name, got, want)
	}
}

func TestTrackingZeroOrderHold(t *testing.T) {
	c, err := NewTracking(nominal(false), gains(2, -2, 0), 0.5, false)
	if err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		name string
		x    dynamo.State
		t    float64
		want float64
	}{
		{"on nominal", dynamo.State{0, 0}, 0, 1},
		{"held within interval", dynamo.State{0.1, 0}, 0.25, 1},
		{"measured at knot", dynamo.State{1.1, 0}, 0.5, 2 - 0.2},
		{"held again", dynamo.State{5, 0}, 0.75, 2 - 0.2},
		{"past horizon", dynamo.State{2, 0}, 5, 2 - 0.2},
	}
	for _, st := range steps {
		approx(t, st.name, c.Compute(st.x, st.t)[0], st.want)
	}

	c.Reset()
	approx(t, "after reset", c.Compute(dynamo.State{0.1, 0}, 0)[0], 1-0.2)
}

func TestTrackingAfterHorizon(t *testing.T) {
	c, _ := NewOpenLoop(nominal(false), 0.5, false)
	c.After = NewNone(1)
	approx(t, "before", c.Compute(dynamo.State{0.5, 0}, 0.9)[0], 2)
	approx(t, "after", c.Compute(dynamo.State{2, 0}, 1.0)[0], 0)
	approx(t, "horizon", c.Horizon(), 1)
}

func TestTrackingFirstOrderHold(t *testing.T) {
	open, err := NewOpenLoop(nominal(true), 0.5, true)
	if err != nil {
		t.Fatal(err)
	}
	approx(t, "start", open.Compute(dynamo.State{0, 0}, 0)[0], 1)
	approx(t, "midway", open.Compute(dynamo.State{0, 0}, 0.25)[0], 1.5)
	approx(t, "second", open.Compute(dynamo.State{0, 0}, 0.75)[0], 2.5)

	// δu0 = K·δx0 = -0.2; δu1 = K·δx0 + B·δu0 = -0.2 - 0.1
	c, err := NewTracking(nominal(true), gains(3, -2, 0.5), 0.5, true)
	if err != nil {
		t.Fatal(err)
	}
	approx(t, "corrected start", c.Compute(dynamo.State{0.1, 0}, 0)[0], 1-0.2)
	approx(t, "corrected midway", c.Compute(dynamo.State{0.3, 0}, 0.25)[0], 0.5*(1-0.2)+0.5*(2-0.3))

	// at knot 1, δx1 = 0.2: δu2 = -0.4 + 0.5·(-0.3)
	approx(t, "knot 1", c.Compute(dynamo.State{1.2, 0}, 0.5)[0], 2-0.3)
	approx(t, "last interval", c.Compute(dynamo.State{0, 0}, 0.75)[0], 0.5*(2-0.3)+0.5*(3-0.55))

	c.Reset()
	approx(t, "after reset", c.Compute(dynamo.State{0, 0}, 0)[0], 1)
}

func TestNewTrackingErrors(t *testing.T) {
	tests := []struct {
		name string
		tr   ddp.Trajectory
		g    ddp.Gains
		dt   float64
		hold bool
	}{
		{"zero dt", nominal(false), ddp.Gains{}, 0, false},
		{"hold controls", nominal(false), ddp.Gains{}, 0.5, true},
		{"gain count", nominal(false), gains(3, 1, 0), 0.5, false},
		{"missing control gains", nominal(true), ddp.Gains{K: gains(3, 1, 0).K}, 0.5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTracking(tt.tr, tt.g, tt.dt, tt.hold)
			if !errors.Is(err, dynamo.ErrDimensionMismatch) {
				t.Errorf("expected ErrDimensionMismatch, got %v", err)
			}
		})
	}
}

func TestFromGain(t *testing.T) {
	K := mat.NewDense(1, 2, []float64{-3, -1})
	l := FromGain(K, dynamo.State{1, 0})
	// δu = K·δx
	approx(t, "u", l.Compute(dynamo.State{2, 0.5}, 0)[0], -3-0.5)
}

func TestNone(t *testing.T) {
	u := NewNone(2).Compute(dynamo.State{1, 2}, 0)
	if len(u) != 2 || u[0] != 0 || u[1] != 0 {
		t.Errorf("expected zero control, got %v", u)
	}
}
