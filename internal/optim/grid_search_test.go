package optim

import (
	"context"
	"errors"
	"testing"

	"github.com/san-kum/trajopt/internal/config"
)

func TestParseRange(t *testing.T) {
	name, values, err := ParseRange("r=0.1, 1,10")
	if err != nil {
		t.Fatal(err)
	}
	if name != "r" || len(values) != 3 || values[2] != 10 {
		t.Errorf("unexpected range %s %v", name, values)
	}

	for _, bad := range []string{"r", "=1", "r=1,x"} {
		if _, _, err := ParseRange(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestApply(t *testing.T) {
	cfg := config.DefaultConfig()
	if err := Apply(cfg, "qf", 5); err != nil {
		t.Fatal(err)
	}
	if cfg.Weights.Qf[0] != 5 || cfg.Weights.Qf[1] != 5 {
		t.Errorf("qf not applied: %v", cfg.Weights.Qf)
	}
	if err := Apply(cfg, "knots", 30.6); err != nil || cfg.Knots != 31 {
		t.Errorf("knots should round, got %d (%v)", cfg.Knots, err)
	}
	if err := Apply(cfg, "param.mass", 2); err != nil || cfg.Params["mass"] != 2 {
		t.Errorf("model parameter not applied: %v", cfg.Params)
	}
	if err := Apply(cfg, "bogus", 1); !errors.Is(err, ErrUnknownParam) {
		t.Errorf("expected ErrUnknownParam, got %v", err)
	}
}

func TestNewGridSearchErrors(t *testing.T) {
	cases := []struct {
		name   string
		params []string
		ranges [][]float64
	}{
		{"no params", nil, nil},
		{"length mismatch", []string{"r"}, nil},
		{"empty range", []string{"r"}, [][]float64{{}}},
		{"unknown", []string{"bogus"}, [][]float64{{1}}},
	}
	for _, tc := range cases {
		if _, err := NewGridSearch(tc.params, tc.ranges); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestPoints(t *testing.T) {
	g, err := NewGridSearch([]string{"r", "knots"}, [][]float64{{0.1, 1}, {11, 21, 31}})
	if err != nil {
		t.Fatal(err)
	}
	points := g.Points()
	if len(points) != 6 {
		t.Fatalf("expected 6 points, got %d", len(points))
	}
	if points[0]["r"] != 0.1 || points[0]["knots"] != 11 || points[5]["r"] != 1 || points[5]["knots"] != 31 {
		t.Errorf("unexpected grid order: %v", points)
	}
	if got := (Point{Params: points[1]}).Key(); got != "knots=21,r=0.1" {
		t.Errorf("unexpected key %q", got)
	}
}

func TestSearch(t *testing.T) {
	base := config.DefaultConfig()
	base.Knots, base.Dt = 21, 0.1

	g, err := NewGridSearch([]string{"r"}, [][]float64{{1, 0.1}})
	if err != nil {
		t.Fatal(err)
	}
	points, best, err := g.Search(context.Background(), nil, base, Objectives["cost"])
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	for _, p := range points {
		if p.Err != nil || !p.Converged {
			t.Errorf("%s: err=%v converged=%v", p.Key(), p.Err, p.Converged)
		}
	}
	if best == nil || best.Params["r"] != 0.1 {
		t.Errorf("cheaper control weight should win, got %+v", best)
	}
	if base.Weights.R[0] != 0.1 {
		t.Error("search must not modify the base config")
	}
}

func TestSearchInvalidPoint(t *testing.T) {
	base := config.DefaultConfig()
	base.Knots = 11

	g, err := NewGridSearch([]string{"dt"}, [][]float64{{-1}})
	if err != nil {
		t.Fatal(err)
	}
	points, best, err := g.Search(context.Background(), nil, base, Objectives["iterations"])
	if err != nil {
		t.Fatal(err)
	}
	if points[0].Err == nil || best != nil {
		t.Errorf("a negative dt should fail without a best point: %+v", points[0])
	}
}
