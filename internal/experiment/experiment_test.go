package experiment

import (
	"context"
	"math"
	"testing"

	"github.com/san-kum/trajopt/internal/config"
	"github.com/san-kum/trajopt/internal/solver"
	"gonum.org/v1/gonum/floats"
)

func solved(t *testing.T) (*Experiment, *solver.Result) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Knots = 21
	cfg.Dt = 0.1
	cfg.Simulate.Dt = 0.01

	e := New(cfg, "", nil)
	res, err := e.Solve(context.Background())
	if err != nil {
		t.Fatalf("solve failed: %v", err)
	}
	if !res.Converged {
		t.Fatalf("solve did not converge: %s", res.Reason)
	}
	return e, res
}

func TestSimulateTracking(t *testing.T) {
	e, res := solved(t)

	results, err := e.Simulate(context.Background(), res, "tracking")
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one run, got %d", len(results))
	}
	r := results[0]
	if r.StepsTaken != 200 {
		t.Errorf("expected 200 steps, got %d", r.StepsTaken)
	}

	if got := r.Metrics["tracking_error"]; got > 1e-6 {
		t.Errorf("closed loop drifted from the nominal: %g", got)
	}
	final := res.Trajectory.X[len(res.Trajectory.X)-1]
	want := floats.Distance(final, e.Config().Target, 2)
	if got := r.Metrics["terminal_error"]; math.Abs(got-want) > 1e-6 {
		t.Errorf("terminal error %g, nominal ends %g from the target", got, want)
	}
}

func TestSimulateNone(t *testing.T) {
	e, res := solved(t)

	results, err := e.Simulate(context.Background(), res, "none")
	if err != nil {
		t.Fatal(err)
	}
	// the double integrator stays at rest without control
	if got := results[0].Metrics["terminal_error"]; math.Abs(got-1) > 1e-12 {
		t.Errorf("expected terminal error 1, got %g", got)
	}
	if got := results[0].Metrics["control_effort"]; got != 0 {
		t.Errorf("expected no control effort, got %g", got)
	}
}

func TestSimulateEnsemble(t *testing.T) {
	e, res := solved(t)
	e.Config().Simulate.Runs = 4
	e.Config().Simulate.Sigma = 0.01

	results, err := e.Simulate(context.Background(), res, "tracking")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 runs, got %d", len(results))
	}
	summary := Summary(results)
	for _, name := range []string{"control_effort", "tracking_error", "terminal_error"} {
		if _, ok := summary[name]; !ok {
			t.Errorf("summary is missing %s", name)
		}
	}
	if summary["tracking_error"] <= 0 {
		t.Error("perturbed runs should leave the nominal")
	}
}

func TestUnknownController(t *testing.T) {
	e, res := solved(t)
	if _, err := e.Simulate(context.Background(), res, "bogus"); err == nil {
		t.Error("expected error for unknown controller")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	names := r.ListControllers()
	want := []string{"none", "open_loop", "tracking"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("expected %v, got %v", want, names)
		}
	}

	cfg := config.DefaultConfig()
	cfg.Bounds = &config.BoundsConfig{Lower: []float64{-1}, Upper: []float64{1}}
	ms := r.Metrics(cfg, &solver.Result{})
	if len(ms) != 4 {
		t.Errorf("expected 4 metrics with bounds, got %d", len(ms))
	}
}

func TestRecord(t *testing.T) {
	cfg := config.GetPreset("double_integrator", "move")
	e := New(cfg, "move", nil)
	run := e.Record(&solver.Result{})
	if run.Meta.Model != "double_integrator" || run.Meta.Preset != "move" {
		t.Errorf("unexpected metadata: %+v", run.Meta)
	}
	if run.Config != cfg {
		t.Error("record should carry the config")
	}
}

func TestSummaryEmpty(t *testing.T) {
	if got := Summary(nil); len(got) != 0 {
		t.Errorf("expected empty summary, got %v", got)
	}
}
