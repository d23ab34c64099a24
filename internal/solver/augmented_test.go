package solver

import (
	"testing"

	"github.com/san-kum/trajopt/internal/ddp"
	"github.com/san-kum/trajopt/internal/dynamo"
)

func boundedProblem() *Problem {
	p := doubleIntegratorProblem(3, "rk4")
	p.Bounds = &Bounds{Lower: dynamo.Control{-1}, Upper: dynamo.Control{1}}
	return p
}

func boundedTrajectory(u0, u1 float64) ddp.Trajectory {
	return ddp.Trajectory{
		X: []dynamo.State{{0, 0}, {0.5, 0.2}, {0.5, 0.2}},
		U: []dynamo.Control{{u0}, {u1}},
	}
}

var testConstraints = ConstraintOptions{MaxOuter: 10, Tolerance: 1e-3, PenaltyInitial: 1, PenaltyScale: 10, PenaltyMax: 100}

func TestAugmentedUnconstrained(t *testing.T) {
	if a := newAugmented(doubleIntegratorProblem(3, "rk4"), false, testConstraints); a != nil {
		t.Fatal("expected no constraint state for an unconstrained problem")
	}
	var a *augmented
	tr := boundedTrajectory(5, 5)
	if a.penalty(tr) != 0 || a.violation(tr) != 0 || a.maxPenalty() != 0 {
		t.Error("nil constraint state must not contribute")
	}
}

func TestAugmentedActiveSet(t *testing.T) {
	a := newAugmented(boundedProblem(), false, testConstraints)
	set := a.activeSet(boundedTrajectory(2, 0))

	if len(set.Stages) != 2 {
		t.Fatalf("expected 2 stage terms, got %d", len(set.Stages))
	}
	if set.Terminal != nil {
		t.Error("expected no terminal term without a goal")
	}

	s0 := set.Stages[0]
	assertClose(t, "c upper", s0.Value.AtVec(0), 1, 0)
	assertClose(t, "c lower", s0.Value.AtVec(1), -3, 0)
	assertClose(t, "Ju upper", s0.Ju.At(0, 0), 1, 0)
	assertClose(t, "Ju lower", s0.Ju.At(1, 0), -1, 0)
	assertClose(t, "violated weight", s0.Penalty.At(0, 0), 1, 0)
	assertClose(t, "satisfied weight", s0.Penalty.At(1, 1), 0, 0)

	s1 := set.Stages[1]
	for i := 0; i < 2; i++ {
		if s1.Penalty.At(i, i) != 0 {
			t.Errorf("inactive bound %d has weight %g", i, s1.Penalty.At(i, i))
		}
	}
}

func TestAugmentedPenaltyAndViolation(t *testing.T) {
	a := newAugmented(boundedProblem(), false, testConstraints)
	tr := boundedTrajectory(2, 0)

	assertClose(t, "penalty", a.penalty(tr), 0.5, 1e-15)
	assertClose(t, "violation", a.violation(tr), 1, 0)
	assertClose(t, "feasible violation", a.violation(boundedTrajectory(0.5, -0.5)), 0, 0)
}

func TestAugmentedUpdate(t *testing.T) {
	a := newAugmented(boundedProblem(), false, testConstraints)
	tr := boundedTrajectory(2, 0)

	a.update(tr)
	assertClose(t, "λ violated", a.lambda[0][0], 1, 0)
	assertClose(t, "λ satisfied", a.lambda[0][1], 0, 0)
	assertClose(t, "μ", a.mu[0][0], 10, 0)

	// a positive multiplier keeps the bound active once it is satisfied
	set := a.activeSet(boundedTrajectory(0.5, 0))
	assertClose(t, "held weight", set.Stages[0].Penalty.At(0, 0), 10, 0)
	assertClose(t, "multiplier", set.Stages[0].Multiplier.AtVec(0), 1, 0)

	a.update(tr)
	assertClose(t, "λ second", a.lambda[0][0], 11, 0)
	a.update(tr)
	assertClose(t, "μ capped", a.mu[0][0], 100, 0)
	assertClose(t, "max penalty", a.maxPenalty(), 100, 0)
}

func TestAugmentedGoal(t *testing.T) {
	p := doubleIntegratorProblem(3, "rk4")
	p.Goal = true
	a := newAugmented(p, false, testConstraints)
	tr := boundedTrajectory(0, 0)

	set := a.activeSet(tr)
	if set.Terminal == nil || len(set.Stages) != 0 {
		t.Fatal("expected only a terminal term")
	}
	assertClose(t, "c pos", set.Terminal.Value.AtVec(0), -0.5, 1e-15)
	assertClose(t, "c vel", set.Terminal.Value.AtVec(1), 0.2, 1e-15)
	for i := 0; i < 2; i++ {
		assertClose(t, "equality weight", set.Terminal.Penalty.At(i, i), 1, 0)
	}
	assertClose(t, "violation", a.violation(tr), 0.5, 1e-15)

	a.update(tr)
	assertClose(t, "λ pos", a.goalLambda[0], -0.5, 1e-15)
	assertClose(t, "λ vel", a.goalLambda[1], 0.2, 1e-15)
}
