package solver

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/san-kum/trajopt/internal/ddp"
	"go.uber.org/zap"
)

// Reason records why a solve stopped.
type Reason string

const (
	ReasonExpectedChange Reason = "expected change below tolerance"
	ReasonCostChange     Reason = "cost change below tolerance"
	ReasonIterations     Reason = "iteration limit"
	ReasonDamping        Reason = "regularization saturated"
	ReasonOuter          Reason = "outer iteration limit"
)

// Stats summarizes one iteration: a backward sweep and, unless the
// expected change was already below tolerance, one line search.
type Stats struct {
	Iteration int
	Outer     int
	Cost      float64
	Expected  float64
	Alpha     float64
	Ratio     float64
	Damping   float64
	Restarts  int
	Searches  int
	Accepted  bool
	Violation float64
	Elapsed   time.Duration
}

type Observer interface {
	OnIteration(s Stats)
}

type ObserverFunc func(Stats)

func (f ObserverFunc) OnIteration(s Stats) { f(s) }

type Result struct {
	Trajectory ddp.Trajectory
	// Gains is the feedback policy of a final sweep around Trajectory.
	Gains      ddp.Gains
	Hold       bool
	Cost       float64
	Iterations int
	Outer      int
	Converged  bool
	Reason     Reason
	Violation  float64
	History    []Stats
}

type Solver struct {
	opts      Options
	log       *zap.Logger
	observers []Observer
}

func New(opts Options, log *zap.Logger) (*Solver, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Solver{opts: opts, log: log}, nil
}

func (s *Solver) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// solve is the state of one call to Solve.
type solve struct {
	*Solver
	p     *Problem
	hold  bool
	pass  ddp.BackwardPass
	reg   *ddp.Regularizer
	al    *augmented
	tr    ddp.Trajectory
	res   *Result
	start time.Time
}

func (s *Solver) Solve(ctx context.Context, p *Problem) (*Result, error) {
	hold := s.opts.Pass.Hold()
	if err := p.validate(hold); err != nil {
		return nil, err
	}
	if p.constrained() {
		if err := s.opts.Constraints.validate(); err != nil {
			return nil, err
		}
	}
	reg, err := ddp.NewRegularizer(s.opts.Regularization)
	if err != nil {
		return nil, err
	}
	tr, err := p.initial(hold)
	if err != nil {
		return nil, err
	}

	run := &solve{
		Solver: s,
		p:      p,
		hold:   hold,
		pass:   s.opts.Pass.backward(s.opts.MaxRestarts),
		reg:    reg,
		al:     newAugmented(p, hold, s.opts.Constraints),
		tr:     tr,
		res:    &Result{Hold: hold},
		start:  time.Now(),
	}
	s.log.Info("solve started",
		zap.Stringer("pass", s.opts.Pass),
		zap.Int("knots", p.Knots),
		zap.Float64("dt", p.Dt),
		zap.Bool("constrained", p.constrained()),
		zap.Float64("cost", Cost(p, hold, tr)))

	if err := run.outer(ctx); err != nil {
		return run.finish(), err
	}

	pol, err := run.pass.Sweep(run.problem(), run.reg)
	if err != nil {
		return run.finish(), fmt.Errorf("final sweep: %w", err)
	}
	res := run.finish()
	res.Gains = pol.Gains
	s.log.Info("solve finished",
		zap.Bool("converged", res.Converged),
		zap.String("reason", string(res.Reason)),
		zap.Int("iterations", res.Iterations),
		zap.Float64("cost", res.Cost),
		zap.Float64("violation", res.Violation),
		zap.Duration("elapsed", time.Since(run.start)))
	return res, nil
}

// outer runs the augmented-Lagrangian loop; an unconstrained problem
// takes exactly one pass through it.
func (r *solve) outer(ctx context.Context) error {
	for outer := 1; ; outer++ {
		r.res.Outer = outer
		reason, err := r.inner(ctx, outer)
		if err != nil {
			return err
		}
		r.res.Reason = reason
		r.res.Converged = reason == ReasonExpectedChange || reason == ReasonCostChange
		if r.al == nil || reason == ReasonDamping {
			return nil
		}

		r.res.Violation = r.al.violation(r.tr)
		r.log.Debug("outer iteration",
			zap.Int("outer", outer),
			zap.Float64("violation", r.res.Violation),
			zap.Float64("penalty", r.al.maxPenalty()))
		if r.res.Violation < r.opts.Constraints.Tolerance {
			return nil
		}
		if outer == r.opts.Constraints.MaxOuter {
			r.res.Converged = false
			r.res.Reason = ReasonOuter
			return nil
		}
		r.al.update(r.tr)
	}
}

func (r *solve) objective(tr ddp.Trajectory) float64 {
	return Cost(r.p, r.hold, tr) + r.al.penalty(tr)
}

func (r *solve) problem() *ddp.Problem {
	dp := &ddp.Problem{Trajectory: r.tr, Weights: r.p.Weights, Dt: r.p.Dt}
	if r.hold {
		dp.Hold = linearizeHold(r.p, r.tr)
	} else {
		dp.Linearization = linearize(r.p, r.tr)
	}
	if r.al != nil {
		dp.Constraints = r.al.activeSet(r.tr)
	}
	return dp
}

func (r *solve) rollout(g ddp.Gains) ddp.Rollout {
	if r.hold {
		return ddp.HoldRollout(r.tr, g, r.p.holdStep())
	}
	return ddp.ZeroOrderRollout(r.tr, g, r.p.step())
}

func (r *solve) inner(ctx context.Context, outer int) (Reason, error) {
	for it := 0; it < r.opts.MaxIterations; it++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		J := r.objective(r.tr)
		pol, err := r.pass.Sweep(r.problem(), r.reg)
		if err != nil {
			return "", fmt.Errorf("iteration %d: %w", r.res.Iterations+1, err)
		}
		r.res.Iterations++
		if pol.Restarts > 0 {
			r.log.Debug("sweep restarted",
				zap.Int("restarts", pol.Restarts),
				zap.Float64("damping", r.reg.Value()))
		}

		st := Stats{
			Iteration: r.res.Iterations,
			Outer:     outer,
			Cost:      J,
			Expected:  pol.Expected.Magnitude(),
			Damping:   r.reg.Value(),
			Restarts:  pol.Restarts,
			Violation: r.al.violation(r.tr),
		}
		if st.Expected < r.opts.GradientTolerance {
			r.emit(st)
			return ReasonExpectedChange, nil
		}

		step, err := r.opts.LineSearch.Run(r.tr, pol.Expected, J, r.rollout(pol.Gains), r.objective, r.reg)
		if err != nil {
			return "", err
		}
		st.Alpha = step.Alpha
		st.Ratio = step.Ratio
		st.Searches = step.Iterations
		st.Accepted = step.Accepted
		st.Damping = r.reg.Value()
		r.log.Debug("line search",
			zap.Bool("accepted", step.Accepted),
			zap.Float64("alpha", step.Alpha),
			zap.Float64("ratio", step.Ratio),
			zap.Int("tries", step.Iterations))

		if !step.Accepted {
			r.emit(st)
			if r.reg.Saturated() {
				r.log.Warn("damping saturated", zap.Float64("damping", r.reg.Value()))
				return ReasonDamping, nil
			}
			continue
		}

		r.tr = step.Trajectory
		st.Cost = step.Cost
		st.Violation = r.al.violation(r.tr)
		r.emit(st)
		if math.Abs(J-step.Cost) < r.opts.CostTolerance*math.Max(math.Abs(J), 1) {
			return ReasonCostChange, nil
		}
	}
	return ReasonIterations, nil
}

func (r *solve) emit(st Stats) {
	st.Elapsed = time.Since(r.start)
	r.res.History = append(r.res.History, st)
	r.log.Info("iteration",
		zap.Int("iter", st.Iteration),
		zap.Float64("cost", st.Cost),
		zap.Float64("expected", st.Expected),
		zap.Float64("alpha", st.Alpha),
		zap.Float64("damping", st.Damping))
	for _, o := range r.observers {
		o.OnIteration(st)
	}
}

func (r *solve) finish() *Result {
	r.res.Trajectory = r.tr
	r.res.Cost = Cost(r.p, r.hold, r.tr)
	r.res.Violation = r.al.violation(r.tr)
	return r.res
}
