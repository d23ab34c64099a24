package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/trajopt/internal/config"
	"github.com/san-kum/trajopt/internal/dynamo"
	"github.com/san-kum/trajopt/internal/integrators"
	"github.com/san-kum/trajopt/internal/sim"
	"github.com/san-kum/trajopt/internal/solver"
	"github.com/san-kum/trajopt/internal/storage"
	"go.uber.org/zap"
)

// Experiment solves one configured problem and checks the resulting
// policy in closed loop.
type Experiment struct {
	cfg       *config.Config
	preset    string
	log       *zap.Logger
	observers []solver.Observer
	registry  *Registry
}

func New(cfg *config.Config, preset string, log *zap.Logger) *Experiment {
	if log == nil {
		log = zap.NewNop()
	}
	return &Experiment{cfg: cfg, preset: preset, log: log, registry: NewRegistry()}
}

func (e *Experiment) AddObserver(o solver.Observer) { e.observers = append(e.observers, o) }

func (e *Experiment) Config() *config.Config { return e.cfg }

func (e *Experiment) Solve(ctx context.Context) (*solver.Result, error) {
	opts, err := e.cfg.Options()
	if err != nil {
		return nil, err
	}
	p, err := e.cfg.Problem()
	if err != nil {
		return nil, err
	}
	s, err := solver.New(opts, e.log.With(zap.String("model", e.cfg.Model)))
	if err != nil {
		return nil, err
	}
	for _, o := range e.observers {
		s.AddObserver(o)
	}
	return s.Solve(ctx, p)
}

// Simulate runs the named controller built from res against the
// continuous model with RK4, once per ensemble member.
func (e *Experiment) Simulate(ctx context.Context, res *solver.Result, controller string) ([]*dynamo.Result, error) {
	sc := e.cfg.Simulate
	duration := sc.Duration
	if duration <= 0 {
		duration = e.cfg.Horizon()
	}
	runs := sc.Runs
	if runs <= 0 {
		runs = 1
	}

	if _, err := e.cfg.System(); err != nil {
		return nil, err
	}
	if _, err := e.registry.Controller(controller, e.cfg, res); err != nil {
		return nil, err
	}
	factory := func() *sim.Simulator {
		// both constructors already succeeded for these inputs
		sys, _ := e.cfg.System()
		ctrl, _ := e.registry.Controller(controller, e.cfg, res)
		s := sim.New(sys, integrators.NewRK4(), ctrl)
		for _, m := range e.registry.Metrics(e.cfg, res) {
			s.AddMetric(m)
		}
		return s
	}

	simCfg := dynamo.DefaultConfig()
	simCfg.Dt = sc.Dt
	simCfg.Duration = duration

	e.log.Debug("simulating policy",
		zap.String("controller", controller),
		zap.Int("runs", runs),
		zap.Float64("sigma", sc.Sigma),
		zap.Float64("duration", duration))

	return sim.NewEnsemble(factory, runs, sc.Sigma, sc.Seed).Run(ctx, dynamo.State(e.cfg.Initial), simCfg)
}

// Record describes a solve for the run store.
func (e *Experiment) Record(res *solver.Result) storage.Run {
	return storage.Run{
		Meta: storage.RunMetadata{
			Model:      e.cfg.Model,
			Preset:     e.preset,
			Pass:       e.cfg.Solver.Pass,
			Integrator: e.cfg.Integrator,
			Dt:         e.cfg.Dt,
		},
		Config: e.cfg,
		Result: res,
	}
}

// Summary merges the metrics of an ensemble into mean values.
func Summary(results []*dynamo.Result) map[string]float64 {
	out := make(map[string]float64)
	if len(results) == 0 {
		return out
	}
	for name := range results[0].Metrics {
		mean, _ := sim.Summarize(results, name)
		out[name] = mean
	}
	return out
}

func (e *Experiment) String() string {
	name := e.cfg.Model
	if e.preset != "" {
		name += "/" + e.preset
	}
	return fmt.Sprintf("%s (%s, %d knots, dt=%g)", name, e.cfg.Solver.Pass, e.cfg.Knots, e.cfg.Dt)
}
