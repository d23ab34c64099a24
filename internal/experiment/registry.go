package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/trajopt/internal/config"
	"github.com/san-kum/trajopt/internal/control"
	"github.com/san-kum/trajopt/internal/dynamo"
	"github.com/san-kum/trajopt/internal/metrics"
	"github.com/san-kum/trajopt/internal/solver"
)

type controllerFactory func(cfg *config.Config, res *solver.Result) (dynamo.Controller, error)

// Registry names the controllers a solved trajectory can be replayed with.
type Registry struct {
	controllers map[string]controllerFactory
}

func NewRegistry() *Registry {
	r := &Registry{controllers: make(map[string]controllerFactory)}

	r.controllers["tracking"] = func(cfg *config.Config, res *solver.Result) (dynamo.Controller, error) {
		tr, err := control.NewTracking(res.Trajectory, res.Gains, cfg.Dt, res.Hold)
		if err != nil {
			return nil, err
		}
		if K := res.Gains.K; len(K) > 0 {
			tr.After = control.FromGain(K[len(K)-1], dynamo.State(cfg.Target))
		}
		return tr, nil
	}
	r.controllers["open_loop"] = func(cfg *config.Config, res *solver.Result) (dynamo.Controller, error) {
		return control.NewOpenLoop(res.Trajectory, cfg.Dt, res.Hold)
	}
	r.controllers["none"] = func(cfg *config.Config, res *solver.Result) (dynamo.Controller, error) {
		sys, err := cfg.System()
		if err != nil {
			return nil, err
		}
		return control.NewNone(sys.ControlDim()), nil
	}

	return r
}

func (r *Registry) Controller(name string, cfg *config.Config, res *solver.Result) (dynamo.Controller, error) {
	fn, ok := r.controllers[name]
	if !ok {
		return nil, fmt.Errorf("unknown controller: %s", name)
	}
	return fn(cfg, res)
}

func (r *Registry) ListControllers() []string {
	names := make([]string, 0, len(r.controllers))
	for name := range r.controllers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Metrics returns fresh metrics for one closed-loop run.
func (r *Registry) Metrics(cfg *config.Config, res *solver.Result) []dynamo.Metric {
	ms := []dynamo.Metric{
		metrics.NewControlEffort(),
		metrics.NewTrackingError(res.Trajectory.X, cfg.Dt),
		metrics.NewTerminalError(dynamo.State(cfg.Target)),
	}
	if cfg.Bounds != nil {
		ms = append(ms, metrics.NewBoundViolation(cfg.Bounds.Lower, cfg.Bounds.Upper))
	}
	return ms
}
