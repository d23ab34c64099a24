// Package optim tunes problem and solver settings by grid search.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/san-kum/trajopt/internal/config"
	"github.com/san-kum/trajopt/internal/solver"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

var ErrUnknownParam = errors.New("optim: unknown parameter")

// setters maps the tunable settings to their place in a config. Model
// parameters are addressed as "param.<name>".
var setters = map[string]func(c *config.Config, v float64){
	"r":             func(c *config.Config, v float64) { fill(c.Weights.R, v) },
	"q":             func(c *config.Config, v float64) { fill(c.Weights.Q, v) },
	"qf":            func(c *config.Config, v float64) { fill(c.Weights.Qf, v) },
	"knots":         func(c *config.Config, v float64) { c.Knots = int(math.Round(v)) },
	"dt":            func(c *config.Config, v float64) { c.Dt = v },
	"reg.initial":   func(c *config.Config, v float64) { c.Solver.Regularization.Initial = v },
	"reg.factor":    func(c *config.Config, v float64) { c.Solver.Regularization.Factor = v },
	"ls.lower":      func(c *config.Config, v float64) { c.Solver.LineSearch.Lower = v },
	"ls.upper":      func(c *config.Config, v float64) { c.Solver.LineSearch.Upper = v },
	"penalty.init":  func(c *config.Config, v float64) { c.Solver.Constraints.PenaltyInitial = v },
	"penalty.scale":  func(c *config.Config, v float64) { c.Solver.Constraints.PenaltyScale = v },
}

func fill(dst []float64, v float64) {
	for i := range dst {
		dst[i] = v
	}
}

// Apply sets one named parameter on cfg.
func Apply(cfg *config.Config, name string, v float64) error {
	if p, ok := strings.CutPrefix(name, "param."); ok {
		if cfg.Params == nil {
			cfg.Params = make(map[string]float64)
		}
		cfg.Params[p] = v
		return nil
	}
	set, ok := setters[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParam, name)
	}
	set(cfg, v)
	return nil
}

func ParamNames() []string {
	names := make([]string, 0, len(setters)+1)
	for name := range setters {
		names = append(names, name)
	}
	names = append(names, "param.<name>")
	sort.Strings(names)
	return names
}

// Objective scores a solve; lower is better.
type Objective func(cfg *config.Config, res *solver.Result) float64

var Objectives = map[string]Objective{
	"cost": func(_ *config.Config, res *solver.Result) float64 { return res.Cost },
	"iterations": func(_ *config.Config, res *solver.Result) float64 {
		return float64(res.Iterations)
	},
	"terminal_error": func(cfg *config.Config, res *solver.Result) float64 {
		X := res.Trajectory.X
		return floats.Distance(X[len(X)-1], cfg.Target, 2)
	},
	"violation": func(_ *config.Config, res *solver.Result) float64 { return res.Violation },
}

// Point is one evaluated grid cell.
type Point struct {
	Params    map[string]float64
	Score     float64
	Converged bool
	Err       error
}

// Key renders the parameters in name order.
func (p Point) Key() string {
	names := make([]string, 0, len(p.Params))
	for name := range p.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + strconv.FormatFloat(p.Params[name], 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) == 0 || len(params) != len(ranges) {
		return nil, fmt.Errorf("optim: %d parameters for %d ranges", len(params), len(ranges))
	}
	scratch := config.DefaultConfig()
	for i, name := range params {
		if len(ranges[i]) == 0 {
			return nil, fmt.Errorf("optim: empty range for %s", name)
		}
		if err := Apply(scratch, name, ranges[i][0]); err != nil {
			return nil, err
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// ParseRange reads "name=v1,v2,..." into a parameter and its values.
func ParseRange(s string) (string, []float64, error) {
	name, list, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("optim: expected name=v1,v2,... got %q", s)
	}
	var values []float64
	for _, f := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return "", nil, fmt.Errorf("optim: %s: %w", name, err)
		}
		values = append(values, v)
	}
	return name, values, nil
}

// Points enumerates the grid.
func (g *GridSearch) Points() []map[string]float64 {
	var out []map[string]float64
	g.searchRecursive(0, make(map[string]float64), &out)
	return out
}

func (g *GridSearch) searchRecursive(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		*out = append(*out, current)
		return
	}
	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		next := make(map[string]float64, len(current)+1)
		for k, v := range current {
			next[k] = v
		}
		next[paramName] = val
		g.searchRecursive(depth+1, next, out)
	}
}

// Search solves base at every grid point concurrently and scores the
// results. Points are returned in grid order; best is the lowest
// converged score, or nil if nothing converged.
func (g *GridSearch) Search(ctx context.Context, log *zap.Logger, base *config.Config, objective Objective) ([]Point, *Point, error) {
	grid := g.Points()
	points := make([]Point, len(grid))
	cfgs := make([]*config.Config, len(grid))
	var jobs []solver.Job
	index := make(map[string]int)

	for i, params := range grid {
		points[i] = Point{Params: params, Score: math.Inf(1)}
		cfg := base.Clone()
		for _, name := range g.paramNames {
			if err := Apply(cfg, name, params[name]); err != nil {
				return nil, nil, err
			}
		}
		cfgs[i] = cfg
		opts, err := cfg.Options()
		if err != nil {
			points[i].Err = err
			continue
		}
		prob, err := cfg.Problem()
		if err != nil {
			points[i].Err = err
			continue
		}
		key := points[i].Key()
		index[key] = i
		jobs = append(jobs, solver.Job{Name: key, Problem: prob, Options: opts})
	}

	for _, o := range solver.Batch(ctx, log, jobs) {
		i := index[o.Name]
		points[i].Err = o.Err
		if o.Result == nil {
			continue
		}
		points[i].Converged = o.Result.Converged
		points[i].Score = objective(cfgs[i], o.Result)
	}
	if err := ctx.Err(); err != nil {
		return points, nil, err
	}

	var best *Point
	for i := range points {
		p := &points[i]
		if p.Err != nil || !p.Converged {
			continue
		}
		if best == nil || p.Score < best.Score {
			best = p
		}
	}
	return points, best, nil
}
