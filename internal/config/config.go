package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/san-kum/trajopt/internal/ddp"
	"github.com/san-kum/trajopt/internal/dynamo"
	"github.com/san-kum/trajopt/internal/integrators"
	"github.com/san-kum/trajopt/internal/physics"
	"github.com/san-kum/trajopt/internal/solver"
	"gopkg.in/yaml.v3"
)

const (
	DefaultKnots         = 51
	DefaultDt            = 0.05
	DefaultMaxIterations = 100
	DefaultSimDt         = 0.005
)

type Config struct {
	Model      string             `yaml:"model"`
	Integrator string             `yaml:"integrator"`
	Knots      int                `yaml:"knots"`
	Dt         float64            `yaml:"dt"`
	Initial    []float64          `yaml:"initial"`
	Target     []float64          `yaml:"target"`
	Params     map[string]float64 `yaml:"params,omitempty"`
	Weights    WeightsConfig      `yaml:"weights"`
	Bounds     *BoundsConfig      `yaml:"bounds,omitempty"`
	Goal       bool               `yaml:"goal"`
	Solver     SolverConfig       `yaml:"solver"`
	Simulate   SimulateConfig     `yaml:"simulate"`
}

// WeightsConfig holds the diagonals of Q, R and Qf.
type WeightsConfig struct {
	Q  []float64 `yaml:"q"`
	R  []float64 `yaml:"r"`
	Qf []float64 `yaml:"qf"`
}

type BoundsConfig struct {
	Lower []float64 `yaml:"lower"`
	Upper []float64 `yaml:"upper"`
}

type SolverConfig struct {
	Pass              string               `yaml:"pass"`
	MaxIterations     int                  `yaml:"max_iterations"`
	MaxRestarts       int                  `yaml:"max_restarts"`
	GradientTolerance float64              `yaml:"gradient_tolerance"`
	CostTolerance     float64              `yaml:"cost_tolerance"`
	Regularization    RegularizationConfig `yaml:"regularization"`
	LineSearch        LineSearchConfig     `yaml:"line_search"`
	Constraints       ConstraintConfig     `yaml:"constraints"`
}

type RegularizationConfig struct {
	Mode    string  `yaml:"mode"`
	Initial float64 `yaml:"initial"`
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
	Factor  float64 `yaml:"factor"`
}

type LineSearchConfig struct {
	Lower         float64 `yaml:"lower"`
	Upper         float64 `yaml:"upper"`
	MaxIterations int     `yaml:"max_iterations"`
}

type ConstraintConfig struct {
	MaxOuter       int     `yaml:"max_outer"`
	Tolerance      float64 `yaml:"tolerance"`
	PenaltyInitial float64 `yaml:"penalty_initial"`
	PenaltyScale   float64 `yaml:"penalty_scale"`
	PenaltyMax     float64 `yaml:"penalty_max"`
}

// SimulateConfig drives the closed-loop check of a solved policy. A zero
// duration simulates the solve horizon.
type SimulateConfig struct {
	Dt       float64 `yaml:"dt"`
	Duration float64 `yaml:"duration"`
	Runs     int     `yaml:"runs"`
	Sigma    float64 `yaml:"sigma"`
	Seed     uint64  `yaml:"seed"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:      "double_integrator",
		Integrator: "rk4",
		Knots:      DefaultKnots,
		Dt:         DefaultDt,
		Initial:    []float64{0, 0},
		Target:     []float64{1, 0},
		Weights: WeightsConfig{
			Q:  []float64{1, 1},
			R:  []float64{0.1},
			Qf: []float64{100, 100},
		},
		Solver: SolverConfig{
			Pass:              "dense",
			MaxIterations:     DefaultMaxIterations,
			MaxRestarts:       ddp.DefaultMaxRestarts,
			GradientTolerance: 1e-6,
			CostTolerance:     1e-9,
			Regularization: RegularizationConfig{
				Mode:   "control",
				Min:    1e-8,
				Max:    1e10,
				Factor: 1.6,
			},
			LineSearch: LineSearchConfig{Lower: 1e-4, Upper: 10, MaxIterations: 20},
			Constraints: ConstraintConfig{
				MaxOuter:       20,
				Tolerance:      1e-4,
				PenaltyInitial: 1,
				PenaltyScale:   10,
				PenaltyMax:     1e8,
			},
		},
		Simulate: SimulateConfig{Dt: DefaultSimDt, Runs: 1, Seed: 1},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Options converts the solver section.
func (c *Config) Options() (solver.Options, error) {
	s := c.Solver
	pass, err := solver.ParsePass(s.Pass)
	if err != nil {
		return solver.Options{}, err
	}
	mode, err := ddp.ParseMode(s.Regularization.Mode)
	if err != nil {
		return solver.Options{}, err
	}
	opts := solver.Options{
		Pass:          pass,
		MaxIterations: s.MaxIterations,
		MaxRestarts:   s.MaxRestarts,
		Regularization: ddp.RegularizerConfig{
			Mode:    mode,
			Initial: s.Regularization.Initial,
			Min:     s.Regularization.Min,
			Max:     s.Regularization.Max,
			Factor:  s.Regularization.Factor,
		},
		LineSearch: ddp.LineSearch{
			LowerBound:    s.LineSearch.Lower,
			UpperBound:    s.LineSearch.Upper,
			MaxIterations: s.LineSearch.MaxIterations,
		},
		GradientTolerance: s.GradientTolerance,
		CostTolerance:     s.CostTolerance,
		Constraints: solver.ConstraintOptions{
			MaxOuter:       s.Constraints.MaxOuter,
			Tolerance:      s.Constraints.Tolerance,
			PenaltyInitial: s.Constraints.PenaltyInitial,
			PenaltyScale:   s.Constraints.PenaltyScale,
			PenaltyMax:     s.Constraints.PenaltyMax,
		},
	}
	return opts, opts.Validate()
}

// System builds the model with the configured parameter overrides.
func (c *Config) System() (dynamo.System, error) {
	sys, err := physics.New(c.Model)
	if err != nil {
		return nil, err
	}
	if len(c.Params) == 0 {
		return sys, nil
	}
	cfg, ok := sys.(dynamo.Configurable)
	if !ok {
		return nil, fmt.Errorf("model %s has no parameters", c.Model)
	}
	names := make([]string, 0, len(c.Params))
	for name := range c.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := cfg.SetParam(name, c.Params[name]); err != nil {
			return nil, err
		}
	}
	return sys, nil
}

// Problem converts the problem section.
func (c *Config) Problem() (*solver.Problem, error) {
	sys, err := c.System()
	if err != nil {
		return nil, err
	}
	integ, err := integrators.New(c.Integrator)
	if err != nil {
		return nil, err
	}
	p := &solver.Problem{
		System:     sys,
		Integrator: integ,
		Weights: ddp.Weights{
			Q:      solver.Diagonal(c.Weights.Q),
			R:      solver.Diagonal(c.Weights.R),
			Qf:     solver.Diagonal(c.Weights.Qf),
			Target: dynamo.State(c.Target).Clone(),
		},
		Initial: dynamo.State(c.Initial).Clone(),
		Knots:   c.Knots,
		Dt:      c.Dt,
		Goal:    c.Goal,
	}
	if c.Bounds != nil {
		p.Bounds = &solver.Bounds{
			Lower: dynamo.Control(c.Bounds.Lower).Clone(),
			Upper: dynamo.Control(c.Bounds.Upper).Clone(),
		}
	}
	return p, nil
}

// Horizon is the time spanned by the solve.
func (c *Config) Horizon() float64 {
	return float64(c.Knots-1) * c.Dt
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Initial = append([]float64(nil), c.Initial...)
	out.Target = append([]float64(nil), c.Target...)
	out.Weights = WeightsConfig{
		Q:  append([]float64(nil), c.Weights.Q...),
		R:  append([]float64(nil), c.Weights.R...),
		Qf: append([]float64(nil), c.Weights.Qf...),
	}
	if c.Params != nil {
		out.Params = make(map[string]float64, len(c.Params))
		for k, v := range c.Params {
			out.Params[k] = v
		}
	}
	if c.Bounds != nil {
		out.Bounds = &BoundsConfig{
			Lower: append([]float64(nil), c.Bounds.Lower...),
			Upper: append([]float64(nil), c.Bounds.Upper...),
		}
	}
	return &out
}
