package config

import (
	"math"
	"sort"
)

// Presets maps a model to named problem setups. Each preset edits a copy
// of DefaultConfig.
var Presets = map[string]map[string]func(c *Config){
	"double_integrator": {
		"move": func(c *Config) {},
		"bounded": func(c *Config) {
			c.Knots, c.Dt = 21, 0.1
			c.Bounds = &BoundsConfig{Lower: []float64{-1.5}, Upper: []float64{1.5}}
		},
		"goal": func(c *Config) {
			c.Weights.Qf = []float64{0, 0}
			c.Goal = true
		},
		"hold": func(c *Config) {
			c.Integrator = "rk3"
			c.Solver.Pass = "foh"
		},
	},
	"pendulum": {
		"settle": func(c *Config) {
			c.Model = "pendulum"
			c.Initial = []float64{0.5, 0}
			c.Target = []float64{0, 0}
			c.Weights.Qf = []float64{10, 10}
		},
		"swingup": func(c *Config) {
			c.Model = "pendulum"
			c.Knots, c.Dt = 101, 0.05
			c.Initial = []float64{0, 0}
			c.Target = []float64{math.Pi, 0}
			c.Weights = WeightsConfig{Q: []float64{0.1, 0.1}, R: []float64{0.01}, Qf: []float64{100, 100}}
		},
		"bounded_swingup": func(c *Config) {
			c.Model = "pendulum"
			c.Knots, c.Dt = 101, 0.05
			c.Initial = []float64{0, 0}
			c.Target = []float64{math.Pi, 0}
			c.Weights = WeightsConfig{Q: []float64{0.1, 0.1}, R: []float64{0.01}, Qf: []float64{100, 100}}
			c.Bounds = &BoundsConfig{Lower: []float64{-5}, Upper: []float64{5}}
			c.Solver.Pass = "sqrt"
		},
	},
	"cartpole": {
		"balance": func(c *Config) {
			c.Model = "cartpole"
			c.Knots, c.Dt = 41, 0.05
			c.Initial = []float64{0, 0, 0.1, 0}
			c.Target = []float64{0, 0, 0, 0}
			c.Weights = WeightsConfig{Q: []float64{1, 0.1, 10, 0.1}, R: []float64{0.01}, Qf: []float64{10, 1, 100, 1}}
		},
		"recover": func(c *Config) {
			c.Model = "cartpole"
			c.Knots, c.Dt = 61, 0.05
			c.Initial = []float64{0, 0, 0.5, 0}
			c.Target = []float64{0, 0, 0, 0}
			c.Weights = WeightsConfig{Q: []float64{1, 0.1, 10, 0.1}, R: []float64{0.01}, Qf: []float64{10, 1, 100, 1}}
			c.Solver.Pass = "sqrt"
			c.Solver.Regularization.Mode = "state"
		},
	},
}

// GetPreset returns a fresh configuration for a named preset, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	apply, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Model = model
	apply(cfg)
	return cfg
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
