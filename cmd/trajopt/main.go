package main

import (
	"fmt"
	"os"

	"github.com/san-kum/trajopt/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	dataDir    string
	verbose    bool
	configFile string
	preset     string
	theme      string
	// solver overrides
	knots      int
	dt         float64
	pass       string
	integrator string
	iterations int
	regMode    string
	// closed-loop check
	simulate   bool
	controller string
	runs       int
	sigma      float64
	// output
	noSave    bool
	showPlots bool
	outDir    string
	format    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "trajopt",
		Short:         "trajectory optimization with iterative LQR",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".trajopt", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log solver iterations")
	rootCmd.PersistentFlags().StringVar(&theme, "theme", "cyberpunk", "color theme")

	solveCmd := &cobra.Command{
		Use:   "solve [model]",
		Short: "solve a trajectory optimization problem",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSolve,
	}
	problemFlags(solveCmd)
	solveCmd.Flags().BoolVar(&showPlots, "plot", false, "print trajectory charts")

	liveCmd := &cobra.Command{
		Use:   "live [model]",
		Short: "solve with a live progress view",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	problemFlags(liveCmd)

	compareCmd := &cobra.Command{
		Use:   "compare [model]",
		Short: "solve one problem with every backward pass",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCompare,
	}
	problemFlags(compareCmd)

	tuneCmd := &cobra.Command{
		Use:   "tune [model]",
		Short: "grid search over problem and solver settings",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTune,
	}
	problemFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&gridFlags, "grid", nil, "parameter values as name=v1,v2,... (repeatable)")
	tuneCmd.Flags().StringVar(&objective, "objective", "cost", "score to minimize (cost, iterations, terminal_error, violation)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show a run with its convergence and trajectory",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	replayCmd := &cobra.Command{
		Use:   "replay [run_id]",
		Short: "animate a stored trajectory",
		Args:  cobra.ExactArgs(1),
		RunE:  replayRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "render run figures to image files",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default: the run directory)")
	plotCmd.Flags().StringVar(&format, "format", "png", "image format (png, svg, pdf)")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outDir, "out", "o", "", "output file (default: stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for model: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	rootCmd.AddCommand(solveCmd, liveCmd, compareCmd, tuneCmd, listCmd, showCmd, replayCmd, plotCmd, exportCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func problemFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().IntVar(&knots, "knots", config.DefaultKnots, "number of knot points")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "knot spacing")
	cmd.Flags().StringVar(&pass, "pass", "dense", "backward pass (dense, sqrt, foh)")
	cmd.Flags().StringVar(&integrator, "integrator", "rk4", "integrator (euler, rk3, rk4)")
	cmd.Flags().IntVar(&iterations, "iterations", config.DefaultMaxIterations, "maximum iterations")
	cmd.Flags().StringVar(&regMode, "reg", "control", "regularization mode (state, control)")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	cmd.Flags().BoolVar(&simulate, "simulate", false, "check the policy in closed loop")
	cmd.Flags().StringVar(&controller, "controller", "tracking", "closed-loop controller (tracking, open_loop, none)")
	cmd.Flags().IntVar(&runs, "runs", 1, "closed-loop runs")
	cmd.Flags().Float64Var(&sigma, "sigma", 0, "initial state noise of the extra runs")
}

// newLogger writes development-style logs to stderr. Without --verbose
// only warnings get through.
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// loadConfig resolves the problem for a command: a config file, else a
// preset, else the defaults of the model. Flags set on the command line
// override either.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	model := ""
	if len(args) > 0 {
		model = args[0]
	}

	var cfg *config.Config
	switch {
	case configFile != "":
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if model != "" && model != loaded.Model {
			return nil, fmt.Errorf("config is for %s, not %s", loaded.Model, model)
		}
		cfg = loaded
	case preset != "":
		if model == "" {
			return nil, fmt.Errorf("--preset needs a model")
		}
		cfg = config.GetPreset(model, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(model))
		}
	default:
		cfg = config.DefaultConfig()
		if model != "" && model != cfg.Model {
			return nil, fmt.Errorf("model %s needs --preset or --config (presets: %v)", model, config.ListPresets(model))
		}
	}

	if cmd.Flags().Changed("knots") {
		cfg.Knots = knots
	}
	if cmd.Flags().Changed("dt") {
		cfg.Dt = dt
	}
	if cmd.Flags().Changed("pass") {
		cfg.Solver.Pass = pass
	}
	if cmd.Flags().Changed("integrator") {
		cfg.Integrator = integrator
	}
	if cmd.Flags().Changed("iterations") {
		cfg.Solver.MaxIterations = iterations
	}
	if cmd.Flags().Changed("reg") {
		cfg.Solver.Regularization.Mode = regMode
	}
	if cmd.Flags().Changed("runs") {
		cfg.Simulate.Runs = runs
	}
	if cmd.Flags().Changed("sigma") {
		cfg.Simulate.Sigma = sigma
	}
	return cfg, nil
}
