package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/trajopt/internal/experiment"
	"github.com/san-kum/trajopt/internal/solver"
	"github.com/san-kum/trajopt/internal/storage"
	"github.com/san-kum/trajopt/internal/viz"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runSolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	exp := experiment.New(cfg, preset, log)
	fmt.Printf("solving %s\n", exp)
	res, err := exp.Solve(ctx)
	if res == nil {
		return err
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "solve stopped early: %v\n", err)
	}

	printResult(res)
	if showPlots {
		printCharts(res)
	}
	return finish(ctx, exp, res)
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stats := make(chan solver.Stats, 64)
	done := make(chan viz.DoneMsg, 1)
	finished := make(chan struct{})
	var out viz.DoneMsg

	exp := experiment.New(cfg, preset, log)
	exp.AddObserver(viz.Feed(ctx, stats))
	go func() {
		res, err := exp.Solve(ctx)
		close(stats)
		out = viz.DoneMsg{Result: res, Err: err}
		close(finished)
		done <- out
	}()

	model := viz.NewProgress(exp.String(), cfg.Solver.MaxIterations, stats, done, cancel, viz.GetTheme(theme))
	final, uiErr := tea.NewProgram(model).Run()
	// the solve stops with the program, whatever ended it
	cancel()
	<-finished
	if uiErr != nil {
		return uiErr
	}
	if final.(viz.Progress).Cancelled() {
		fmt.Fprintln(os.Stderr, "solve cancelled")
	}

	res, err := out.Result, out.Err
	if res == nil {
		if err == nil {
			err = errors.New("solve produced no result")
		}
		return err
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "solve stopped early: %v\n", err)
	}

	printResult(res)
	return finish(context.Background(), exp, res)
}

// finish runs the optional closed-loop check and stores the run.
func finish(ctx context.Context, exp *experiment.Experiment, res *solver.Result) error {
	run := exp.Record(res)
	if simulate {
		results, err := exp.Simulate(ctx, res, controller)
		if err != nil {
			return err
		}
		for _, r := range results {
			for _, e := range r.Errors {
				fmt.Fprintf(os.Stderr, "simulation: %v\n", e)
			}
		}
		run.Meta.Metrics = experiment.Summary(results)
		printMetrics(controller, len(results), run.Meta.Metrics)
	}
	if noSave {
		return nil
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	id, err := st.Save(run)
	if err != nil {
		return err
	}
	fmt.Printf("run saved: %s\n", id)
	return nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	var jobs []solver.Job
	for _, p := range []solver.Pass{solver.DensePass, solver.SquareRootPass, solver.HoldPass} {
		c := *cfg
		c.Solver.Pass = p.String()
		opts, err := c.Options()
		if err != nil {
			return err
		}
		prob, err := c.Problem()
		if err != nil {
			return err
		}
		jobs = append(jobs, solver.Job{Name: p.String(), Problem: prob, Options: opts})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	outcomes := solver.Batch(ctx, log.With(zap.String("model", cfg.Model)), jobs)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PASS\tCOST\tITER\tOUTER\tCONVERGED\tREASON\tVIOLATION\tTIME")
	for _, o := range outcomes {
		if o.Result == nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t%v\t-\t-\n", o.Name, o.Err)
			continue
		}
		r := o.Result
		elapsed := "-"
		if n := len(r.History); n > 0 {
			elapsed = r.History[n-1].Elapsed.String()
		}
		fmt.Fprintf(w, "%s\t%.6g\t%d\t%d\t%v\t%s\t%.2g\t%s\n",
			o.Name, r.Cost, r.Iterations, r.Outer, r.Converged, r.Reason, r.Violation, elapsed)
	}
	return w.Flush()
}

func printResult(res *solver.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "cost:\t%.8g\n", res.Cost)
	fmt.Fprintf(w, "iterations:\t%d\n", res.Iterations)
	if res.Outer > 0 {
		fmt.Fprintf(w, "outer loops:\t%d\n", res.Outer)
		fmt.Fprintf(w, "violation:\t%.3g\n", res.Violation)
	}
	fmt.Fprintf(w, "converged:\t%v (%s)\n", res.Converged, res.Reason)
	if n := len(res.Trajectory.X); n > 0 {
		fmt.Fprintf(w, "final state:\t%.4f\n", []float64(res.Trajectory.X[n-1]))
	}
	w.Flush()
}

func printMetrics(ctrl string, n int, metrics map[string]float64) {
	fmt.Printf("\nclosed loop (%s, %d runs):\n", ctrl, n)
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(w, "  %s:\t%.6g\n", name, metrics[name])
	}
	w.Flush()
}

func printCharts(res *solver.Result) {
	if chart := viz.CostChart(res.History, 70, 10); chart != "" {
		fmt.Println()
		fmt.Println(chart)
	}
	for _, controls := range []bool{false, true} {
		if chart := viz.TrajectoryChart(res.Trajectory, controls, 70, 10); chart != "" {
			fmt.Println()
			fmt.Println(chart)
		}
	}
	fmt.Println()
}
