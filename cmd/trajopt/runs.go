package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/trajopt/internal/export"
	"github.com/san-kum/trajopt/internal/solver"
	"github.com/san-kum/trajopt/internal/storage"
	"github.com/san-kum/trajopt/internal/viz"
	"github.com/spf13/cobra"
)

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tPRESET\tTIME\tPASS\tKNOTS\tCOST\tITER\tCONVERGED")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%.6g\t%d\t%v\n",
			run.ID[:8],
			run.Model,
			run.Preset,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Pass,
			run.Knots,
			run.Cost,
			run.Iterations,
			run.Converged,
		)
	}

	return w.Flush()
}

// openRun resolves a run id prefix and loads its metadata.
func openRun(prefix string) (*storage.Store, *storage.RunMetadata, error) {
	st := storage.New(dataDir)
	id, err := st.Resolve(prefix)
	if err != nil {
		return nil, nil, err
	}
	meta, err := st.Load(id)
	if err != nil {
		return nil, nil, err
	}
	return st, meta, nil
}

func showRun(cmd *cobra.Command, args []string) error {
	st, meta, err := openRun(args[0])
	if err != nil {
		return err
	}
	tr, _, err := st.LoadTrajectory(meta.ID)
	if err != nil {
		return err
	}
	history, err := st.LoadHistory(meta.ID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "run:\t%s\n", meta.ID)
	fmt.Fprintf(w, "model:\t%s\n", meta.Model)
	if meta.Preset != "" {
		fmt.Fprintf(w, "preset:\t%s\n", meta.Preset)
	}
	fmt.Fprintf(w, "pass:\t%s (%s, %d knots, dt=%g)\n", meta.Pass, meta.Integrator, meta.Knots, meta.Dt)
	fmt.Fprintf(w, "cost:\t%.8g\n", meta.Cost)
	fmt.Fprintf(w, "iterations:\t%d\n", meta.Iterations)
	fmt.Fprintf(w, "converged:\t%v (%s)\n", meta.Converged, meta.Reason)
	if meta.Outer > 0 {
		fmt.Fprintf(w, "violation:\t%.3g after %d outer loops\n", meta.Violation, meta.Outer)
	}
	fmt.Fprintf(w, "elapsed:\t%.3fs\n", meta.Elapsed)
	for name, v := range meta.Metrics {
		fmt.Fprintf(w, "%s:\t%.6g\n", name, v)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	printCharts(&solver.Result{Trajectory: tr, History: history})
	return nil
}

func replayRun(cmd *cobra.Command, args []string) error {
	st, meta, err := openRun(args[0])
	if err != nil {
		return err
	}
	tr, times, err := st.LoadTrajectory(meta.ID)
	if err != nil {
		return err
	}
	model := viz.NewReplay(meta.Model, tr.X, tr.U, times, viz.GetTheme(theme))
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

func plotRun(cmd *cobra.Command, args []string) error {
	st, meta, err := openRun(args[0])
	if err != nil {
		return err
	}
	tr, _, err := st.LoadTrajectory(meta.ID)
	if err != nil {
		return err
	}
	history, err := st.LoadHistory(meta.ID)
	if err != nil {
		return err
	}

	dir := outDir
	if dir == "" {
		dir = filepath.Join(dataDir, meta.ID)
	}
	paths, err := export.Figures(dir, format, tr, meta.Dt, meta.Hold, history)
	for _, p := range paths {
		fmt.Println(p)
	}
	return err
}

func exportRun(cmd *cobra.Command, args []string) error {
	st, meta, err := openRun(args[0])
	if err != nil {
		return err
	}
	tr, times, err := st.LoadTrajectory(meta.ID)
	if err != nil {
		return err
	}
	history, err := st.LoadHistory(meta.ID)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if outDir != "" {
		f, err := os.Create(outDir)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return storage.ExportJSON(w, *meta, tr, times, history)
}
