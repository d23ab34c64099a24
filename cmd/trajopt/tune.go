package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/san-kum/trajopt/internal/optim"
	"github.com/spf13/cobra"
)

var (
	gridFlags []string
	objective string
)

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if len(gridFlags) == 0 {
		return fmt.Errorf("at least one --grid name=v1,v2,... is required (names: %s)", strings.Join(optim.ParamNames(), ", "))
	}
	obj, ok := optim.Objectives[objective]
	if !ok {
		names := make([]string, 0, len(optim.Objectives))
		for name := range optim.Objectives {
			names = append(names, name)
		}
		sort.Strings(names)
		return fmt.Errorf("unknown objective: %s (available: %v)", objective, names)
	}

	var params []string
	var ranges [][]float64
	for _, g := range gridFlags {
		name, values, err := optim.ParseRange(g)
		if err != nil {
			return err
		}
		params = append(params, name)
		ranges = append(ranges, values)
	}
	search, err := optim.NewGridSearch(params, ranges)
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

	points, best, err := search.Search(ctx, log, cfg, obj)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "PARAMS\t%s\tCONVERGED\n", strings.ToUpper(objective))
	for _, p := range points {
		if p.Err != nil {
			fmt.Fprintf(w, "%s\t-\t%v\n", p.Key(), p.Err)
			continue
		}
		fmt.Fprintf(w, "%s\t%.6g\t%v\n", p.Key(), p.Score, p.Converged)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if best == nil {
		fmt.Println("\nno grid point converged")
		return nil
	}
	fmt.Printf("\nbest: %s (%s=%.6g)\n", best.Key(), objective, best.Score)
	return nil
}
