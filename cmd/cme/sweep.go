package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cme-xyz/go-cme/sensitivity"
)

func runSweep(cmd *cobra.Command, args []string) error {
	m, err := loadModel(args[0])
	if err != nil {
		return err
	}
	if reaction == "" {
		return fmt.Errorf("--reaction required")
	}
	if species == "" {
		return fmt.Errorf("--species required")
	}
	sp := m.SpeciesIndex(species)
	if sp < 0 {
		return fmt.Errorf("unknown species %q", species)
	}
	rxn := -1
	for i, r := range m.Reactions {
		if r.Name == reaction {
			rxn = i
		}
	}
	if rxn < 0 {
		return fmt.Errorf("unknown reaction %q", reaction)
	}

	analyzer := sensitivity.NewAnalyzer(m, []float64{0, timeEnd},
		sensitivity.FinalMeanScorer(sp))
	result, err := analyzer.SweepRateRange(context.Background(), rxn, sweepMin, sweepMax, steps)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	fmt.Printf("sweep of %s, scoring final mean of %s at t=%g\n", reaction, species, timeEnd)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RATE\tSCORE")
	for i, v := range result.Values {
		fmt.Fprintf(w, "%.6g\t%.6g\n", v, result.Scores[i])
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("best: rate=%.6g score=%.6g\n", result.Best.Value, result.Best.Score)
	return nil
}
