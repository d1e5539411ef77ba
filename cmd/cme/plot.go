package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cme-xyz/go-cme/plotter"
)

func runPlot(cmd *cobra.Command, args []string) error {
	m, err := loadModel(args[0])
	if err != nil {
		return err
	}
	s, _, err := buildSolver(m)
	if err != nil {
		return err
	}
	points, err := s.Solve(context.Background(), timeGrid())
	if err != nil {
		return fmt.Errorf("solve: %w", err)
	}

	var svg string
	if species != "" {
		sp := m.SpeciesIndex(species)
		if sp < 0 {
			return fmt.Errorf("unknown species %q", species)
		}
		svg = plotter.PlotMarginal(points[len(points)-1].Dist, sp, species, 800, 600)
	} else {
		svg = plotter.PlotMeans(points, m.Species, 800, 600, m.Name)
	}

	if output == "" {
		fmt.Println(svg)
		return nil
	}
	if err := os.WriteFile(output, []byte(svg), 0644); err != nil {
		return fmt.Errorf("writing plot: %w", err)
	}
	return nil
}
