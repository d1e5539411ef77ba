package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func runValidate(cmd *cobra.Command, args []string) error {
	m, err := loadModel(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("model: %s\n", m.Name)
	fmt.Printf("species: %v\n", m.Species)
	if m.Shape != nil {
		fmt.Printf("shape: %v\n", m.Shape)
	}
	if m.Initial != nil {
		fmt.Printf("initial: %v\n", m.Initial)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REACTION\tDELTA\tTIME-DEPENDENT")
	for _, r := range m.Reactions {
		fmt.Fprintf(w, "%s\t%v\t%v\n", r.Name, r.Delta, r.Coeff != nil)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	s, _, err := buildSolver(m)
	if err != nil {
		return err
	}
	fmt.Printf("states: %d\n", s.Space().Size())
	fmt.Printf("escape routes: %v\n", s.Generator().HasEscapeRoutes())
	fmt.Println("ok")
	return nil
}

func runStationary(cmd *cobra.Command, args []string) error {
	m, err := loadModel(args[0])
	if err != nil {
		return err
	}
	s, _, err := buildSolver(m)
	if err != nil {
		return err
	}

	dist, err := s.Stationary()
	if err != nil {
		return fmt.Errorf("stationary: %w", err)
	}

	if species != "" {
		sp := m.SpeciesIndex(species)
		if sp < 0 {
			return fmt.Errorf("unknown species %q", species)
		}
		fmt.Printf("marginal of %s:\n", species)
		for n, p := range dist.Marginal1D(sp) {
			fmt.Printf("  %d: %.6g\n", n, p)
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SPECIES\tMEAN\tSTDDEV")
	for sp, name := range m.Species {
		fmt.Fprintf(w, "%s\t%.6g\t%.6g\n", name, dist.Mean(sp), dist.StdDev(sp))
	}
	return w.Flush()
}
