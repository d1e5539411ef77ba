package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cme-xyz/go-cme/cme"
	"github.com/cme-xyz/go-cme/fsp"
	"github.com/cme-xyz/go-cme/model"
	"github.com/cme-xyz/go-cme/parser"
	"github.com/cme-xyz/go-cme/results"
	"github.com/cme-xyz/go-cme/solver"
)

func loadModel(path string) (*model.Model, error) {
	m, err := parser.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	if modelName != "" {
		m.Name = modelName
	}
	if m.Name == "" {
		base := filepath.Base(path)
		m.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return m, nil
}

func buildSolver(m *model.Model) (*cme.Solver, *cme.Options, error) {
	opts := cme.DefaultOptions()
	opts.Stiff = stiff
	if mth := solver.ByName(method); mth != nil {
		opts.Method = mth
	} else if method != "" {
		return nil, nil, fmt.Errorf("unknown method %q", method)
	}
	if maxStates > 0 {
		opts.MaxStates = maxStates
	}

	var s *cme.Solver
	var err error
	if m.Shape != nil {
		s, err = cme.New(m, opts)
	} else {
		s, err = cme.NewSparse(m, nil, opts)
	}
	return s, opts, err
}

func timeGrid() []float64 {
	grid := make([]float64, points)
	for i := range grid {
		grid[i] = timeStart + (timeEnd-timeStart)*float64(i)/float64(points-1)
	}
	return grid
}

func runSolve(cmd *cobra.Command, args []string) error {
	m, err := loadModel(args[0])
	if err != nil {
		return err
	}
	s, opts, err := buildSolver(m)
	if err != nil {
		return err
	}

	methodName := method
	if stiff {
		methodName = "trbdf2"
	}
	builder := results.NewBuilder(m, methodName)

	start := time.Now()
	var pts []cme.TimePoint
	if epsilon > 0 {
		expander := &fsp.ReachabilityExpander{
			Net:       s.Network(),
			Seeds:     []model.State{m.Initial},
			Bounds:    boundsOf(m, s),
			Pad:       1,
			MaxStates: opts.MaxStates,
		}
		pts, err = s.SolveAdaptive(context.Background(), timeGrid(), epsilon, expander)
	} else {
		pts, err = s.Solve(context.Background(), timeGrid())
	}
	elapsed := time.Since(start)
	if err != nil {
		return fmt.Errorf("solve: %w", err)
	}

	run := builder.AddPoints(pts).Build()

	if output != "" {
		if err := results.WriteJSON(run, output); err != nil {
			return err
		}
	}
	if csvOut {
		if err := results.WriteCSV(run, os.Stdout); err != nil {
			return err
		}
	}
	if storePath != "" {
		store, err := results.NewStore(storePath)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.SaveRun(run); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "  Run id: %s\n", run.ID)
	}

	final := pts[len(pts)-1]
	fmt.Fprintf(os.Stderr, "Solve complete\n")
	fmt.Fprintf(os.Stderr, "  Time: %g -> %g\n", timeStart, timeEnd)
	fmt.Fprintf(os.Stderr, "  States: %d\n", final.Dist.Space().Size())
	fmt.Fprintf(os.Stderr, "  Error bound: %.3e\n", final.Dist.Sink())
	fmt.Fprintf(os.Stderr, "  Compute time: %.3fs\n", elapsed.Seconds())
	return nil
}

// boundsOf derives expansion seed bounds from the model shape or, for
// sparse spaces, from the per-species maxima of the enumerated states.
func boundsOf(m *model.Model, s *cme.Solver) []int {
	if m.Shape != nil {
		return append([]int(nil), m.Shape...)
	}
	space := s.Space()
	bounds := make([]int, space.NumSpecies())
	for i := 0; i < space.Size(); i++ {
		st := space.StateOf(i)
		for k, v := range st {
			if v+1 > bounds[k] {
				bounds[k] = v + 1
			}
		}
	}
	return bounds
}
