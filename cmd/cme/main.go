// Command cme solves chemical master equations from declarative model
// files: probability evolution over a truncated state space, stationary
// distributions, and rate sensitivity sweeps.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	timeStart float64
	timeEnd   float64
	points    int
	method    string
	stiff     bool
	epsilon   float64
	maxStates int
	output    string
	csvOut    bool
	storePath string
	species   string
	reaction  string
	sweepMin  float64
	sweepMax  float64
	steps     int
	modelName string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cme",
		Short: "chemical master equation solver",
	}
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "SQLite run store path")

	solveCmd := &cobra.Command{
		Use:   "solve [model.json|model.yaml]",
		Short: "solve the master equation over a time grid",
		Args:  cobra.ExactArgs(1),
		RunE:  runSolve,
	}
	solveCmd.Flags().Float64Var(&timeStart, "start", 0.0, "start time")
	solveCmd.Flags().Float64Var(&timeEnd, "time", 10.0, "end time")
	solveCmd.Flags().IntVar(&points, "points", 101, "number of reported times")
	solveCmd.Flags().StringVar(&method, "method", "tsit5", "integration method (tsit5, rk45, bs32, rk4, heun, midpoint, euler)")
	solveCmd.Flags().BoolVar(&stiff, "stiff", false, "use the implicit TR-BDF2 scheme")
	solveCmd.Flags().Float64Var(&epsilon, "epsilon", 0, "adaptive FSP error budget per interval (0 disables expansion)")
	solveCmd.Flags().IntVar(&maxStates, "max-states", 0, "sparse enumeration cap (0 for default)")
	solveCmd.Flags().StringVar(&output, "output", "", "output file for results JSON")
	solveCmd.Flags().BoolVar(&csvOut, "csv", false, "write the time series as CSV to stdout")
	solveCmd.Flags().StringVar(&modelName, "name", "", "model name override")

	validateCmd := &cobra.Command{
		Use:   "validate [model.json|model.yaml]",
		Short: "check a model definition",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}

	stationaryCmd := &cobra.Command{
		Use:   "stationary [model.json|model.yaml]",
		Short: "compute the stationary distribution of a closed model",
		Args:  cobra.ExactArgs(1),
		RunE:  runStationary,
	}
	stationaryCmd.Flags().StringVar(&species, "species", "", "species to report a marginal for (default all means)")

	sweepCmd := &cobra.Command{
		Use:   "sweep [model.json|model.yaml]",
		Short: "sweep one reaction's rate constant",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	sweepCmd.Flags().Float64Var(&timeEnd, "time", 10.0, "end time")
	sweepCmd.Flags().StringVar(&reaction, "reaction", "", "reaction name to sweep (required)")
	sweepCmd.Flags().StringVar(&species, "species", "", "species whose final mean is scored (required)")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0.0, "sweep lower bound")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 1.0, "sweep upper bound")
	sweepCmd.Flags().IntVar(&steps, "steps", 11, "number of swept values")

	plotCmd := &cobra.Command{
		Use:   "plot [model.json|model.yaml]",
		Short: "solve and render an SVG figure",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlot,
	}
	plotCmd.Flags().Float64Var(&timeStart, "start", 0.0, "start time")
	plotCmd.Flags().Float64Var(&timeEnd, "time", 10.0, "end time")
	plotCmd.Flags().IntVar(&points, "points", 101, "number of reported times")
	plotCmd.Flags().StringVar(&method, "method", "tsit5", "integration method")
	plotCmd.Flags().StringVar(&species, "species", "", "plot the final marginal of one species instead of means")
	plotCmd.Flags().StringVar(&output, "output", "", "output SVG file (default stdout)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  runList,
	}
	listCmd.Flags().StringVar(&modelName, "name", "", "filter by model name")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a stored run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}

	rootCmd.AddCommand(solveCmd, validateCmd, stationaryCmd, sweepCmd, plotCmd, listCmd, exportCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
