// Package results defines the structured output format for master
// equation solves: per-time summary statistics, the FSP error bound
// series, and final marginal distributions, with JSON/CSV export and a
// SQLite-backed run store.
package results

import "time"

const SchemaVersion = "1.0.0"

// Run contains the complete recorded output of one solve.
type Run struct {
	Version  string   `json:"version"`
	ID       string   `json:"id"`
	Metadata Metadata `json:"metadata"`
	Model    Model    `json:"model"`
	Series   Series   `json:"series"`
}

// Metadata contains solve execution information.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	Method      string    `json:"method"`
	Status      string    `json:"status"` // success, error
	Error       string    `json:"error,omitempty"`
	ComputeTime float64   `json:"computeTime"` // seconds
	States      int       `json:"states"`
}

// Model summarizes the reaction network that was solved.
type Model struct {
	Name      string   `json:"name,omitempty"`
	Species   []string `json:"species"`
	Reactions []string `json:"reactions"`
	Shape     []int    `json:"shape,omitempty"`
	Initial   []int    `json:"initial,omitempty"`
}

// Series holds the per-time statistics of a solve.
type Series struct {
	Times []float64 `json:"times"`
	// Mean and Variance are keyed by species name.
	Mean     map[string][]float64 `json:"mean"`
	Variance map[string][]float64 `json:"variance"`
	// Sink is the FSP truncation error bound at each time.
	Sink []float64 `json:"sink"`
	// FinalMarginals holds the last reported marginal distribution per
	// species, indexed by copy number.
	FinalMarginals map[string][]float64 `json:"finalMarginals,omitempty"`
}
