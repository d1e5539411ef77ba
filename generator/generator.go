// Package generator builds the sparse transition-rate operator of the
// chemical master equation restricted to an enumerated state space.
// Transitions that leave the truncated set are routed to per-state escape
// weights, later absorbed by the FSP sink. The operator is stored as one
// term per reaction so that time-dependent coefficients can be re-applied
// at every evaluation time.
package generator

import (
	"errors"
	"fmt"
	"math"

	"github.com/cme-xyz/go-cme/model"
	"github.com/cme-xyz/go-cme/statespace"
)

// ErrInvalidPropensity is returned when a propensity evaluates to a
// negative or non-finite value for an enumerated state.
var ErrInvalidPropensity = errors.New("invalid propensity")

// PropensityError reports the offending reaction and state.
type PropensityError struct {
	Reaction int
	State    model.State
	Value    float64
}

func (e *PropensityError) Error() string {
	return fmt.Sprintf("invalid propensity: reaction %d at state %v evaluated to %v",
		e.Reaction, e.State, e.Value)
}

// Unwrap makes the error match ErrInvalidPropensity under errors.Is.
func (e *PropensityError) Unwrap() error { return ErrInvalidPropensity }

// Config carries numeric policy for generator construction.
type Config struct {
	// DropTol drops entries with absolute value below this tolerance
	// from the sparse representation. Dropped entries are removed from
	// both the off-diagonal and the matching diagonal loss, so the
	// zero-column-sum invariant holds exactly in floating point.
	DropTol float64
}

// DefaultConfig returns the default numeric policy.
func DefaultConfig() Config {
	return Config{DropTol: 0}
}

// term holds the pre-evaluated transition data for one reaction: for each
// source state, the destination offset and base rate. The destination is
// escapeTarget for transitions leaving the state space, and the rate is
// zero for states where the reaction cannot fire.
type term struct {
	dest []int32
	rate []float64
}

const (
	noTarget     int32 = -1 // reaction cannot fire from this state
	escapeTarget int32 = -2 // successor lies outside the truncated set
)

// Generator is the CME rate operator over an enumerated state space.
// Columns sum to zero: off-diagonal entry (i -> j) carries the propensity
// of the reaction mapping state i to state j, escape weight flows to the
// sink, and the diagonal is the negative sum of both. Built generators
// are read-only and safe to share across concurrent solves.
type Generator struct {
	space statespace.StateSpace
	net   *model.Network
	terms []term
	nnz   int
}

// Build evaluates every (state, reaction) pair over the space and
// assembles the per-reaction transition terms. Propensities are evaluated
// without time coefficients; coefficients are applied per evaluation in
// Derivative. A reaction that would drive any species count negative is
// treated as rate zero regardless of the propensity value, so propensity
// authors need not guard the boundary themselves.
func Build(space statespace.StateSpace, net *model.Network, cfg Config) (*Generator, error) {
	size := space.Size()
	g := &Generator{
		space: space,
		net:   net,
		terms: make([]term, net.NumReactions()),
	}

	for r := range g.terms {
		g.terms[r] = term{
			dest: make([]int32, size),
			rate: make([]float64, size),
		}
	}

	for i := 0; i < size; i++ {
		s := space.StateOf(i)
		for r := 0; r < net.NumReactions(); r++ {
			tm := &g.terms[r]
			succ, ok := s.Apply(net.Delta(r))
			if !ok {
				tm.dest[i] = noTarget
				continue
			}
			a := net.Reaction(r).Rate.Rate(s)
			if a < 0 || math.IsNaN(a) || math.IsInf(a, 0) {
				return nil, &PropensityError{Reaction: r, State: s.Clone(), Value: a}
			}
			if a <= cfg.DropTol {
				tm.dest[i] = noTarget
				continue
			}
			if j, in := space.IndexOf(succ); in {
				tm.dest[i] = int32(j)
			} else {
				tm.dest[i] = escapeTarget
			}
			tm.rate[i] = a
			g.nnz++
		}
	}

	return g, nil
}

// Space returns the state space the generator was built over.
func (g *Generator) Space() statespace.StateSpace { return g.space }

// Network returns the reaction network.
func (g *Generator) Network() *model.Network { return g.net }

// Size returns the dimension of the truncated operator (without sink).
func (g *Generator) Size() int { return g.space.Size() }

// NNZ returns the number of stored off-diagonal entries.
func (g *Generator) NNZ() int { return g.nnz }

// Derivative computes dp/dt = A(t)p over the truncated set and returns
// the total probability flux escaping into the sink. dp must have length
// Size and is overwritten. Time coefficients are evaluated at t on every
// call, never cached.
func (g *Generator) Derivative(t float64, p, dp []float64) (escape float64) {
	for i := range dp {
		dp[i] = 0
	}
	for r := range g.terms {
		coeff := g.net.Coeff(r, t)
		if coeff == 0 {
			continue
		}
		tm := &g.terms[r]
		for i, dest := range tm.dest {
			if dest == noTarget {
				continue
			}
			flux := coeff * tm.rate[i] * p[i]
			dp[i] -= flux
			if dest == escapeTarget {
				escape += flux
			} else {
				dp[dest] += flux
			}
		}
	}
	return escape
}

// EscapeRate returns the summed escape-route weight of state i at time t,
// the rate at which probability at i leaks out of the truncated set.
func (g *Generator) EscapeRate(i int, t float64) float64 {
	total := 0.0
	for r := range g.terms {
		if g.terms[r].dest[i] == escapeTarget {
			total += g.net.Coeff(r, t) * g.terms[r].rate[i]
		}
	}
	return total
}

// HasEscapeRoutes reports whether any transition leaves the state space.
// A space closed under all reactions has none, and the FSP sink then
// provably stays at zero.
func (g *Generator) HasEscapeRoutes() bool {
	for r := range g.terms {
		for _, dest := range g.terms[r].dest {
			if dest == escapeTarget {
				return true
			}
		}
	}
	return false
}

// Dense materializes the operator, including the sink row and column, as
// a dense matrix in row-major order. Entry [j][i] is the rate from state
// i to state j; the last row collects escape weights and the last column
// is zero (the sink is absorbing). Intended for direct stationary solves
// and tests on small spaces.
func (g *Generator) Dense(t float64) [][]float64 {
	n := g.Size()
	a := make([][]float64, n+1)
	for j := range a {
		a[j] = make([]float64, n+1)
	}
	for r := range g.terms {
		coeff := g.net.Coeff(r, t)
		tm := &g.terms[r]
		for i, dest := range tm.dest {
			if dest == noTarget {
				continue
			}
			v := coeff * tm.rate[i]
			a[i][i] -= v
			if dest == escapeTarget {
				a[n][i] += v
			} else {
				a[dest][i] += v
			}
		}
	}
	return a
}
