// Package fsp implements the finite state projection truncation: the
// generator is augmented with one absorbing sink state that accumulates
// all probability mass escaping the truncated state space. The sink
// probability is the standard FSP bound on truncation error, and an
// adaptive solver can expand the state space whenever the bound exceeds
// a per-step budget.
//
// The truncated set is assumed forward-closed except for the designated
// escape edges: once mass leaves through an escape route it never
// re-enters. Models with non-monotone truncation boundaries violate this
// precondition and are out of scope.
package fsp

import (
	"github.com/cme-xyz/go-cme/generator"
	"github.com/cme-xyz/go-cme/model"
	"github.com/cme-xyz/go-cme/statespace"
)

// Augmented is a generator extended with an absorbing sink dimension.
// The sink occupies the last offset of the solution vector. Its incoming
// entries are exactly the generator's escape-route weights and its
// outgoing rate is zero; probability only ever flows in.
type Augmented struct {
	gen *generator.Generator
}

// NewAugmented wraps a built generator.
func NewAugmented(gen *generator.Generator) *Augmented {
	return &Augmented{gen: gen}
}

// Generator returns the wrapped truncated generator.
func (a *Augmented) Generator() *generator.Generator { return a.gen }

// Dim returns the augmented dimension: state-space size plus the sink.
func (a *Augmented) Dim() int { return a.gen.Size() + 1 }

// SinkIndex returns the offset of the sink in the solution vector.
func (a *Augmented) SinkIndex() int { return a.gen.Size() }

// Derivative computes dy/dt over the augmented vector. y and dy have
// length Dim; the escape flux from the truncated set is routed to the
// sink component. Columns of the augmented operator sum to zero, so
// total probability is conserved exactly by the continuous dynamics.
func (a *Augmented) Derivative(t float64, y, dy []float64) {
	n := a.gen.Size()
	escape := a.gen.Derivative(t, y[:n], dy[:n])
	dy[n] = escape
}

// ErrorBound returns the sink probability of the augmented solution
// vector y: an upper bound on the total probability mass the true system
// holds outside the truncated set, valid for all earlier times.
func (a *Augmented) ErrorBound(y []float64) float64 {
	return y[a.SinkIndex()]
}

// Pack lays out a distribution over the truncated set plus a sink value
// as a single solution vector.
func (a *Augmented) Pack(p []float64, sink float64) []float64 {
	y := make([]float64, a.Dim())
	copy(y, p)
	y[a.SinkIndex()] = sink
	return y
}

// PointMass returns an augmented vector with all probability on the
// given state. The state must lie inside the truncated set.
func (a *Augmented) PointMass(s model.State) ([]float64, bool) {
	i, ok := a.gen.Space().IndexOf(s)
	if !ok {
		return nil, false
	}
	y := make([]float64, a.Dim())
	y[i] = 1
	return y, true
}

// Remap transfers an augmented vector onto a new, larger state space.
// Probability held by states present in both spaces is carried across by
// state identity; the sink value is preserved. Mass held by old states
// missing from the new space is silently lost, so expanders must only
// grow the space.
func Remap(y []float64, from, to statespace.StateSpace) []float64 {
	out := make([]float64, to.Size()+1)
	for i := 0; i < from.Size(); i++ {
		if j, ok := to.IndexOf(from.StateOf(i)); ok {
			out[j] = y[i]
		}
	}
	out[to.Size()] = y[from.Size()]
	return out
}
