// Package model implements the reaction-network data structures for the
// chemical master equation. A model consists of discrete-count species,
// an initial state, and reactions defined by integer stoichiometric change
// vectors and propensity functions.
package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidModel is returned when a model fails construction-time validation.
var ErrInvalidModel = errors.New("invalid model")

// State is a copy-number vector, one non-negative component per species.
type State []int

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := make(State, len(s))
	copy(out, s)
	return out
}

// Apply returns the state shifted by delta. The second return value is
// false if any resulting component is negative.
func (s State) Apply(delta []int) (State, bool) {
	out := make(State, len(s))
	for i := range s {
		out[i] = s[i] + delta[i]
		if out[i] < 0 {
			return nil, false
		}
	}
	return out, true
}

// Key returns a deterministic map key for the state.
func (s State) Key() string {
	var b strings.Builder
	for i, v := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}

// Equal reports whether two states have identical components.
func (s State) Equal(other State) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// String returns a human-readable representation.
func (s State) String() string {
	return "(" + s.Key() + ")"
}

// TimeCoeff scales a reaction's propensity by a time-dependent factor.
// A nil TimeCoeff means the constant factor 1.
type TimeCoeff func(t float64) float64

// Reaction is a single reaction channel: a stoichiometric change vector
// and a propensity giving the firing rate as a function of state.
type Reaction struct {
	Name string
	// Delta is the integer change applied to the state when the
	// reaction fires. Components may be negative.
	Delta []int
	// Rate computes the state-dependent propensity.
	Rate Propensity
	// Coeff optionally scales the propensity over time.
	Coeff TimeCoeff
}

// Model is a complete reaction-network definition.
type Model struct {
	Name    string
	Species []string
	// Shape gives per-species exclusive upper bounds for a dense
	// rectangular domain. Optional; sparse enumeration does not use it.
	Shape     []int
	Initial   State
	Reactions []Reaction
}

// Validate checks the model for structural errors. All failures wrap
// ErrInvalidModel and are fatal: the model must be fixed and rebuilt.
func (m *Model) Validate() error {
	n := len(m.Species)
	if n == 0 {
		return fmt.Errorf("%w: no species declared", ErrInvalidModel)
	}
	if len(m.Reactions) == 0 {
		return fmt.Errorf("%w: no reactions declared", ErrInvalidModel)
	}
	if m.Shape != nil {
		if len(m.Shape) != n {
			return fmt.Errorf("%w: shape has %d entries for %d species",
				ErrInvalidModel, len(m.Shape), n)
		}
		for i, b := range m.Shape {
			if b <= 0 {
				return fmt.Errorf("%w: shape[%d] = %d, bounds must be positive",
					ErrInvalidModel, i, b)
			}
		}
	}
	if m.Initial != nil {
		if len(m.Initial) != n {
			return fmt.Errorf("%w: initial state has %d components for %d species",
				ErrInvalidModel, len(m.Initial), n)
		}
		for i, v := range m.Initial {
			if v < 0 {
				return fmt.Errorf("%w: initial state component %d is negative",
					ErrInvalidModel, i)
			}
		}
	}
	for r, rxn := range m.Reactions {
		if len(rxn.Delta) != n {
			return fmt.Errorf("%w: reaction %d (%s) delta has %d components for %d species",
				ErrInvalidModel, r, rxn.Name, len(rxn.Delta), n)
		}
		if rxn.Rate == nil {
			return fmt.Errorf("%w: reaction %d (%s) has no propensity",
				ErrInvalidModel, r, rxn.Name)
		}
	}
	return nil
}

// SpeciesIndex returns the index of the named species, or -1.
func (m *Model) SpeciesIndex(name string) int {
	for i, s := range m.Species {
		if s == name {
			return i
		}
	}
	return -1
}
