// Package statespace enumerates the reachable states of a reaction network
// and assigns each state a stable offset in the probability vector.
// Two representations are provided: a dense rectangular domain with a
// closed-form mixed-radix index, and a sparse set discovered by forward
// reachability search.
package statespace

import (
	"errors"
	"fmt"

	"github.com/cme-xyz/go-cme/model"
)

// ErrUnboundedStateSpace is returned when sparse enumeration exceeds its
// safety cap before the bounding predicate confines the search.
var ErrUnboundedStateSpace = errors.New("unbounded state space")

// StateSpace is an ordered set of unique states with a bijective index
// assignment. Offsets are stable for the lifetime of the value; built
// spaces are read-only and may be shared across concurrent solves.
type StateSpace interface {
	// NumSpecies returns the dimensionality of states in the space.
	NumSpecies() int
	// Size returns the number of enumerated states.
	Size() int
	// IndexOf returns the offset of s, or false if s is not in the space.
	IndexOf(s model.State) (int, bool)
	// StateOf returns the state at offset i. The result must not be
	// mutated by the caller.
	StateOf(i int) model.State
	// Contains reports whether s is in the space.
	Contains(s model.State) bool
}

// Predicate bounds a sparse enumeration. A candidate successor state is
// admitted iff it satisfies the predicate (non-negativity is always
// enforced separately).
type Predicate func(s model.State) bool

// WithinBounds returns a predicate admitting states with every component
// strictly below the corresponding bound.
func WithinBounds(bounds []int) Predicate {
	return func(s model.State) bool {
		for i, v := range s {
			if v >= bounds[i] {
				return false
			}
		}
		return true
	}
}

// MaxTotal returns a predicate admitting states whose component sum does
// not exceed n.
func MaxTotal(n int) Predicate {
	return func(s model.State) bool {
		total := 0
		for _, v := range s {
			total += v
		}
		return total <= n
	}
}

// Rectangular is the dense representation: the implicit product of
// per-species ranges [0, bounds[i]). States are ordered lexicographically
// by the mixed-radix encoding, with the last species varying fastest.
// Index and state conversion are O(species) with no stored state list.
type Rectangular struct {
	bounds []int
	size   int
}

// NewRectangular validates the bounds and returns a dense space.
func NewRectangular(bounds []int) (*Rectangular, error) {
	if len(bounds) == 0 {
		return nil, fmt.Errorf("%w: empty bounds", model.ErrInvalidModel)
	}
	size := 1
	for i, b := range bounds {
		if b <= 0 {
			return nil, fmt.Errorf("%w: bounds[%d] = %d, must be a positive integer",
				model.ErrInvalidModel, i, b)
		}
		size *= b
	}
	out := &Rectangular{
		bounds: append([]int(nil), bounds...),
		size:   size,
	}
	return out, nil
}

// Bounds returns a copy of the per-species bounds.
func (r *Rectangular) Bounds() []int {
	return append([]int(nil), r.bounds...)
}

// NumSpecies returns the dimensionality.
func (r *Rectangular) NumSpecies() int { return len(r.bounds) }

// Size returns the product of the bounds.
func (r *Rectangular) Size() int { return r.size }

// IndexOf computes the mixed-radix offset of s.
func (r *Rectangular) IndexOf(s model.State) (int, bool) {
	if !r.Contains(s) {
		return 0, false
	}
	idx := 0
	for i, v := range s {
		idx = idx*r.bounds[i] + v
	}
	return idx, true
}

// StateOf decodes offset i back into a state.
func (r *Rectangular) StateOf(i int) model.State {
	s := make(model.State, len(r.bounds))
	for d := len(r.bounds) - 1; d >= 0; d-- {
		s[d] = i % r.bounds[d]
		i /= r.bounds[d]
	}
	return s
}

// Contains reports whether s lies inside the rectangle.
func (r *Rectangular) Contains(s model.State) bool {
	if len(s) != len(r.bounds) {
		return false
	}
	for i, v := range s {
		if v < 0 || v >= r.bounds[i] {
			return false
		}
	}
	return true
}
