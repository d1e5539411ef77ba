package statespace

import (
	"fmt"

	"github.com/cme-xyz/go-cme/model"
)

// DefaultMaxStates is the default safety cap for sparse enumeration.
const DefaultMaxStates = 1 << 20

// Enumerator configures a sparse breadth-first enumeration.
type Enumerator struct {
	net       *model.Network
	pred      Predicate
	maxStates int
}

// NewEnumerator creates an enumerator for the given network. The
// predicate bounds the search; seeds are supplied to Enumerate.
func NewEnumerator(net *model.Network, pred Predicate) *Enumerator {
	return &Enumerator{
		net:       net,
		pred:      pred,
		maxStates: DefaultMaxStates,
	}
}

// WithMaxStates sets the safety cap on enumerated states.
func (e *Enumerator) WithMaxStates(max int) *Enumerator {
	e.maxStates = max
	return e
}

// Enumerate performs a breadth-first expansion from the seed states,
// applying every reaction's stoichiometric delta. A successor is admitted
// iff all components remain non-negative and it satisfies the predicate.
// Discovery order is deterministic: seeds first, then successors in
// (state, reaction) order. Returns ErrUnboundedStateSpace if the cap is
// exceeded; no partial space is returned.
func (e *Enumerator) Enumerate(seeds ...model.State) (*Enumerated, error) {
	if len(seeds) == 0 {
		return nil, fmt.Errorf("%w: no seed states", model.ErrInvalidModel)
	}
	dim := e.net.NumSpecies()

	space := &Enumerated{
		dim:   dim,
		index: make(map[string]int),
	}
	var queue []model.State
	admit := func(s model.State) {
		key := s.Key()
		if _, seen := space.index[key]; seen {
			return
		}
		space.index[key] = len(space.states)
		space.states = append(space.states, s)
		queue = append(queue, s)
	}

	for _, seed := range seeds {
		if len(seed) != dim {
			return nil, fmt.Errorf("%w: seed state has %d components for %d species",
				model.ErrInvalidModel, len(seed), dim)
		}
		if e.pred != nil && !e.pred(seed) {
			return nil, fmt.Errorf("%w: seed state %v violates the bounding predicate",
				model.ErrInvalidModel, seed)
		}
		admit(seed.Clone())
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for r := 0; r < e.net.NumReactions(); r++ {
			succ, ok := cur.Apply(e.net.Delta(r))
			if !ok {
				continue
			}
			if e.pred != nil && !e.pred(succ) {
				continue
			}
			admit(succ)
			if len(space.states) > e.maxStates {
				return nil, fmt.Errorf(
					"%w: enumeration exceeded %d states, supply a tighter predicate",
					ErrUnboundedStateSpace, e.maxStates)
			}
		}
	}

	return space, nil
}

// Enumerated is the sparse representation: an explicit list of reachable
// states in discovery order with an explicit index mapping.
type Enumerated struct {
	dim    int
	states []model.State
	index  map[string]int
}

// NewEnumerated builds a sparse space from an explicit state list.
// Duplicate states are rejected.
func NewEnumerated(states []model.State) (*Enumerated, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("%w: empty state list", model.ErrInvalidModel)
	}
	space := &Enumerated{
		dim:   len(states[0]),
		index: make(map[string]int, len(states)),
	}
	for _, s := range states {
		if len(s) != space.dim {
			return nil, fmt.Errorf("%w: inconsistent state dimensions", model.ErrInvalidModel)
		}
		key := s.Key()
		if _, dup := space.index[key]; dup {
			return nil, fmt.Errorf("%w: duplicate state %v", model.ErrInvalidModel, s)
		}
		space.index[key] = len(space.states)
		space.states = append(space.states, s.Clone())
	}
	return space, nil
}

// NumSpecies returns the dimensionality.
func (e *Enumerated) NumSpecies() int { return e.dim }

// Size returns the number of enumerated states.
func (e *Enumerated) Size() int { return len(e.states) }

// IndexOf returns the discovery-order offset of s.
func (e *Enumerated) IndexOf(s model.State) (int, bool) {
	i, ok := e.index[s.Key()]
	return i, ok
}

// StateOf returns the state at offset i.
func (e *Enumerated) StateOf(i int) model.State { return e.states[i] }

// Contains reports whether s was enumerated.
func (e *Enumerated) Contains(s model.State) bool {
	_, ok := e.index[s.Key()]
	return ok
}
