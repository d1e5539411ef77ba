package fsp

import (
	"errors"
	"fmt"

	"github.com/cme-xyz/go-cme/model"
	"github.com/cme-xyz/go-cme/statespace"
)

// ErrExpansionFailure is returned when domain expansion cannot reduce
// the truncation error, either because the expander did not grow the
// space or the expansion limit was reached.
var ErrExpansionFailure = errors.New("state space expansion failure")

// Expander grows a truncated state space when the FSP error bound
// exceeds its budget. Implementations must return a space that is a
// strict superset of the current one.
type Expander interface {
	Expand(space statespace.StateSpace, sink float64, t float64) (statespace.StateSpace, error)
}

// RectangularExpander grows a dense rectangular domain by a fixed
// padding along every species axis.
type RectangularExpander struct {
	Pad int
}

// Expand returns a rectangle with every bound increased by Pad.
func (e RectangularExpander) Expand(space statespace.StateSpace, sink float64, t float64) (statespace.StateSpace, error) {
	rect, ok := space.(*statespace.Rectangular)
	if !ok {
		return nil, fmt.Errorf("%w: rectangular expander requires a rectangular space", ErrExpansionFailure)
	}
	pad := e.Pad
	if pad <= 0 {
		pad = 1
	}
	bounds := rect.Bounds()
	for i := range bounds {
		bounds[i] += pad
	}
	return statespace.NewRectangular(bounds)
}

// ReachabilityExpander re-enumerates a sparse space by breadth-first
// search under progressively relaxed rectangular bounds.
type ReachabilityExpander struct {
	Net       *model.Network
	Seeds     []model.State
	Bounds    []int
	Pad       int
	MaxStates int
}

// Expand grows the bounds by Pad and re-runs the reachability search.
// The receiver records the grown bounds so repeated expansions compound.
func (e *ReachabilityExpander) Expand(space statespace.StateSpace, sink float64, t float64) (statespace.StateSpace, error) {
	pad := e.Pad
	if pad <= 0 {
		pad = 1
	}
	for i := range e.Bounds {
		e.Bounds[i] += pad
	}
	enum := statespace.NewEnumerator(e.Net, statespace.WithinBounds(e.Bounds))
	if e.MaxStates > 0 {
		enum = enum.WithMaxStates(e.MaxStates)
	}
	return enum.Enumerate(e.Seeds...)
}
