package model

import "math"

// Propensity computes the instantaneous firing rate of a reaction from a
// state. Implementations must be pure: no shared mutable state, safe for
// concurrent evaluation. Rates must be non-negative and finite over the
// non-negative state domain; the generator builder rejects violations.
type Propensity interface {
	Rate(s State) float64
}

// PropensityFunc adapts an ordinary function to the Propensity interface.
type PropensityFunc func(s State) float64

// Rate calls the wrapped function.
func (f PropensityFunc) Rate(s State) float64 { return f(s) }

// Constant is a state-independent propensity, as in a zeroth-order
// birth reaction *->A firing at rate K.
type Constant struct {
	K float64
}

// Rate returns K regardless of state.
func (c Constant) Rate(State) float64 { return c.K }

// MassAction is a stochastic mass-action propensity. Orders gives the
// number of molecules of each species consumed as reactants; the rate is
// K times the product of falling factorials x_i(x_i-1)...(x_i-n_i+1),
// the number of distinct reactant combinations.
type MassAction struct {
	K      float64
	Orders []int
}

// Rate evaluates the mass-action propensity at s.
func (ma MassAction) Rate(s State) float64 {
	rate := ma.K
	for i, n := range ma.Orders {
		if n == 0 {
			continue
		}
		if i >= len(s) {
			return 0
		}
		x := s[i]
		if x < n {
			return 0
		}
		for k := 0; k < n; k++ {
			rate *= float64(x - k)
		}
	}
	return rate
}

// Hill is a Hill-type regulatory propensity on a single species:
// Vmax * x^N / (K^N + x^N), or the repressive form
// Vmax * K^N / (K^N + x^N) when Repress is set.
type Hill struct {
	Species int
	Vmax    float64
	K       float64
	N       float64
	Repress bool
}

// Rate evaluates the Hill propensity at s.
func (h Hill) Rate(s State) float64 {
	x := float64(s[h.Species])
	xn := math.Pow(x, h.N)
	kn := math.Pow(h.K, h.N)
	if xn+kn == 0 {
		return 0
	}
	if h.Repress {
		return h.Vmax * kn / (kn + xn)
	}
	return h.Vmax * xn / (kn + xn)
}

// StepCoeff returns a time coefficient that is 1 until cutoff and 0 after.
// Scaling a reaction by a step coefficient freezes that channel for
// t > cutoff.
func StepCoeff(cutoff float64) TimeCoeff {
	return func(t float64) float64 {
		if t > cutoff {
			return 0
		}
		return 1
	}
}

// WindowCoeff returns a time coefficient that is 1 on [from, to] and 0
// outside it.
func WindowCoeff(from, to float64) TimeCoeff {
	return func(t float64) float64 {
		if t < from || t > to {
			return 0
		}
		return 1
	}
}

// DecayCoeff returns an exponentially decaying coefficient exp(-lambda*t).
func DecayCoeff(lambda float64) TimeCoeff {
	return func(t float64) float64 {
		return math.Exp(-lambda * t)
	}
}
