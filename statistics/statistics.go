// Package statistics reduces probability distributions over an
// enumerated state space into marginals, moments, and conditional
// expectations. All functions are pure and safe to call concurrently on
// an immutable Distribution.
package statistics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/cme-xyz/go-cme/model"
	"github.com/cme-xyz/go-cme/statespace"
)

// Distribution is a probability distribution over a state space plus the
// FSP sink mass. Values are immutable once constructed; the integrator
// hands a fresh Distribution to the caller at every reported time.
type Distribution struct {
	space statespace.StateSpace
	p     []float64
	sink  float64
}

// New copies p into a distribution over the given space. The sink mass
// is carried separately and excluded from marginals and moments.
func New(space statespace.StateSpace, p []float64, sink float64) *Distribution {
	return &Distribution{
		space: space,
		p:     append([]float64(nil), p...),
		sink:  sink,
	}
}

// FromAugmented splits an augmented solver vector (truncated
// probabilities followed by the sink component) into a Distribution.
func FromAugmented(space statespace.StateSpace, y []float64) *Distribution {
	return New(space, y[:space.Size()], y[space.Size()])
}

// Space returns the underlying state space.
func (d *Distribution) Space() statespace.StateSpace { return d.space }

// Prob returns the probability of the state at offset i.
func (d *Distribution) Prob(i int) float64 { return d.p[i] }

// ProbOf returns the probability of state s, or 0 if s is outside the
// truncated set.
func (d *Distribution) ProbOf(s model.State) float64 {
	if i, ok := d.space.IndexOf(s); ok {
		return d.p[i]
	}
	return 0
}

// Sink returns the truncation-error mass.
func (d *Distribution) Sink() float64 { return d.sink }

// Retained returns the probability mass inside the truncated set.
func (d *Distribution) Retained() float64 { return floats.Sum(d.p) }

// Total returns the retained mass plus the sink; it equals 1 up to
// integration tolerance for any conforming solve.
func (d *Distribution) Total() float64 { return d.Retained() + d.sink }

// MinProb returns the smallest component, including the sink. Slightly
// negative values within solver tolerance are expected.
func (d *Distribution) MinProb() float64 {
	min := d.sink
	for _, v := range d.p {
		if v < min {
			min = v
		}
	}
	return min
}

// Marginal sums probability over all states agreeing on the given
// species components, producing a lower-dimensional distribution keyed
// by the reduced state. The sink mass is not included; read it from
// Sink separately.
func (d *Distribution) Marginal(species ...int) map[string]float64 {
	out := make(map[string]float64)
	reduced := make(model.State, len(species))
	for i := 0; i < d.space.Size(); i++ {
		s := d.space.StateOf(i)
		for k, sp := range species {
			reduced[k] = s[sp]
		}
		out[reduced.Key()] += d.p[i]
	}
	return out
}

// Marginal1D returns the marginal distribution of a single species as a
// dense slice indexed by copy number.
func (d *Distribution) Marginal1D(sp int) []float64 {
	max := 0
	for i := 0; i < d.space.Size(); i++ {
		if v := d.space.StateOf(i)[sp]; v > max {
			max = v
		}
	}
	out := make([]float64, max+1)
	for i := 0; i < d.space.Size(); i++ {
		out[d.space.StateOf(i)[sp]] += d.p[i]
	}
	return out
}

// Moment returns the raw weighted sum of the species' copy number raised
// to the requested order, using the distribution as weights.
func (d *Distribution) Moment(order int, sp int) float64 {
	total := 0.0
	for i := 0; i < d.space.Size(); i++ {
		x := float64(d.space.StateOf(i)[sp])
		total += d.p[i] * math.Pow(x, float64(order))
	}
	return total
}

// values extracts the copy-number sequence of one species aligned with
// the probability weights.
func (d *Distribution) values(sp int) []float64 {
	x := make([]float64, d.space.Size())
	for i := range x {
		x[i] = float64(d.space.StateOf(i)[sp])
	}
	return x
}

// Mean returns the expected copy number of a species, normalized over
// the retained mass.
func (d *Distribution) Mean(sp int) float64 {
	return stat.Mean(d.values(sp), d.p)
}

// Variance returns the population variance of a species' copy number,
// normalized over the retained mass.
func (d *Distribution) Variance(sp int) float64 {
	x := d.values(sp)
	mu := stat.Mean(x, d.p)
	variance := 0.0
	for i, v := range x {
		dev := v - mu
		variance += d.p[i] * dev * dev
	}
	if w := floats.Sum(d.p); w > 0 {
		variance /= w
	}
	return variance
}

// StdDev returns the standard deviation of a species' copy number.
func (d *Distribution) StdDev(sp int) float64 {
	return math.Sqrt(d.Variance(sp))
}

// Covariance returns the population covariance between two species'
// copy numbers, normalized over the retained mass.
func (d *Distribution) Covariance(a, b int) float64 {
	xa, xb := d.values(a), d.values(b)
	mua := stat.Mean(xa, d.p)
	mub := stat.Mean(xb, d.p)
	cov := 0.0
	for i := range xa {
		cov += d.p[i] * (xa[i] - mua) * (xb[i] - mub)
	}
	if w := floats.Sum(d.p); w > 0 {
		cov /= w
	}
	return cov
}

// ConditionalExpectation returns the expected copy number of a species
// over the states satisfying cond, normalized by the conditional mass.
// Returns 0 when no retained state satisfies cond.
func (d *Distribution) ConditionalExpectation(sp int, cond func(model.State) bool) float64 {
	num, den := 0.0, 0.0
	for i := 0; i < d.space.Size(); i++ {
		s := d.space.StateOf(i)
		if cond(s) {
			num += d.p[i] * float64(s[sp])
			den += d.p[i]
		}
	}
	if den == 0 {
		return 0
	}
	return num / den
}
