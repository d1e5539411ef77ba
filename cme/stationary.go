package cme

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/cme-xyz/go-cme/model"
	"github.com/cme-xyz/go-cme/statistics"
)

// maxStationaryDim bounds the dense linear solve used for stationary
// distributions. Larger spaces should use long-run integration instead.
const maxStationaryDim = 4096

// Stationary computes the stationary distribution of the truncated
// generator by a direct dense linear solve of G pi = 0 with the
// normalization sum(pi) = 1. It requires a closed state space (no escape
// routes, otherwise mass leaks and no stationary distribution exists on
// the truncated set) and time-independent propensities.
func (s *Solver) Stationary() (*statistics.Distribution, error) {
	if s.net.TimeDependent() {
		return nil, fmt.Errorf("%w: stationary solve requires time-independent propensities",
			model.ErrInvalidModel)
	}
	gen := s.aug.Generator()
	if gen.HasEscapeRoutes() {
		return nil, fmt.Errorf("%w: stationary solve requires a state space closed under all reactions",
			model.ErrInvalidModel)
	}
	n := gen.Size()
	if n > maxStationaryDim {
		return nil, fmt.Errorf("%w: state space of %d states exceeds the dense solve limit of %d",
			model.ErrInvalidModel, n, maxStationaryDim)
	}

	dense := gen.Dense(0)
	a := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			a.Set(j, i, dense[j][i])
		}
	}
	// Replace the first balance equation with the normalization row;
	// the system G pi = 0 is rank-deficient by exactly one.
	b := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		a.Set(0, i, 1)
	}
	b.SetVec(0, 1)

	var pi mat.VecDense
	if err := pi.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("stationary solve: %w", err)
	}

	p := make([]float64, n)
	for i := range p {
		p[i] = pi.AtVec(i)
	}
	return statistics.New(gen.Space(), p, 0), nil
}
