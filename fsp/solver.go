package fsp

import (
	"context"
	"fmt"

	"github.com/cme-xyz/go-cme/generator"
	"github.com/cme-xyz/go-cme/model"
	"github.com/cme-xyz/go-cme/solver"
)

// Solver advances an FSP-truncated master equation while adaptively
// expanding the state space. Each Step integrates to a target time; if
// the sink bound grows past the step's error budget, the domain is
// expanded, the distribution is remapped onto the new enumeration, the
// generator is rebuilt, and the step is retried from the last committed
// time.
type Solver struct {
	net      *model.Network
	cfg      generator.Config
	aug      *Augmented
	expander Expander
	method   *solver.Method
	opts     *solver.Options

	// MaxExpansions caps domain growth retries per Step.
	MaxExpansions int

	t float64
	y []float64
}

// NewSolver creates an adaptive FSP solver positioned at time t0 with
// the given augmented initial vector.
func NewSolver(net *model.Network, aug *Augmented, expander Expander, t0 float64, y0 []float64, cfg generator.Config, m *solver.Method, opts *solver.Options) *Solver {
	return &Solver{
		net:           net,
		cfg:           cfg,
		aug:           aug,
		expander:      expander,
		method:        m,
		opts:          opts,
		MaxExpansions: 25,
		t:             t0,
		y:             append([]float64(nil), y0...),
	}
}

// T returns the current solution time.
func (s *Solver) T() float64 { return s.t }

// Y returns a copy of the current augmented solution vector.
func (s *Solver) Y() []float64 { return append([]float64(nil), s.y...) }

// Augmented returns the current augmented generator. It changes identity
// after a domain expansion.
func (s *Solver) Augmented() *Augmented { return s.aug }

// ErrorBound returns the current sink probability.
func (s *Solver) ErrorBound() float64 { return s.aug.ErrorBound(s.y) }

// Step advances the solution to time t, expanding the domain as needed
// to keep the truncation error accumulated during this step below
// epsilon. The committed sink bound is cumulative across steps.
func (s *Solver) Step(ctx context.Context, t float64, epsilon float64) error {
	if t <= s.t {
		return fmt.Errorf("%w: step target %g not after current time %g",
			solver.ErrIntegrationFailure, t, s.t)
	}
	budget := s.aug.ErrorBound(s.y) + epsilon

	for attempt := 0; ; attempt++ {
		sol, err := solver.Integrate(ctx, s.aug.Derivative, s.y, []float64{s.t, t}, s.method, s.opts)
		if err != nil {
			return err
		}
		y := sol.Final()

		if s.aug.ErrorBound(y) <= budget {
			s.t = t
			s.y = y
			return nil
		}

		if s.expander == nil || attempt >= s.MaxExpansions {
			return fmt.Errorf("%w: sink bound %g exceeds budget %g after %d expansions",
				ErrExpansionFailure, s.aug.ErrorBound(y), budget, attempt)
		}

		oldSpace := s.aug.Generator().Space()
		grown, err := s.expander.Expand(oldSpace, s.aug.ErrorBound(y), t)
		if err != nil {
			return err
		}
		if grown.Size() <= oldSpace.Size() {
			return fmt.Errorf("%w: expansion did not increase size of domain", ErrExpansionFailure)
		}
		gen, err := generator.Build(grown, s.net, s.cfg)
		if err != nil {
			return err
		}
		// Retry the step from the last committed time on the grown domain.
		s.y = Remap(s.y, oldSpace, grown)
		s.aug = NewAugmented(gen)
	}
}
