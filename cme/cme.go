// Package cme wires a reaction-network model through state enumeration,
// generator construction, and FSP augmentation into a time-integration
// driver for the chemical master equation. A built Solver holds the
// enumerated space and generator, which are read-only and reusable
// across repeated solves with different initial distributions, time
// grids, or time-dependent coefficients.
package cme

import (
	"context"
	"fmt"

	"github.com/cme-xyz/go-cme/fsp"
	"github.com/cme-xyz/go-cme/generator"
	"github.com/cme-xyz/go-cme/model"
	"github.com/cme-xyz/go-cme/solver"
	"github.com/cme-xyz/go-cme/statespace"
	"github.com/cme-xyz/go-cme/statistics"
)

// Options configures a master-equation solve. All tolerances and caps
// are threaded explicitly; there is no process-wide state, so concurrent
// solves may use different options in the same process.
type Options struct {
	// Method selects the explicit integration method (default Tsit5).
	// Ignored when Stiff is set.
	Method *solver.Method
	// Solver carries step-size and tolerance settings.
	Solver *solver.Options
	// Generator carries the numeric policy for operator construction.
	Generator generator.Config
	// Stiff switches integration to the implicit TR-BDF2 scheme.
	Stiff bool
	// MaxStates caps sparse enumeration.
	MaxStates int
}

// DefaultOptions returns the defaults used when nil options are passed.
func DefaultOptions() *Options {
	return &Options{
		Method:    solver.Tsit5(),
		Solver:    solver.DefaultOptions(),
		Generator: generator.DefaultConfig(),
		MaxStates: statespace.DefaultMaxStates,
	}
}

func (o *Options) fill() *Options {
	if o == nil {
		return DefaultOptions()
	}
	out := *o
	if out.Method == nil {
		out.Method = solver.Tsit5()
	}
	if out.Solver == nil {
		if out.Stiff {
			out.Solver = solver.StiffOptions()
		} else {
			out.Solver = solver.DefaultOptions()
		}
	}
	if out.MaxStates == 0 {
		out.MaxStates = statespace.DefaultMaxStates
	}
	return &out
}

// TimePoint pairs a reported time with the probability distribution at
// that time.
type TimePoint struct {
	T    float64
	Dist *statistics.Distribution
}

// Solver holds the built state space, generator, and FSP augmentation
// for one model configuration.
type Solver struct {
	mdl  *model.Model
	net  *model.Network
	aug  *fsp.Augmented
	opts *Options
}

// New builds a solver over the dense rectangular domain given by the
// model's shape bounds.
func New(m *model.Model, opts *Options) (*Solver, error) {
	if m.Shape == nil {
		return nil, fmt.Errorf("%w: dense solver requires shape bounds", model.ErrInvalidModel)
	}
	space, err := statespace.NewRectangular(m.Shape)
	if err != nil {
		return nil, err
	}
	return NewWithSpace(m, space, opts)
}

// NewSparse builds a solver over the states reachable from the model's
// initial state under the bounding predicate.
func NewSparse(m *model.Model, pred statespace.Predicate, opts *Options) (*Solver, error) {
	opts = opts.fill()
	net, err := model.NewNetwork(m)
	if err != nil {
		return nil, err
	}
	if m.Initial == nil {
		return nil, fmt.Errorf("%w: sparse enumeration requires an initial state", model.ErrInvalidModel)
	}
	space, err := statespace.NewEnumerator(net, pred).
		WithMaxStates(opts.MaxStates).
		Enumerate(m.Initial)
	if err != nil {
		return nil, err
	}
	return newSolver(m, net, space, opts)
}

// NewWithSpace builds a solver over a caller-supplied state space.
func NewWithSpace(m *model.Model, space statespace.StateSpace, opts *Options) (*Solver, error) {
	net, err := model.NewNetwork(m)
	if err != nil {
		return nil, err
	}
	return newSolver(m, net, space, opts.fill())
}

func newSolver(m *model.Model, net *model.Network, space statespace.StateSpace, opts *Options) (*Solver, error) {
	gen, err := generator.Build(space, net, opts.Generator)
	if err != nil {
		return nil, err
	}
	return &Solver{
		mdl:  m,
		net:  net,
		aug:  fsp.NewAugmented(gen),
		opts: opts,
	}, nil
}

// Space returns the enumerated state space.
func (s *Solver) Space() statespace.StateSpace { return s.aug.Generator().Space() }

// Generator returns the built truncated generator.
func (s *Solver) Generator() *generator.Generator { return s.aug.Generator() }

// Augmented returns the sink-augmented generator.
func (s *Solver) Augmented() *fsp.Augmented { return s.aug }

// Network returns the compiled reaction network.
func (s *Solver) Network() *model.Network { return s.net }

// InitialDistribution returns a point mass on the model's initial state.
func (s *Solver) InitialDistribution() (*statistics.Distribution, error) {
	if s.mdl.Initial == nil {
		return nil, fmt.Errorf("%w: no initial state", model.ErrInvalidModel)
	}
	y, ok := s.aug.PointMass(s.mdl.Initial)
	if !ok {
		return nil, fmt.Errorf("%w: initial state %v is outside the state space",
			model.ErrInvalidModel, s.mdl.Initial)
	}
	return statistics.FromAugmented(s.Space(), y), nil
}

// Solve advances a point mass on the model's initial state from times[0]
// and reports the distribution at every requested time, in increasing
// order. Each reported distribution conserves total probability
// (including sink) up to solver tolerance, and the sink component is
// non-decreasing across the sequence.
func (s *Solver) Solve(ctx context.Context, times []float64) ([]TimePoint, error) {
	init, err := s.InitialDistribution()
	if err != nil {
		return nil, err
	}
	return s.SolveFrom(ctx, init, times)
}

// SolveFrom advances a caller-supplied initial distribution. The initial
// distribution must live on this solver's state space.
func (s *Solver) SolveFrom(ctx context.Context, init *statistics.Distribution, times []float64) ([]TimePoint, error) {
	if init.Space() != s.Space() {
		return nil, fmt.Errorf("%w: initial distribution built over a different state space",
			model.ErrInvalidModel)
	}
	y0 := make([]float64, s.aug.Dim())
	for i := 0; i < s.Space().Size(); i++ {
		y0[i] = init.Prob(i)
	}
	y0[s.aug.SinkIndex()] = init.Sink()

	var sol *solver.Solution
	var err error
	if s.opts.Stiff {
		sol, err = solver.TRBDF2(ctx, s.aug.Derivative, y0, times, s.opts.Solver)
	} else {
		sol, err = solver.Integrate(ctx, s.aug.Derivative, y0, times, s.opts.Method, s.opts.Solver)
	}
	if err != nil {
		return nil, err
	}

	out := make([]TimePoint, len(sol.T))
	for i := range sol.T {
		out[i] = TimePoint{
			T:    sol.T[i],
			Dist: statistics.FromAugmented(s.Space(), sol.Y[i]),
		}
	}
	return out, nil
}

// SolveAdaptive advances with FSP domain expansion: whenever the sink
// bound accumulated during a reporting interval exceeds epsilon, the
// expander grows the space and the interval is retried. Reported
// distributions may therefore live on successively larger spaces.
func (s *Solver) SolveAdaptive(ctx context.Context, times []float64, epsilon float64, expander fsp.Expander) ([]TimePoint, error) {
	init, err := s.InitialDistribution()
	if err != nil {
		return nil, err
	}
	if len(times) < 2 {
		return nil, fmt.Errorf("%w: adaptive solve needs at least two time points",
			solver.ErrIntegrationFailure)
	}

	y0 := make([]float64, s.aug.Dim())
	for i := 0; i < s.Space().Size(); i++ {
		y0[i] = init.Prob(i)
	}
	fspSolver := fsp.NewSolver(s.net, s.aug, expander, times[0], y0,
		s.opts.Generator, s.opts.Method, s.opts.Solver)

	out := make([]TimePoint, 0, len(times))
	out = append(out, TimePoint{T: times[0], Dist: init})
	for _, t := range times[1:] {
		if err := fspSolver.Step(ctx, t, epsilon); err != nil {
			return nil, err
		}
		aug := fspSolver.Augmented()
		out = append(out, TimePoint{
			T:    t,
			Dist: statistics.FromAugmented(aug.Generator().Space(), fspSolver.Y()),
		})
	}
	// Adopt the possibly expanded space for subsequent solves.
	s.aug = fspSolver.Augmented()
	return out, nil
}

// ErrorBound returns the FSP truncation bound of a reported point.
func (s *Solver) ErrorBound(tp TimePoint) float64 { return tp.Dist.Sink() }

// ExceedsBound reports whether the truncation bound at any reported
// point exceeds the threshold, recommending state-space expansion.
func ExceedsBound(points []TimePoint, threshold float64) bool {
	for _, tp := range points {
		if tp.Dist.Sink() > threshold {
			return true
		}
	}
	return false
}
