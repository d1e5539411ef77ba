package cme

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/cme-xyz/go-cme/fsp"
	"github.com/cme-xyz/go-cme/model"
	"github.com/cme-xyz/go-cme/solver"
	"github.com/cme-xyz/go-cme/statespace"
)

func birthModel(k float64, bound int) *model.Model {
	return &model.Model{
		Name:    "birth",
		Species: []string{"x"},
		Shape:   []int{bound},
		Initial: model.State{0},
		Reactions: []model.Reaction{
			{Name: "birth", Delta: []int{1}, Rate: model.Constant{K: k}},
		},
	}
}

func isomerizationModel(n int, k1, k2 float64) *model.Model {
	return &model.Model{
		Name:    "isomerization",
		Species: []string{"a", "b"},
		Initial: model.State{n, 0},
		Reactions: []model.Reaction{
			{Name: "fold", Delta: []int{-1, 1}, Rate: model.MassAction{K: k1, Orders: []int{1, 0}}},
			{Name: "unfold", Delta: []int{1, -1}, Rate: model.MassAction{K: k2, Orders: []int{0, 1}}},
		},
	}
}

func TestSolvePoissonBirth(t *testing.T) {
	// Pure birth at rate k from an empty state: X(t) ~ Poisson(k*t).
	k := 1.0
	s, err := New(birthModel(k, 40), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	points, err := s.Solve(context.Background(), []float64{0, 1, 2, 5})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	for _, tp := range points[1:] {
		lambda := k * tp.T
		if got := tp.Dist.Mean(0); math.Abs(got-lambda) > 1e-3 {
			t.Errorf("mean at t=%g: %v, want %v", tp.T, got, lambda)
		}
		if got := tp.Dist.Variance(0); math.Abs(got-lambda) > 1e-2 {
			t.Errorf("variance at t=%g: %v, want %v", tp.T, got, lambda)
		}
		// Poisson pmf spot check at the mode.
		mode := int(lambda)
		want := math.Exp(-lambda) * math.Pow(lambda, float64(mode)) / factorial(mode)
		if got := tp.Dist.Prob(mode); math.Abs(got-want) > 1e-4 {
			t.Errorf("P(X=%d) at t=%g: %v, want %v", mode, tp.T, got, want)
		}
	}
}

func factorial(n int) float64 {
	f := 1.0
	for i := 2; i <= n; i++ {
		f *= float64(i)
	}
	return f
}

func TestSolveConservesProbability(t *testing.T) {
	s, err := New(birthModel(2, 10), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	points, err := s.Solve(context.Background(), []float64{0, 1, 3, 6})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	prevSink := 0.0
	for _, tp := range points {
		if got := tp.Dist.Total(); math.Abs(got-1) > 1e-6 {
			t.Errorf("total probability at t=%g: %v, want 1", tp.T, got)
		}
		if tp.Dist.Sink() < prevSink-1e-12 {
			t.Errorf("sink decreased at t=%g: %v -> %v", tp.T, prevSink, tp.Dist.Sink())
		}
		prevSink = tp.Dist.Sink()
		if tp.Dist.MinProb() < -1e-7 {
			t.Errorf("negative probability at t=%g: %v", tp.T, tp.Dist.MinProb())
		}
	}
	// At t=6 a 10-state domain has lost real mass to the sink.
	if points[len(points)-1].Dist.Sink() <= 0 {
		t.Error("expected positive truncation error for a small domain")
	}
}

func TestDenseSparseEquivalence(t *testing.T) {
	// The same model solved over the rectangular domain and over a BFS
	// enumeration bounded to the same box is the same truncated system,
	// so per-state probabilities and sink must agree at every time.
	bound := 12
	m := birthDeathModel(2, 1, bound)
	dense, err := New(m, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sparse, err := NewSparse(m, statespace.WithinBounds([]int{bound}), nil)
	if err != nil {
		t.Fatalf("NewSparse: %v", err)
	}
	if sparse.Space().Size() != dense.Space().Size() {
		t.Fatalf("enumerated %d states, rectangular %d",
			sparse.Space().Size(), dense.Space().Size())
	}

	times := []float64{0, 0.5, 1, 2}
	dp, err := dense.Solve(context.Background(), times)
	if err != nil {
		t.Fatalf("dense Solve: %v", err)
	}
	sp, err := sparse.Solve(context.Background(), times)
	if err != nil {
		t.Fatalf("sparse Solve: %v", err)
	}

	for i := range times {
		for j := 0; j < dense.Space().Size(); j++ {
			st := dense.Space().StateOf(j)
			if d := math.Abs(dp[i].Dist.ProbOf(st) - sp[i].Dist.ProbOf(st)); d > 1e-6 {
				t.Errorf("t=%g state %v: dense %v, sparse %v",
					times[i], st, dp[i].Dist.ProbOf(st), sp[i].Dist.ProbOf(st))
			}
		}
		if d := math.Abs(dp[i].Dist.Sink() - sp[i].Dist.Sink()); d > 1e-6 {
			t.Errorf("t=%g sink: dense %v, sparse %v",
				times[i], dp[i].Dist.Sink(), sp[i].Dist.Sink())
		}
	}
}

func TestSolveClosedSystemZeroSink(t *testing.T) {
	s, err := NewSparse(isomerizationModel(5, 1, 2), nil, nil)
	if err != nil {
		t.Fatalf("NewSparse: %v", err)
	}
	if s.Generator().HasEscapeRoutes() {
		t.Fatal("conserved system should enumerate to a closed space")
	}
	points, err := s.Solve(context.Background(), []float64{0, 1, 10})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	for _, tp := range points {
		if tp.Dist.Sink() > 1e-12 {
			t.Errorf("sink at t=%g: %v, want 0 for a closed space", tp.T, tp.Dist.Sink())
		}
	}
}

func TestSolveIsomerizationEquilibrium(t *testing.T) {
	// Each of the n molecules independently ends up folded with
	// probability k1/(k1+k2), so mean B -> n*k1/(k1+k2).
	n, k1, k2 := 8, 1.0, 2.0
	s, err := NewSparse(isomerizationModel(n, k1, k2), nil, nil)
	if err != nil {
		t.Fatalf("NewSparse: %v", err)
	}
	points, err := s.Solve(context.Background(), []float64{0, 20})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	final := points[len(points)-1].Dist
	b := s.Network().NumSpecies() - 1
	wantMean := float64(n) * k1 / (k1 + k2)
	if got := final.Mean(b); math.Abs(got-wantMean) > 1e-4 {
		t.Errorf("equilibrium mean B = %v, want %v", got, wantMean)
	}
	// Binomial variance n*p*(1-p).
	p := k1 / (k1 + k2)
	wantVar := float64(n) * p * (1 - p)
	if got := final.Variance(b); math.Abs(got-wantVar) > 1e-3 {
		t.Errorf("equilibrium variance B = %v, want %v", got, wantVar)
	}
}

func TestSolveStiff(t *testing.T) {
	opts := DefaultOptions()
	opts.Stiff = true
	opts.Solver = solver.StiffOptions()
	opts.Solver.Dt = 0.01
	opts.Solver.Adaptive = false

	s, err := NewSparse(isomerizationModel(4, 1, 1), nil, opts)
	if err != nil {
		t.Fatalf("NewSparse: %v", err)
	}
	points, err := s.Solve(context.Background(), []float64{0, 10})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	final := points[len(points)-1].Dist
	if got := final.Mean(1); math.Abs(got-2) > 1e-2 {
		t.Errorf("stiff solve mean B = %v, want 2", got)
	}
	if got := final.Total(); math.Abs(got-1) > 1e-4 {
		t.Errorf("stiff solve total %v, want 1", got)
	}
}

func TestSolveFromRequiresMatchingSpace(t *testing.T) {
	s, err := New(birthModel(1, 10), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	other, err := New(birthModel(1, 20), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	init, err := other.InitialDistribution()
	if err != nil {
		t.Fatalf("InitialDistribution: %v", err)
	}
	if _, err := s.SolveFrom(context.Background(), init, []float64{0, 1}); !errors.Is(err, model.ErrInvalidModel) {
		t.Fatalf("expected ErrInvalidModel, got %v", err)
	}
}

func TestSolveCancellation(t *testing.T) {
	s, err := New(birthModel(1, 30), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Solve(ctx, []float64{0, 5}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSolveAdaptiveExpands(t *testing.T) {
	m := birthModel(1, 0)
	m.Shape = nil
	s, err := NewSparse(m, statespace.WithinBounds([]int{4}), nil)
	if err != nil {
		t.Fatalf("NewSparse: %v", err)
	}
	if s.Space().Size() != 4 {
		t.Fatalf("initial space size %d, want 4", s.Space().Size())
	}

	expander := &fsp.ReachabilityExpander{
		Net:    s.Network(),
		Seeds:  []model.State{m.Initial},
		Bounds: []int{4},
		Pad:    4,
	}
	points, err := s.SolveAdaptive(context.Background(), []float64{0, 2, 5}, 1e-5, expander)
	if err != nil {
		t.Fatalf("SolveAdaptive: %v", err)
	}

	final := points[len(points)-1].Dist
	if final.Space().Size() <= 4 {
		t.Errorf("space did not grow: %d states", final.Space().Size())
	}
	if final.Sink() > 2e-5 {
		t.Errorf("sink %v exceeds the accumulated budget", final.Sink())
	}
	if got := final.Mean(0); math.Abs(got-5) > 1e-3 {
		t.Errorf("mean at t=5: %v, want 5", got)
	}
	// The solver adopts the grown space for subsequent solves.
	if s.Space().Size() <= 4 {
		t.Errorf("solver kept the original space: %d states", s.Space().Size())
	}
}

func TestNewRequiresShape(t *testing.T) {
	m := birthModel(1, 10)
	m.Shape = nil
	if _, err := New(m, nil); !errors.Is(err, model.ErrInvalidModel) {
		t.Fatalf("expected ErrInvalidModel, got %v", err)
	}
}

func TestNewSparseRequiresInitial(t *testing.T) {
	m := birthModel(1, 10)
	m.Shape = nil
	m.Initial = nil
	if _, err := NewSparse(m, statespace.WithinBounds([]int{5}), nil); !errors.Is(err, model.ErrInvalidModel) {
		t.Fatalf("expected ErrInvalidModel, got %v", err)
	}
}

func TestExceedsBound(t *testing.T) {
	s, err := New(birthModel(2, 6), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	points, err := s.Solve(context.Background(), []float64{0, 5})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !ExceedsBound(points, 1e-6) {
		t.Error("a 6-state domain at t=5 should exceed a 1e-6 bound")
	}
	if ExceedsBound(points, 2) {
		t.Error("no sink can exceed a bound above 1")
	}
}

func TestStationaryIsomerization(t *testing.T) {
	n, k1, k2 := 6, 1.0, 2.0
	s, err := NewSparse(isomerizationModel(n, k1, k2), nil, nil)
	if err != nil {
		t.Fatalf("NewSparse: %v", err)
	}
	dist, err := s.Stationary()
	if err != nil {
		t.Fatalf("Stationary: %v", err)
	}

	p := k1 / (k1 + k2)
	b := 1
	if got := dist.Mean(b); math.Abs(got-float64(n)*p) > 1e-10 {
		t.Errorf("stationary mean B = %v, want %v", got, float64(n)*p)
	}
	if got := dist.Retained(); math.Abs(got-1) > 1e-10 {
		t.Errorf("stationary distribution sums to %v, want 1", got)
	}
	// Binomial(n, p) pmf spot check.
	wantP0 := math.Pow(1-p, float64(n))
	if got := dist.ProbOf(model.State{n, 0}); math.Abs(got-wantP0) > 1e-10 {
		t.Errorf("P(all unfolded) = %v, want %v", got, wantP0)
	}
}

func TestStationaryRejectsOpenSystem(t *testing.T) {
	s, err := New(birthModel(1, 5), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Stationary(); !errors.Is(err, model.ErrInvalidModel) {
		t.Fatalf("expected ErrInvalidModel for open system, got %v", err)
	}
}

func TestStationaryRejectsTimeDependent(t *testing.T) {
	m := isomerizationModel(3, 1, 1)
	m.Reactions[0].Coeff = model.StepCoeff(5)
	s, err := NewSparse(m, nil, nil)
	if err != nil {
		t.Fatalf("NewSparse: %v", err)
	}
	if _, err := s.Stationary(); !errors.Is(err, model.ErrInvalidModel) {
		t.Fatalf("expected ErrInvalidModel for time-dependent model, got %v", err)
	}
}

func TestTimeCoeffFreezesDistribution(t *testing.T) {
	// Birth switched off at t=1: once past the cutoff the distribution
	// stops evolving entirely.
	m := birthModel(1, 30)
	m.Reactions[0].Coeff = model.StepCoeff(1)
	s, err := New(m, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	points, err := s.Solve(context.Background(), []float64{0, 2, 3})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	at2, at3 := points[1].Dist, points[2].Dist
	// The mean settles near the value accumulated before the cutoff.
	if got := at2.Mean(0); math.Abs(got-1) > 1e-2 {
		t.Errorf("mean after freeze = %v, want about 1", got)
	}
	for i := 0; i < at2.Space().Size(); i++ {
		if math.Abs(at3.Prob(i)-at2.Prob(i)) > 1e-12 {
			t.Errorf("P(X=%d) moved while frozen: %v -> %v", i, at2.Prob(i), at3.Prob(i))
		}
	}
}
