package fsp

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/cme-xyz/go-cme/generator"
	"github.com/cme-xyz/go-cme/model"
	"github.com/cme-xyz/go-cme/solver"
	"github.com/cme-xyz/go-cme/statespace"
)

func birthNet(t *testing.T, k float64) *model.Network {
	t.Helper()
	m := &model.Model{
		Species: []string{"x"},
		Initial: model.State{0},
		Reactions: []model.Reaction{
			{Name: "birth", Delta: []int{1}, Rate: model.Constant{K: k}},
		},
	}
	net, err := model.NewNetwork(m)
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}
	return net
}

func buildAugmented(t *testing.T, net *model.Network, bound int) *Augmented {
	t.Helper()
	space, err := statespace.NewRectangular([]int{bound})
	if err != nil {
		t.Fatalf("NewRectangular: %v", err)
	}
	gen, err := generator.Build(space, net, generator.DefaultConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return NewAugmented(gen)
}

func TestAugmentedLayout(t *testing.T) {
	aug := buildAugmented(t, birthNet(t, 1), 10)
	if aug.Dim() != 11 {
		t.Errorf("Dim = %d, want 11", aug.Dim())
	}
	if aug.SinkIndex() != 10 {
		t.Errorf("SinkIndex = %d, want 10", aug.SinkIndex())
	}
}

func TestAugmentedDerivativeConservation(t *testing.T) {
	aug := buildAugmented(t, birthNet(t, 1.5), 6)
	y := make([]float64, aug.Dim())
	for i := 0; i < aug.Dim()-1; i++ {
		y[i] = 1.0 / float64(aug.Dim()-1)
	}
	dy := make([]float64, aug.Dim())
	aug.Derivative(0, y, dy)

	sum := 0.0
	for _, v := range dy {
		sum += v
	}
	if math.Abs(sum) > 1e-14 {
		t.Errorf("augmented derivative sums to %v, want 0", sum)
	}
	// Escape from the top state flows into the sink component.
	if dy[aug.SinkIndex()] <= 0 {
		t.Errorf("sink derivative %v, want positive", dy[aug.SinkIndex()])
	}
}

func TestPointMass(t *testing.T) {
	aug := buildAugmented(t, birthNet(t, 1), 5)

	y, ok := aug.PointMass(model.State{2})
	if !ok {
		t.Fatal("state inside the space rejected")
	}
	if y[2] != 1 {
		t.Errorf("y[2] = %v, want 1", y[2])
	}
	total := 0.0
	for _, v := range y {
		total += v
	}
	if total != 1 {
		t.Errorf("point mass total %v, want 1", total)
	}

	if _, ok := aug.PointMass(model.State{7}); ok {
		t.Error("state outside the space accepted")
	}
}

func TestPackAndErrorBound(t *testing.T) {
	aug := buildAugmented(t, birthNet(t, 1), 3)
	y := aug.Pack([]float64{0.5, 0.3, 0.1}, 0.1)
	if len(y) != 4 {
		t.Fatalf("packed length %d, want 4", len(y))
	}
	if aug.ErrorBound(y) != 0.1 {
		t.Errorf("ErrorBound = %v, want 0.1", aug.ErrorBound(y))
	}
}

func TestRemap(t *testing.T) {
	small, _ := statespace.NewRectangular([]int{3})
	big, _ := statespace.NewRectangular([]int{5})

	y := []float64{0.5, 0.3, 0.1, 0.1} // three states plus sink
	out := Remap(y, small, big)

	if len(out) != 6 {
		t.Fatalf("remapped length %d, want 6", len(out))
	}
	for i, want := range []float64{0.5, 0.3, 0.1, 0, 0, 0.1} {
		if out[i] != want {
			t.Errorf("out[%d] = %v, want %v", i, out[i], want)
		}
	}
}

func TestRemapSparseToSparse(t *testing.T) {
	from, err := statespace.NewEnumerated([]model.State{{0, 1}, {1, 0}})
	if err != nil {
		t.Fatalf("NewEnumerated: %v", err)
	}
	// Different discovery order in the grown space.
	to, err := statespace.NewEnumerated([]model.State{{1, 0}, {2, 0}, {0, 1}})
	if err != nil {
		t.Fatalf("NewEnumerated: %v", err)
	}

	out := Remap([]float64{0.7, 0.2, 0.1}, from, to)
	if out[0] != 0.2 || out[2] != 0.7 {
		t.Errorf("mass not carried by state identity: %v", out)
	}
	if out[3] != 0.1 {
		t.Errorf("sink not preserved: %v", out[3])
	}
}

func TestRectangularExpander(t *testing.T) {
	space, _ := statespace.NewRectangular([]int{4, 6})
	grown, err := RectangularExpander{Pad: 2}.Expand(space, 0.1, 1.0)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	rect := grown.(*statespace.Rectangular)
	b := rect.Bounds()
	if b[0] != 6 || b[1] != 8 {
		t.Errorf("grown bounds %v, want [6 8]", b)
	}

	sparse, _ := statespace.NewEnumerated([]model.State{{0}})
	e := RectangularExpander{}
	if _, err := e.Expand(sparse, 0, 0); !errors.Is(err, ErrExpansionFailure) {
		t.Errorf("expected ErrExpansionFailure for sparse space, got %v", err)
	}
}

func TestReachabilityExpanderCompounds(t *testing.T) {
	net := birthNet(t, 1)
	e := &ReachabilityExpander{
		Net:    net,
		Seeds:  []model.State{{0}},
		Bounds: []int{3},
		Pad:    2,
	}

	grown, err := e.Expand(nil, 0, 0)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if grown.Size() != 5 {
		t.Errorf("first expansion size %d, want 5", grown.Size())
	}

	grown, err = e.Expand(nil, 0, 0)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if grown.Size() != 7 {
		t.Errorf("second expansion size %d, want 7", grown.Size())
	}
}

func TestSolverStepExpandsDomain(t *testing.T) {
	// Pure birth at rate 1: over [0, 5] the mean count is 5, so a domain
	// of 4 states cannot hold the mass and must grow.
	net := birthNet(t, 1)
	aug := buildAugmented(t, net, 4)

	y0 := make([]float64, aug.Dim())
	y0[0] = 1

	s := NewSolver(net, aug, RectangularExpander{Pad: 4}, 0, y0,
		generator.DefaultConfig(), solver.Tsit5(), solver.DefaultOptions())

	if err := s.Step(context.Background(), 5, 1e-4); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if s.T() != 5 {
		t.Errorf("T = %v, want 5", s.T())
	}
	if got := s.Augmented().Generator().Size(); got <= 4 {
		t.Errorf("domain size %d, expected growth past 4", got)
	}
	if bound := s.ErrorBound(); bound > 1e-4 {
		t.Errorf("final error bound %v exceeds budget", bound)
	}

	// Probability is conserved across expansions.
	total := 0.0
	for _, v := range s.Y() {
		total += v
	}
	if math.Abs(total-1) > 1e-6 {
		t.Errorf("total probability %v, want 1", total)
	}
}

func TestSolverStepWithoutExpanderFails(t *testing.T) {
	net := birthNet(t, 1)
	aug := buildAugmented(t, net, 3)
	y0 := make([]float64, aug.Dim())
	y0[0] = 1

	s := NewSolver(net, aug, nil, 0, y0,
		generator.DefaultConfig(), solver.Tsit5(), solver.DefaultOptions())
	err := s.Step(context.Background(), 10, 1e-6)
	if !errors.Is(err, ErrExpansionFailure) {
		t.Fatalf("expected ErrExpansionFailure, got %v", err)
	}
}

func TestSolverStepBackwardRejected(t *testing.T) {
	net := birthNet(t, 1)
	aug := buildAugmented(t, net, 3)
	y0 := make([]float64, aug.Dim())
	y0[0] = 1

	s := NewSolver(net, aug, nil, 1, y0,
		generator.DefaultConfig(), solver.Tsit5(), solver.DefaultOptions())
	if err := s.Step(context.Background(), 0.5, 1); !errors.Is(err, solver.ErrIntegrationFailure) {
		t.Fatalf("expected ErrIntegrationFailure, got %v", err)
	}
}
