package model

import (
	"errors"
	"math"
	"testing"
)

func validModel() *Model {
	return &Model{
		Name:    "birth-death",
		Species: []string{"x"},
		Shape:   []int{10},
		Initial: State{0},
		Reactions: []Reaction{
			{Name: "birth", Delta: []int{1}, Rate: Constant{K: 2.0}},
			{Name: "death", Delta: []int{-1}, Rate: MassAction{K: 0.5, Orders: []int{1}}},
		},
	}
}

func TestStateApply(t *testing.T) {
	s := State{2, 1}

	succ, ok := s.Apply([]int{-1, 1})
	if !ok {
		t.Fatal("expected successor to be valid")
	}
	if succ[0] != 1 || succ[1] != 2 {
		t.Errorf("expected [1 2], got %v", succ)
	}
	// Original state untouched
	if s[0] != 2 || s[1] != 1 {
		t.Errorf("Apply mutated the source state: %v", s)
	}

	if _, ok := s.Apply([]int{-3, 0}); ok {
		t.Error("expected negative successor to be rejected")
	}
}

func TestStateKeyAndEqual(t *testing.T) {
	a := State{1, 2, 3}
	b := State{1, 2, 3}
	c := State{1, 22, 3}

	if a.Key() != b.Key() {
		t.Errorf("equal states have different keys: %q vs %q", a.Key(), b.Key())
	}
	if a.Key() == c.Key() {
		t.Errorf("distinct states share key %q", a.Key())
	}
	if !a.Equal(b) || a.Equal(c) {
		t.Error("Equal disagrees with component comparison")
	}
}

func TestStateClone(t *testing.T) {
	a := State{4, 5}
	b := a.Clone()
	b[0] = 9
	if a[0] != 4 {
		t.Error("Clone shares backing storage")
	}
}

func TestValidate(t *testing.T) {
	if err := validModel().Validate(); err != nil {
		t.Fatalf("valid model rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Model)
	}{
		{"no species", func(m *Model) { m.Species = nil }},
		{"no reactions", func(m *Model) { m.Reactions = nil }},
		{"shape length", func(m *Model) { m.Shape = []int{10, 10} }},
		{"shape non-positive", func(m *Model) { m.Shape = []int{0} }},
		{"initial length", func(m *Model) { m.Initial = State{0, 0} }},
		{"initial negative", func(m *Model) { m.Initial = State{-1} }},
		{"delta length", func(m *Model) { m.Reactions[0].Delta = []int{1, 1} }},
		{"nil rate", func(m *Model) { m.Reactions[1].Rate = nil }},
	}
	for _, tc := range cases {
		m := validModel()
		tc.mutate(m)
		err := m.Validate()
		if err == nil {
			t.Errorf("%s: expected validation error", tc.name)
			continue
		}
		if !errors.Is(err, ErrInvalidModel) {
			t.Errorf("%s: error %v does not match ErrInvalidModel", tc.name, err)
		}
	}
}

func TestSpeciesIndex(t *testing.T) {
	m := &Model{Species: []string{"a", "b"}}
	if got := m.SpeciesIndex("b"); got != 1 {
		t.Errorf("expected index 1, got %d", got)
	}
	if got := m.SpeciesIndex("c"); got != -1 {
		t.Errorf("expected -1 for unknown species, got %d", got)
	}
}

func TestMassActionRate(t *testing.T) {
	// Dimerization 2A -> B: rate = k * x(x-1)
	ma := MassAction{K: 0.5, Orders: []int{2, 0}}

	if got := ma.Rate(State{4, 0}); got != 0.5*4*3 {
		t.Errorf("expected %v, got %v", 0.5*4*3, got)
	}
	if got := ma.Rate(State{1, 0}); got != 0 {
		t.Errorf("expected 0 below reactant count, got %v", got)
	}
	if got := ma.Rate(State{0, 5}); got != 0 {
		t.Errorf("expected 0 with no reactants, got %v", got)
	}

	// Bimolecular A+B: rate = k * a * b
	ab := MassAction{K: 2, Orders: []int{1, 1}}
	if got := ab.Rate(State{3, 5}); got != 2*3*5 {
		t.Errorf("expected %v, got %v", 2*3*5, got)
	}
}

func TestHillRate(t *testing.T) {
	h := Hill{Species: 0, Vmax: 10, K: 2, N: 2}

	// At x = K the rate is half Vmax.
	if got := h.Rate(State{2}); math.Abs(got-5) > 1e-12 {
		t.Errorf("expected half-max 5 at x=K, got %v", got)
	}
	if got := h.Rate(State{0}); got != 0 {
		t.Errorf("expected 0 at x=0, got %v", got)
	}

	r := Hill{Species: 0, Vmax: 10, K: 2, N: 2, Repress: true}
	if got := r.Rate(State{0}); math.Abs(got-10) > 1e-12 {
		t.Errorf("expected full rate at x=0 for repressor, got %v", got)
	}
	if got := r.Rate(State{2}); math.Abs(got-5) > 1e-12 {
		t.Errorf("expected half-max at x=K for repressor, got %v", got)
	}
}

func TestTimeCoeffs(t *testing.T) {
	step := StepCoeff(1.5)
	if step(1.0) != 1 || step(2.0) != 0 {
		t.Error("step coefficient wrong around cutoff")
	}

	win := WindowCoeff(1, 2)
	if win(0.5) != 0 || win(1.5) != 1 || win(2.5) != 0 {
		t.Error("window coefficient wrong")
	}

	dec := DecayCoeff(2)
	if math.Abs(dec(1)-math.Exp(-2)) > 1e-12 {
		t.Errorf("decay coefficient: expected %v, got %v", math.Exp(-2), dec(1))
	}
}

func TestNetworkPropensity(t *testing.T) {
	m := validModel()
	m.Reactions[0].Coeff = StepCoeff(1.0)
	net, err := NewNetwork(m)
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}

	if net.NumSpecies() != 1 || net.NumReactions() != 2 {
		t.Fatalf("unexpected network dimensions: %d species, %d reactions",
			net.NumSpecies(), net.NumReactions())
	}

	s := State{4}
	// Before the cutoff the coefficient is 1.
	if got := net.Propensity(0, s, 0.5); got != 2.0 {
		t.Errorf("expected birth propensity 2.0, got %v", got)
	}
	// After the cutoff the channel is frozen.
	if got := net.Propensity(0, s, 2.0); got != 0 {
		t.Errorf("expected frozen propensity 0, got %v", got)
	}
	// Death has no coefficient; coeff defaults to 1.
	if got := net.Propensity(1, s, 99); got != 0.5*4 {
		t.Errorf("expected death propensity 2.0, got %v", got)
	}

	if !net.TimeDependent() {
		t.Error("network with a step coefficient should report time dependence")
	}
}

func TestNetworkRejectsInvalidModel(t *testing.T) {
	m := validModel()
	m.Species = nil
	if _, err := NewNetwork(m); !errors.Is(err, ErrInvalidModel) {
		t.Errorf("expected ErrInvalidModel, got %v", err)
	}
}
