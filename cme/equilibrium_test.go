package cme

import (
	"context"
	"math"
	"testing"

	"github.com/cme-xyz/go-cme/model"
)

func birthDeathModel(k, g float64, bound int) *model.Model {
	return &model.Model{
		Name:    "birth-death",
		Species: []string{"x"},
		Shape:   []int{bound},
		Initial: model.State{0},
		Reactions: []model.Reaction{
			{Name: "birth", Delta: []int{1}, Rate: model.Constant{K: k}},
			{Name: "death", Delta: []int{-1}, Rate: model.MassAction{K: g, Orders: []int{1}}},
		},
	}
}

func TestSolveToEquilibriumBirthDeath(t *testing.T) {
	// Birth at k, death at g per molecule: the long-run distribution is
	// Poisson(k/g).
	k, g := 2.0, 1.0
	s, err := New(birthDeathModel(k, g, 30), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := s.SolveToEquilibrium(context.Background(), nil)
	if err != nil {
		t.Fatalf("SolveToEquilibrium: %v", err)
	}
	if !res.Reached {
		t.Fatalf("equilibrium not reached: %+v", res)
	}
	if res.Reason != "converged" {
		t.Errorf("reason %q, want converged", res.Reason)
	}

	lambda := k / g
	if got := res.Dist.Mean(0); math.Abs(got-lambda) > 1e-3 {
		t.Errorf("equilibrium mean = %v, want %v", got, lambda)
	}
	if got := res.Dist.Variance(0); math.Abs(got-lambda) > 1e-2 {
		t.Errorf("equilibrium variance = %v, want %v", got, lambda)
	}
	if got := res.Dist.Prob(0); math.Abs(got-math.Exp(-lambda)) > 1e-4 {
		t.Errorf("P(X=0) = %v, want %v", got, math.Exp(-lambda))
	}
}

func TestSolveToEquilibriumMatchesStationary(t *testing.T) {
	s, err := NewSparse(isomerizationModel(6, 1.0, 2.0), nil, nil)
	if err != nil {
		t.Fatalf("NewSparse: %v", err)
	}
	direct, err := s.Stationary()
	if err != nil {
		t.Fatalf("Stationary: %v", err)
	}
	res, err := s.SolveToEquilibrium(context.Background(), nil)
	if err != nil {
		t.Fatalf("SolveToEquilibrium: %v", err)
	}
	if !res.Reached {
		t.Fatalf("equilibrium not reached: %+v", res)
	}
	for i := 0; i < s.Space().Size(); i++ {
		if math.Abs(res.Dist.Prob(i)-direct.Prob(i)) > 1e-5 {
			t.Errorf("state %v: integrated %v, direct %v",
				s.Space().StateOf(i), res.Dist.Prob(i), direct.Prob(i))
		}
	}
}

func TestSolveToEquilibriumTimeExhausted(t *testing.T) {
	s, err := New(birthDeathModel(2, 1, 30), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	opts := &EquilibriumOptions{
		Tolerance:         1e-15,
		ConsecutiveChecks: 3,
		MinTime:           0,
		MaxTime:           3,
		Dt:                1,
	}
	res, err := s.SolveToEquilibrium(context.Background(), opts)
	if err != nil {
		t.Fatalf("SolveToEquilibrium: %v", err)
	}
	if res.Reached {
		t.Error("should not converge to a 1e-15 tolerance by t=3")
	}
	if res.Reason != "time exhausted" {
		t.Errorf("reason %q, want time exhausted", res.Reason)
	}
	if res.Checks != 3 || res.T != 3 {
		t.Errorf("checks=%d t=%v, want 3 checks to t=3", res.Checks, res.T)
	}
	if res.Dist == nil {
		t.Error("partial result should still carry the last distribution")
	}
}
