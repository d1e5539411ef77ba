package sensitivity

import (
	"context"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/cme-xyz/go-cme/model"
)

// GridSearch sweeps combinations of rate constants over multiple
// reactions.
type GridSearch struct {
	analyzer   *Analyzer
	parameters map[int][]float64
}

// NewGridSearch creates a grid search driven by the analyzer's model
// and scorer.
func NewGridSearch(analyzer *Analyzer) *GridSearch {
	return &GridSearch{
		analyzer:   analyzer,
		parameters: make(map[int][]float64),
	}
}

// AddParameter adds a reaction to sweep with explicit values.
func (g *GridSearch) AddParameter(reaction int, values []float64) *GridSearch {
	g.parameters[reaction] = values
	return g
}

// AddParameterRange adds a reaction to sweep with evenly spaced values.
func (g *GridSearch) AddParameterRange(reaction int, min, max float64, steps int) *GridSearch {
	g.parameters[reaction] = linspace(min, max, steps)
	return g
}

// GridResult holds the grid-search outcome.
type GridResult struct {
	Combinations []map[int]float64
	Scores       []float64
	Best         struct {
		Parameters map[int]float64
		Score      float64
		Index      int
	}
}

// Run solves every combination in parallel and reports the best score.
func (g *GridSearch) Run(ctx context.Context) (*GridResult, error) {
	combinations := g.generateCombinations()
	result := &GridResult{
		Combinations: combinations,
		Scores:       make([]float64, len(combinations)),
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, combo := range combinations {
		i, combo := i, combo
		eg.Go(func() error {
			m := g.applyCombo(combo)
			score, err := g.analyzer.simulate(ctx, m)
			if err != nil {
				return err
			}
			result.Scores[i] = score
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	bestScore := math.Inf(-1)
	for i, score := range result.Scores {
		if score > bestScore {
			bestScore = score
			result.Best.Parameters = combinations[i]
			result.Best.Score = score
			result.Best.Index = i
		}
	}
	return result, nil
}

func (g *GridSearch) applyCombo(combo map[int]float64) *model.Model {
	m := g.analyzer.mdl
	for r, val := range combo {
		a := Analyzer{mdl: m}
		m = a.withRate(r, val)
	}
	return m
}

// generateCombinations enumerates the cartesian product of the swept
// values, with reactions iterated in index order.
func (g *GridSearch) generateCombinations() []map[int]float64 {
	params := make([]int, 0, len(g.parameters))
	for p := range g.parameters {
		params = append(params, p)
	}
	sort.Ints(params)

	total := 1
	for _, p := range params {
		total *= len(g.parameters[p])
	}

	combinations := make([]map[int]float64, total)
	for i := 0; i < total; i++ {
		combo := make(map[int]float64)
		idx := i
		for _, p := range params {
			values := g.parameters[p]
			combo[p] = values[idx%len(values)]
			idx /= len(values)
		}
		combinations[i] = combo
	}
	return combinations
}
