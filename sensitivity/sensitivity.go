// Package sensitivity analyzes how master-equation solutions change
// with reaction rate constants. This includes knockout analysis,
// parameter sweeps, finite-difference gradients, and grid search.
package sensitivity

import (
	"context"
	"math"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cme-xyz/go-cme/cme"
	"github.com/cme-xyz/go-cme/model"
	"github.com/cme-xyz/go-cme/statespace"
)

// Scorer evaluates a solve and returns a scalar score.
type Scorer func(points []cme.TimePoint) float64

// FinalMeanScorer scores a solve by the final mean copy number of one
// species.
func FinalMeanScorer(sp int) Scorer {
	return func(points []cme.TimePoint) float64 {
		return points[len(points)-1].Dist.Mean(sp)
	}
}

// FinalProbScorer scores a solve by the final probability of one state.
func FinalProbScorer(s model.State) Scorer {
	return func(points []cme.TimePoint) float64 {
		return points[len(points)-1].Dist.ProbOf(s)
	}
}

// SinkScorer scores a solve by the final truncation-error bound. Useful
// for finding the rates that drive probability out of the truncated set.
func SinkScorer() Scorer {
	return func(points []cme.TimePoint) float64 {
		return points[len(points)-1].Dist.Sink()
	}
}

// Result holds the outcome of a knockout analysis.
type Result struct {
	Baseline float64            // Score with original rate constants
	Scores   map[string]float64 // Score with each reaction disabled
	Impact   map[string]float64 // Change from baseline
	Ranking  []RankedParam      // Reactions sorted by absolute impact
}

// RankedParam pairs a reaction name with its impact.
type RankedParam struct {
	Name   string
	Impact float64
}

// Analyzer runs repeated solves of one model under perturbed rate
// constants.
type Analyzer struct {
	mdl    *model.Model
	times  []float64
	pred   statespace.Predicate
	opts   *cme.Options
	scorer Scorer
}

// NewAnalyzer creates an analyzer solving over the given time grid.
func NewAnalyzer(m *model.Model, times []float64, scorer Scorer) *Analyzer {
	return &Analyzer{
		mdl:    m,
		times:  times,
		opts:   cme.DefaultOptions(),
		scorer: scorer,
	}
}

// WithOptions sets the solve options.
func (a *Analyzer) WithOptions(opts *cme.Options) *Analyzer {
	a.opts = opts
	return a
}

// WithPredicate sets a bounding predicate and switches the analyzer to
// sparse reachability enumeration instead of the model's shape bounds.
func (a *Analyzer) WithPredicate(pred statespace.Predicate) *Analyzer {
	a.pred = pred
	return a
}

// withRate returns a copy of the model with reaction r's rate constant
// replaced. For Hill propensities the value replaces Vmax.
func (a *Analyzer) withRate(r int, k float64) *model.Model {
	m := *a.mdl
	m.Reactions = append([]model.Reaction(nil), a.mdl.Reactions...)
	switch p := m.Reactions[r].Rate.(type) {
	case model.Constant:
		p.K = k
		m.Reactions[r].Rate = p
	case model.MassAction:
		p.K = k
		m.Reactions[r].Rate = p
	case model.Hill:
		p.Vmax = k
		m.Reactions[r].Rate = p
	}
	return &m
}

// rateOf returns the current rate constant of reaction r, or 0 for
// propensity types without one.
func (a *Analyzer) rateOf(r int) float64 {
	switch p := a.mdl.Reactions[r].Rate.(type) {
	case model.Constant:
		return p.K
	case model.MassAction:
		return p.K
	case model.Hill:
		return p.Vmax
	}
	return 0
}

func (a *Analyzer) simulate(ctx context.Context, m *model.Model) (float64, error) {
	var s *cme.Solver
	var err error
	if a.pred != nil {
		s, err = cme.NewSparse(m, a.pred, a.opts)
	} else {
		s, err = cme.New(m, a.opts)
	}
	if err != nil {
		return 0, err
	}
	points, err := s.Solve(ctx, a.times)
	if err != nil {
		return 0, err
	}
	return a.scorer(points), nil
}

// Baseline solves with the original rate constants.
func (a *Analyzer) Baseline(ctx context.Context) (float64, error) {
	return a.simulate(ctx, a.mdl)
}

// AnalyzeRates measures the impact of disabling each reaction in turn,
// solving in parallel across reactions.
func (a *Analyzer) AnalyzeRates(ctx context.Context) (*Result, error) {
	result := &Result{
		Scores: make(map[string]float64),
		Impact: make(map[string]float64),
	}
	baseline, err := a.Baseline(ctx)
	if err != nil {
		return nil, err
	}
	result.Baseline = baseline

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for r := range a.mdl.Reactions {
		r := r
		g.Go(func() error {
			score, err := a.simulate(ctx, a.withRate(r, 0))
			if err != nil {
				return err
			}
			name := a.mdl.Reactions[r].Name
			mu.Lock()
			result.Scores[name] = score
			result.Impact[name] = score - baseline
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	result.Ranking = rankByImpact(result.Impact)
	return result, nil
}

func rankByImpact(impact map[string]float64) []RankedParam {
	ranking := make([]RankedParam, 0, len(impact))
	for name, imp := range impact {
		ranking = append(ranking, RankedParam{Name: name, Impact: imp})
	}
	sort.Slice(ranking, func(i, j int) bool {
		return math.Abs(ranking[i].Impact) > math.Abs(ranking[j].Impact)
	})
	return ranking
}

// SweepResult holds the scores over one swept parameter.
type SweepResult struct {
	Reaction string
	Values   []float64
	Scores   []float64
	Best     struct {
		Value float64
		Score float64
	}
	Worst struct {
		Value float64
		Score float64
	}
}

// SweepRate solves once per candidate rate constant for one reaction,
// in parallel.
func (a *Analyzer) SweepRate(ctx context.Context, reaction int, values []float64) (*SweepResult, error) {
	result := &SweepResult{
		Reaction: a.mdl.Reactions[reaction].Name,
		Values:   values,
		Scores:   make([]float64, len(values)),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, val := range values {
		i, val := i, val
		g.Go(func() error {
			score, err := a.simulate(ctx, a.withRate(reaction, val))
			if err != nil {
				return err
			}
			result.Scores[i] = score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bestScore, worstScore := math.Inf(-1), math.Inf(1)
	for i, score := range result.Scores {
		if score > bestScore {
			bestScore = score
			result.Best.Value = values[i]
			result.Best.Score = score
		}
		if score < worstScore {
			worstScore = score
			result.Worst.Value = values[i]
			result.Worst.Score = score
		}
	}
	return result, nil
}

// SweepRateRange sweeps evenly spaced values in [min, max].
func (a *Analyzer) SweepRateRange(ctx context.Context, reaction int, min, max float64, steps int) (*SweepResult, error) {
	return a.SweepRate(ctx, reaction, linspace(min, max, steps))
}

func linspace(min, max float64, steps int) []float64 {
	values := make([]float64, steps)
	for i := 0; i < steps; i++ {
		values[i] = min + (max-min)*float64(i)/float64(steps-1)
	}
	return values
}

// Gradient estimates the derivative of the score with respect to one
// reaction's rate constant by central difference. A zero h picks 1% of
// the current value.
func (a *Analyzer) Gradient(ctx context.Context, reaction int, h float64) (float64, error) {
	orig := a.rateOf(reaction)
	if h == 0 {
		h = 0.01 * orig
		if h == 0 {
			h = 0.01
		}
	}
	// Rate constants cannot go negative; the difference is taken over
	// the actual spacing when the lower point is clamped to zero.
	lo := orig - h
	if lo < 0 {
		lo = 0
	}

	scorePlus, err := a.simulate(ctx, a.withRate(reaction, orig+h))
	if err != nil {
		return 0, err
	}
	scoreMinus, err := a.simulate(ctx, a.withRate(reaction, lo))
	if err != nil {
		return 0, err
	}
	return (scorePlus - scoreMinus) / (orig + h - lo), nil
}

// AllGradients computes the gradient for every reaction in parallel.
func (a *Analyzer) AllGradients(ctx context.Context, h float64) (map[string]float64, error) {
	gradients := make(map[string]float64)
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for r := range a.mdl.Reactions {
		r := r
		g.Go(func() error {
			grad, err := a.Gradient(ctx, r, h)
			if err != nil {
				return err
			}
			mu.Lock()
			gradients[a.mdl.Reactions[r].Name] = grad
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return gradients, nil
}
