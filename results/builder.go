package results

import (
	"time"

	"github.com/google/uuid"

	"github.com/cme-xyz/go-cme/cme"
	"github.com/cme-xyz/go-cme/model"
)

// Builder accumulates solve output into a Run record.
type Builder struct {
	run   Run
	start time.Time
}

// NewBuilder creates a builder for one solve of the given model.
func NewBuilder(m *model.Model, method string) *Builder {
	md := Model{
		Name:    m.Name,
		Species: append([]string(nil), m.Species...),
		Shape:   append([]int(nil), m.Shape...),
		Initial: append([]int(nil), m.Initial...),
	}
	for _, r := range m.Reactions {
		md.Reactions = append(md.Reactions, r.Name)
	}
	return &Builder{
		run: Run{
			Version: SchemaVersion,
			ID:      uuid.New().String(),
			Metadata: Metadata{
				Timestamp: time.Now().UTC(),
				Method:    method,
				Status:    "success",
			},
			Model: md,
			Series: Series{
				Mean:     make(map[string][]float64),
				Variance: make(map[string][]float64),
			},
		},
		start: time.Now(),
	}
}

// AddPoints appends the statistics of each reported time point.
func (b *Builder) AddPoints(points []cme.TimePoint) *Builder {
	for _, tp := range points {
		b.run.Series.Times = append(b.run.Series.Times, tp.T)
		b.run.Series.Sink = append(b.run.Series.Sink, tp.Dist.Sink())
		for sp, name := range b.run.Model.Species {
			b.run.Series.Mean[name] = append(b.run.Series.Mean[name], tp.Dist.Mean(sp))
			b.run.Series.Variance[name] = append(b.run.Series.Variance[name], tp.Dist.Variance(sp))
		}
		b.run.Metadata.States = tp.Dist.Space().Size()
	}
	if n := len(points); n > 0 {
		final := points[n-1].Dist
		b.run.Series.FinalMarginals = make(map[string][]float64)
		for sp, name := range b.run.Model.Species {
			b.run.Series.FinalMarginals[name] = final.Marginal1D(sp)
		}
	}
	return b
}

// Fail records a failed solve.
func (b *Builder) Fail(err error) *Builder {
	b.run.Metadata.Status = "error"
	b.run.Metadata.Error = err.Error()
	return b
}

// Build finalizes and returns the run record.
func (b *Builder) Build() *Run {
	b.run.Metadata.ComputeTime = time.Since(b.start).Seconds()
	return &b.run
}
