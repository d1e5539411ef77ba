// Package plotter renders SVG figures for master-equation solutions:
// moment time series, truncation error bounds, and marginal
// distributions.
package plotter

import (
	"fmt"
	"math"
	"strings"

	"github.com/cme-xyz/go-cme/cme"
	"github.com/cme-xyz/go-cme/statistics"
)

// Series is a single line to plot.
type Series struct {
	X     []float64
	Y     []float64
	Label string
	Color string
}

// SVGPlotter accumulates series and renders them as a single SVG
// figure with axes, grid, and a legend.
type SVGPlotter struct {
	Width  float64
	Height float64
	Title  string
	XLabel string
	YLabel string
	Series []Series

	margin     map[string]float64
	plotWidth  float64
	plotHeight float64
}

// NewSVGPlotter creates a plotter with the given pixel dimensions.
func NewSVGPlotter(width, height float64) *SVGPlotter {
	margin := map[string]float64{"top": 40, "right": 30, "bottom": 50, "left": 60}
	return &SVGPlotter{
		Width:      width,
		Height:     height,
		XLabel:     "Time",
		YLabel:     "Value",
		margin:     margin,
		plotWidth:  width - margin["left"] - margin["right"],
		plotHeight: height - margin["top"] - margin["bottom"],
	}
}

// SetTitle sets the plot title.
func (p *SVGPlotter) SetTitle(t string) *SVGPlotter {
	p.Title = t
	return p
}

// SetXLabel sets the X-axis label.
func (p *SVGPlotter) SetXLabel(s string) *SVGPlotter {
	p.XLabel = s
	return p
}

// SetYLabel sets the Y-axis label.
func (p *SVGPlotter) SetYLabel(s string) *SVGPlotter {
	p.YLabel = s
	return p
}

// AddSeries adds a data series. An empty color picks from a default
// palette.
func (p *SVGPlotter) AddSeries(x, y []float64, label, color string) *SVGPlotter {
	if color == "" {
		colors := []string{"#e41a1c", "#377eb8", "#4daf4a", "#984ea3", "#ff7f00", "#a65628", "#f781bf"}
		color = colors[len(p.Series)%len(colors)]
	}
	p.Series = append(p.Series, Series{X: x, Y: y, Label: label, Color: color})
	return p
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}

// Render generates the SVG document.
func (p *SVGPlotter) Render() string {
	xmin, xmax := math.Inf(1), math.Inf(-1)
	ymin, ymax := math.Inf(1), math.Inf(-1)
	for _, s := range p.Series {
		for i := range s.X {
			xmin = math.Min(xmin, s.X[i])
			xmax = math.Max(xmax, s.X[i])
			ymin = math.Min(ymin, s.Y[i])
			ymax = math.Max(ymax, s.Y[i])
		}
	}
	if math.IsInf(xmin, 1) {
		xmin, xmax = 0, 1
	}
	if math.IsInf(ymin, 1) {
		ymin, ymax = 0, 1
	}
	xrange := xmax - xmin
	if xrange == 0 {
		xrange = 1
	}
	yrange := ymax - ymin
	if yrange == 0 {
		yrange = 1
	}
	xmin -= xrange * 0.05
	xmax += xrange * 0.05
	ymin -= yrange * 0.1
	ymax += yrange * 0.1

	sx := func(x float64) float64 {
		return p.margin["left"] + ((x-xmin)/(xmax-xmin))*p.plotWidth
	}
	sy := func(y float64) float64 {
		return p.margin["top"] + p.plotHeight - ((y-ymin)/(ymax-ymin))*p.plotHeight
	}

	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d">`,
		int(p.Width), int(p.Height)))
	sb.WriteString(fmt.Sprintf(`<rect width="%d" height="%d" fill="#f8f9fa" rx="8"/>`,
		int(p.Width), int(p.Height)))

	if p.Title != "" {
		sb.WriteString(fmt.Sprintf(`<text x="%f" y="25" text-anchor="middle" font-family="Arial, sans-serif" font-size="16" font-weight="bold">%s</text>`,
			p.Width/2, escape(p.Title)))
	}

	// Axes
	sb.WriteString(fmt.Sprintf(`<line x1="%f" y1="%f" x2="%f" y2="%f" stroke="#333" stroke-width="2"/>`,
		p.margin["left"], p.margin["top"], p.margin["left"], p.margin["top"]+p.plotHeight))
	sb.WriteString(fmt.Sprintf(`<line x1="%f" y1="%f" x2="%f" y2="%f" stroke="#333" stroke-width="2"/>`,
		p.margin["left"], p.margin["top"]+p.plotHeight, p.margin["left"]+p.plotWidth, p.margin["top"]+p.plotHeight))

	// Axis labels
	sb.WriteString(fmt.Sprintf(`<text x="%f" y="%f" text-anchor="middle" font-family="Arial, sans-serif" font-size="12">%s</text>`,
		p.margin["left"]+p.plotWidth/2, p.Height-10, escape(p.XLabel)))
	sb.WriteString(fmt.Sprintf(`<text x="15" y="%f" text-anchor="middle" font-family="Arial, sans-serif" font-size="12" transform="rotate(-90, 15, %f)">%s</text>`,
		p.margin["top"]+p.plotHeight/2, p.margin["top"]+p.plotHeight/2, escape(p.YLabel)))

	// Grid and ticks
	const numTicks = 5
	for i := 0; i <= numTicks; i++ {
		x := xmin + (xmax-xmin)*float64(i)/numTicks
		px := sx(x)
		sb.WriteString(fmt.Sprintf(`<line x1="%f" y1="%f" x2="%f" y2="%f" stroke="#333" stroke-width="1"/>`,
			px, p.margin["top"]+p.plotHeight, px, p.margin["top"]+p.plotHeight+5))
		sb.WriteString(fmt.Sprintf(`<text x="%f" y="%f" text-anchor="middle" font-family="Arial, sans-serif" font-size="10">%.2g</text>`,
			px, p.margin["top"]+p.plotHeight+20, x))
		sb.WriteString(fmt.Sprintf(`<line x1="%f" y1="%f" x2="%f" y2="%f" stroke="#ddd" stroke-width="0.5"/>`,
			px, p.margin["top"], px, p.margin["top"]+p.plotHeight))

		y := ymin + (ymax-ymin)*float64(i)/numTicks
		py := sy(y)
		sb.WriteString(fmt.Sprintf(`<line x1="%f" y1="%f" x2="%f" y2="%f" stroke="#333" stroke-width="1"/>`,
			p.margin["left"]-5, py, p.margin["left"], py))
		sb.WriteString(fmt.Sprintf(`<text x="%f" y="%f" text-anchor="end" font-family="Arial, sans-serif" font-size="10">%.2g</text>`,
			p.margin["left"]-10, py+4, y))
		sb.WriteString(fmt.Sprintf(`<line x1="%f" y1="%f" x2="%f" y2="%f" stroke="#ddd" stroke-width="0.5"/>`,
			p.margin["left"], py, p.margin["left"]+p.plotWidth, py))
	}

	// Series paths
	for _, s := range p.Series {
		if len(s.X) == 0 {
			continue
		}
		path := strings.Builder{}
		for i := range s.X {
			if i == 0 {
				path.WriteString(fmt.Sprintf("M%f,%f", sx(s.X[i]), sy(s.Y[i])))
			} else {
				path.WriteString(fmt.Sprintf(" L%f,%f", sx(s.X[i]), sy(s.Y[i])))
			}
		}
		sb.WriteString(fmt.Sprintf(`<path d="%s" stroke="%s" stroke-width="2" fill="none"/>`,
			path.String(), s.Color))
	}

	// Legend
	legendY := p.margin["top"] + 10
	for _, s := range p.Series {
		if s.Label == "" {
			continue
		}
		x1 := p.Width - p.margin["right"] - 50
		x2 := p.Width - p.margin["right"] - 30
		sb.WriteString(fmt.Sprintf(`<line x1="%f" y1="%f" x2="%f" y2="%f" stroke="%s" stroke-width="2"/>`,
			x1, legendY, x2, legendY, s.Color))
		sb.WriteString(fmt.Sprintf(`<text x="%f" y="%f" font-family="Arial, sans-serif" font-size="10">%s</text>`,
			x2+5, legendY+4, escape(s.Label)))
		legendY += 20
	}

	sb.WriteString(`</svg>`)
	return sb.String()
}

// PlotMeans renders the mean copy number of each named species over the
// reported time points.
func PlotMeans(points []cme.TimePoint, species []string, width, height float64, title string) string {
	p := NewSVGPlotter(width, height).SetTitle(title).SetYLabel("Mean copy number")
	times := make([]float64, len(points))
	for i, tp := range points {
		times[i] = tp.T
	}
	for sp, name := range species {
		means := make([]float64, len(points))
		for i, tp := range points {
			means[i] = tp.Dist.Mean(sp)
		}
		p.AddSeries(times, means, name, "")
	}
	return p.Render()
}

// PlotErrorBound renders the FSP sink probability over time.
func PlotErrorBound(points []cme.TimePoint, width, height float64) string {
	p := NewSVGPlotter(width, height).
		SetTitle("Truncation error bound").
		SetYLabel("Sink probability")
	times := make([]float64, len(points))
	sinks := make([]float64, len(points))
	for i, tp := range points {
		times[i] = tp.T
		sinks[i] = tp.Dist.Sink()
	}
	return p.AddSeries(times, sinks, "bound", "").Render()
}

// PlotMarginal renders the marginal distribution of one species as a
// line over copy number.
func PlotMarginal(dist *statistics.Distribution, sp int, name string, width, height float64) string {
	marginal := dist.Marginal1D(sp)
	x := make([]float64, len(marginal))
	for i := range x {
		x[i] = float64(i)
	}
	return NewSVGPlotter(width, height).
		SetTitle("Marginal of " + name).
		SetXLabel("Copy number").
		SetYLabel("Probability").
		AddSeries(x, marginal, name, "").
		Render()
}
