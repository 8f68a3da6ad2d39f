package chart

import (
	"bytes"
	"fmt"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Fixed dark theme: black canvas, gray grid, white ticks, positional
// red/green/blue line palette.
var (
	backgroundColor = drawing.Color{A: 255}
	gridColor       = drawing.Color{R: 128, G: 128, B: 128, A: 255}
	tickColor       = drawing.Color{R: 255, G: 255, B: 255, A: 255}

	linePalette = []drawing.Color{
		{R: 255, A: 255},
		{G: 255, A: 255},
		{B: 255, A: 255},
	}
)

// Renderer rasterizes chart specs into PNG buffers. It holds only the fixed
// canvas size; rendering is a pure function of the spec and the theme.
type Renderer struct {
	width  int
	height int
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithSize sets the canvas size in pixels.
func WithSize(width, height int) RendererOption {
	return func(r *Renderer) {
		r.width = width
		r.height = height
	}
}

// NewRenderer creates a renderer with the default 1600x900 canvas.
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{width: 1600, height: 900}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render draws the spec as a line chart and returns the PNG bytes.
func (r *Renderer) Render(spec *Spec) ([]byte, error) {
	if len(spec.Series) == 0 {
		return nil, fmt.Errorf("chart spec has no series")
	}
	if len(spec.Labels) == 0 {
		return nil, fmt.Errorf("chart spec has no labels")
	}

	xs := make([]float64, len(spec.Labels))
	ticks := make([]gochart.Tick, len(spec.Labels))
	for i, label := range spec.Labels {
		xs[i] = float64(i)
		ticks[i] = gochart.Tick{Value: float64(i), Label: label}
	}

	series := make([]gochart.Series, 0, len(spec.Series))
	for _, s := range spec.Series {
		if len(s.Values) != len(spec.Labels) {
			return nil, fmt.Errorf("series %q has %d values for %d labels",
				s.Name, len(s.Values), len(spec.Labels))
		}
		series = append(series, gochart.ContinuousSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: s.Values,
			Style: gochart.Style{
				StrokeColor: linePalette[s.Color%len(linePalette)],
				StrokeWidth: 2,
			},
		})
	}

	graph := gochart.Chart{
		Width:      r.width,
		Height:     r.height,
		Background: gochart.Style{FillColor: backgroundColor},
		Canvas:     gochart.Style{FillColor: backgroundColor},
		XAxis: gochart.XAxis{
			Style:          gochart.Style{FontColor: tickColor, StrokeColor: gridColor},
			TickStyle:      gochart.Style{TextRotationDegrees: 45},
			Ticks:          ticks,
			GridMajorStyle: gochart.Style{StrokeColor: gridColor, StrokeWidth: 1},
		},
		YAxis: gochart.YAxis{
			Style:          gochart.Style{FontColor: tickColor, StrokeColor: gridColor},
			GridMajorStyle: gochart.Style{StrokeColor: gridColor, StrokeWidth: 1},
		},
		Series: series,
	}

	if rng := forcedRange(spec); rng != nil {
		graph.YAxis.Range = rng
	}

	graph.Elements = []gochart.Renderable{
		gochart.Legend(&graph, gochart.Style{
			FillColor:   backgroundColor,
			FontColor:   gridColor,
			StrokeColor: gridColor,
		}),
	}

	buf := new(bytes.Buffer)
	if err := graph.Render(gochart.PNG, buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}

// forcedRange converts the spec's optional bounds into a concrete axis
// range. Unset bounds fall back to the value extent, so a lone forced
// minimum still yields a sensible maximum.
func forcedRange(spec *Spec) *gochart.ContinuousRange {
	if spec.Bounds.Min == nil && spec.Bounds.Max == nil {
		return nil
	}

	min, max := valueExtent(spec)
	if spec.Bounds.Min != nil {
		min = *spec.Bounds.Min
	}
	if spec.Bounds.Max != nil {
		max = *spec.Bounds.Max
	}
	if max <= min {
		max = min + 1
	}
	return &gochart.ContinuousRange{Min: min, Max: max}
}

func valueExtent(spec *Spec) (min, max float64) {
	first := true
	for _, s := range spec.Series {
		for _, v := range s.Values {
			if first {
				min, max = v, v
				first = false
				continue
			}
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
	}
	return min, max
}
