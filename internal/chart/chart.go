// Package chart is the rendering interface between the plotting sandbox and
// the outside world: scripts build Figures, Render turns them into PNGs.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Kind is the mark type of a series.
type Kind string

const (
	Line    Kind = "line"
	Bar     Kind = "bar"
	BarH    Kind = "barh"
	Scatter Kind = "scatter"
	Hist    Kind = "hist"
	Pie     Kind = "pie"
)

const (
	DefaultWidth  = 1024
	DefaultHeight = 576
	DefaultBins   = 10
)

// Series is one set of marks. Categorical series carry Labels and Y;
// continuous ones carry X and Y. Hist series carry raw samples in Y.
type Series struct {
	Name   string
	Kind   Kind
	X      []float64
	Labels []string
	Y      []float64
	Bins   int
	Color  string // hex, optional
}

// Figure is a finished plot ready to render.
type Figure struct {
	Title  string
	XLabel string
	YLabel string
	Width  int
	Height int
	// XTime marks X values as unix seconds.
	XTime  bool
	Grid   bool
	Legend bool
	Series []Series
}

// ErrNoData is returned when a figure has nothing to draw.
var ErrNoData = errors.New("figure has no data to plot")

// Kind reports the figure's dominant mark type: pie if any series is a pie,
// bar when every series is bar-like, line otherwise.
func (f *Figure) Kind() Kind {
	if len(f.Series) == 0 {
		return Line
	}
	barLike := true
	for _, s := range f.Series {
		if s.Kind == Pie {
			return Pie
		}
		if s.Kind != Bar && s.Kind != BarH && s.Kind != Hist {
			barLike = false
		}
	}
	if barLike {
		if f.Series[0].Kind == Hist {
			return Hist
		}
		return Bar
	}
	return Line
}

// Empty reports whether no series holds a point.
func (f *Figure) Empty() bool {
	for _, s := range f.Series {
		if len(s.Y) > 0 {
			return false
		}
	}
	return true
}

func (f *Figure) size() (int, int) {
	w, h := f.Width, f.Height
	if w <= 0 {
		w = DefaultWidth
	}
	if h <= 0 {
		h = DefaultHeight
	}
	return w, h
}

// Palette is matplotlib's tab10 cycle, as hex without the leading #.
var Palette = []string{
	"1f77b4", "ff7f0e", "2ca02c", "d62728", "9467bd",
	"8c564b", "e377c2", "7f7f7f", "bcbd22", "17becf",
}

func seriesColor(s Series, i int) drawing.Color {
	if s.Color != "" {
		return drawing.ColorFromHex(trimHash(s.Color))
	}
	return drawing.ColorFromHex(Palette[i%len(Palette)])
}

func trimHash(s string) string {
	if len(s) > 0 && s[0] == '#' {
		return s[1:]
	}
	return s
}

// Render writes fig to w as PNG.
func Render(fig *Figure, w io.Writer) error {
	if fig == nil || fig.Empty() {
		return ErrNoData
	}
	switch fig.Kind() {
	case Pie:
		return renderPie(fig, w)
	case Bar, Hist:
		return renderBars(fig, w)
	default:
		return renderXY(fig, w)
	}
}

// RenderPNG renders fig into a byte slice.
func RenderPNG(fig *Figure) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(fig, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderPie(fig *Figure, w io.Writer) error {
	var s Series
	for _, cand := range fig.Series {
		if cand.Kind == Pie {
			s = cand
			break
		}
	}
	var total float64
	values := make([]gochart.Value, 0, len(s.Y))
	for i, v := range s.Y {
		if v <= 0 || math.IsNaN(v) {
			continue
		}
		total += v
		values = append(values, gochart.Value{
			Value: v,
			Label: labelAt(s.Labels, i),
			Style: gochart.Style{FillColor: drawing.ColorFromHex(Palette[i%len(Palette)])},
		})
	}
	if total == 0 {
		return fmt.Errorf("pie chart: %w", ErrNoData)
	}
	width, height := fig.size()
	pc := gochart.PieChart{
		Title:  fig.Title,
		Width:  width,
		Height: height,
		Values: values,
	}
	return pc.Render(gochart.PNG, w)
}

func renderBars(fig *Figure, w io.Writer) error {
	var bars []gochart.Value
	multi := len(fig.Series) > 1
	for si, s := range fig.Series {
		labels, heights := s.Labels, s.Y
		if s.Kind == Hist {
			labels, heights = Histogram(s.Y, s.Bins)
		}
		col := seriesColor(s, si)
		for i, v := range heights {
			if math.IsNaN(v) {
				continue
			}
			label := labelAt(labels, i)
			if multi && s.Name != "" {
				label = s.Name + ": " + label
			}
			bars = append(bars, gochart.Value{
				Value: v,
				Label: label,
				Style: gochart.Style{FillColor: col, StrokeColor: col},
			})
		}
	}
	if len(bars) == 0 {
		return ErrNoData
	}
	lo, hi := 0.0, 0.0
	for _, b := range bars {
		lo = math.Min(lo, b.Value)
		hi = math.Max(hi, b.Value)
	}
	lo, hi = padRange(lo, hi)
	if lo > 0 {
		lo = 0
	}
	width, height := fig.size()
	barWidth := (width - 160) / (2 * len(bars))
	barWidth = max(4, min(barWidth, 60))
	bc := gochart.BarChart{
		Title:      fig.Title,
		Width:      width,
		Height:     height,
		BarWidth:   barWidth,
		BarSpacing: max(2, barWidth/2),
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		YAxis: gochart.YAxis{
			Name:  fig.YLabel,
			Range: &gochart.ContinuousRange{Min: lo, Max: hi},
			Ticks: niceTicks(lo, hi, 6, false),
		},
		Bars: bars,
	}
	return bc.Render(gochart.PNG, w)
}

// pointStyle renders points only, no connecting line.
func pointStyle(col drawing.Color) gochart.Style {
	return gochart.Style{
		StrokeWidth: gochart.Disabled,
		DotWidth:    4,
		DotColor:    col,
	}
}

func renderXY(fig *Figure, w io.Writer) error {
	minX, maxX := math.MaxFloat64, -math.MaxFloat64
	minY, maxY := math.MaxFloat64, -math.MaxFloat64
	var categories []string
	var series []gochart.Series
	for si, s := range fig.Series {
		xs := s.X
		if len(xs) == 0 {
			xs = make([]float64, len(s.Y))
			for i := range xs {
				xs[i] = float64(i)
			}
			if len(s.Labels) > len(categories) {
				categories = s.Labels
			}
		}
		n := min(len(xs), len(s.Y))
		if n == 0 {
			continue
		}
		xv, yv := make([]float64, 0, n), make([]float64, 0, n)
		for i := 0; i < n; i++ {
			if math.IsNaN(xs[i]) || math.IsNaN(s.Y[i]) {
				continue
			}
			xv = append(xv, xs[i])
			yv = append(yv, s.Y[i])
			minX, maxX = math.Min(minX, xs[i]), math.Max(maxX, xs[i])
			minY, maxY = math.Min(minY, s.Y[i]), math.Max(maxY, s.Y[i])
		}
		if len(xv) == 0 {
			continue
		}
		col := seriesColor(s, si)
		style := gochart.Style{StrokeColor: col, StrokeWidth: 2}
		if s.Kind == Scatter {
			style = pointStyle(col)
		}
		series = append(series, gochart.ContinuousSeries{
			Name:    s.Name,
			XValues: xv,
			YValues: yv,
			Style:   style,
		})
	}
	if len(series) == 0 {
		return ErrNoData
	}
	minX, maxX = padRange(minX, maxX)
	minY, maxY = padRange(minY, maxY)

	xAxis := gochart.XAxis{
		Name:  fig.XLabel,
		Range: &gochart.ContinuousRange{Min: minX, Max: maxX},
		Ticks: niceTicks(minX, maxX, 8, fig.XTime),
	}
	if len(categories) > 0 {
		xAxis.Ticks = categoryTicks(categories)
	}
	yAxis := gochart.YAxis{
		Name:  fig.YLabel,
		Range: &gochart.ContinuousRange{Min: minY, Max: maxY},
		Ticks: niceTicks(minY, maxY, 6, false),
	}
	if fig.Grid {
		grid := gochart.Style{StrokeColor: gochart.ColorAlternateGray, StrokeWidth: 1}
		xAxis.GridMajorStyle = grid
		yAxis.GridMajorStyle = grid
	}
	width, height := fig.size()
	ch := gochart.Chart{
		Title:      fig.Title,
		Width:      width,
		Height:     height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 12, Bottom: 24}},
		XAxis:      xAxis,
		YAxis:      yAxis,
		Series:     series,
	}
	if fig.Legend {
		ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}
	}
	return ch.Render(gochart.PNG, w)
}

// Histogram bins samples into equal-width buckets and returns bucket labels
// (lower edge) and counts. NaN samples are ignored.
func Histogram(values []float64, bins int) ([]string, []float64) {
	if bins <= 0 {
		bins = DefaultBins
	}
	clean := values[:0:0]
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return nil, nil
	}
	lo, hi := clean[0], clean[0]
	for _, v := range clean[1:] {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	width := (hi - lo) / float64(bins)
	if width == 0 {
		width = 1
	}
	counts := make([]float64, bins)
	for _, v := range clean {
		b := int((v - lo) / width)
		if b >= bins {
			b = bins - 1
		}
		if b < 0 {
			b = 0
		}
		counts[b]++
	}
	labels := make([]string, bins)
	for i := range labels {
		labels[i] = formatTick(lo + float64(i)*width)
	}
	return labels, counts
}

func labelAt(labels []string, i int) string {
	if i < len(labels) {
		return labels[i]
	}
	return fmt.Sprint(i)
}

// padRange widens a degenerate or tight range so go-chart never sees a zero delta.
func padRange(lo, hi float64) (float64, float64) {
	if hi < lo {
		lo, hi = hi, lo
	}
	if hi == lo {
		d := math.Max(math.Abs(lo)*0.1, 1)
		return lo - d, hi + d
	}
	pad := (hi - lo) * 0.05
	return lo - pad, hi + pad
}

func categoryTicks(labels []string) []gochart.Tick {
	step := 1
	if len(labels) > 20 {
		step = int(math.Ceil(float64(len(labels)) / 20))
	}
	ticks := make([]gochart.Tick, 0, len(labels)/step+1)
	for i := 0; i < len(labels); i += step {
		ticks = append(ticks, gochart.Tick{Value: float64(i), Label: labels[i]})
	}
	return ticks
}

// niceTicks generates up to n tick marks between [lo, hi] using 1/2/2.5/5
// increments.
func niceTicks(lo, hi float64, n int, timeLabels bool) []gochart.Tick {
	if n < 2 || math.IsNaN(lo) || math.IsNaN(hi) {
		return nil
	}
	if hi <= lo {
		hi = lo + 1
	}
	span := hi - lo
	mag := math.Pow(10, math.Floor(math.Log10(span/float64(n-1))))
	bestStep, bestScore := mag, math.MaxFloat64
	for _, c := range []float64{1, 2, 2.5, 5, 10} {
		step := c * mag
		count := math.Max(math.Ceil(span/step), 2)
		if score := math.Abs(count - float64(n)); score < bestScore {
			bestScore, bestStep = score, step
		}
	}
	start := math.Ceil(lo/bestStep) * bestStep
	var ticks []gochart.Tick
	for v := start; v <= hi+bestStep*1e-9; v += bestStep {
		label := formatTick(v)
		if timeLabels {
			label = time.Unix(int64(v), 0).UTC().Format("2006-01-02")
		}
		ticks = append(ticks, gochart.Tick{Value: v, Label: label})
		if len(ticks) > n+2 {
			break
		}
	}
	return ticks
}

func formatTick(v float64) string {
	av := math.Abs(v)
	switch {
	case v == 0:
		return "0"
	case av >= 1000 || av == math.Trunc(av):
		return fmt.Sprintf("%.0f", v)
	case av >= 1:
		return fmt.Sprintf("%.1f", v)
	case av >= 0.01:
		return fmt.Sprintf("%.2f", v)
	default:
		return fmt.Sprintf("%.3g", v)
	}
}
