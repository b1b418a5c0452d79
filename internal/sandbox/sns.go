package sandbox

import (
	"fmt"
	"math"
	"sort"

	"go.starlark.net/starlark"

	"github.com/KaramelBytes/vizqa/internal/chart"
	"github.com/KaramelBytes/vizqa/internal/table"
)

// snsArgs holds the data=, x=, y= and hue= arguments common to seaborn calls.
type snsArgs struct {
	data       *frame
	x, y, hue  *series
	xName      string
	yName      string
	kwargs     []starlark.Tuple
	horizontal bool
}

func parseSNS(args starlark.Tuple, kwargs []starlark.Tuple) (*snsArgs, error) {
	a := &snsArgs{kwargs: kwargs}
	if d, ok := argOr(args, 0, kwargs, "data").(*frame); ok {
		a.data = d
	}
	var err error
	if a.x, err = a.resolve(kwarg(kwargs, "x")); err != nil {
		return nil, err
	}
	if a.y, err = a.resolve(kwarg(kwargs, "y")); err != nil {
		return nil, err
	}
	if a.hue, err = a.resolve(kwarg(kwargs, "hue")); err != nil {
		return nil, err
	}
	if a.x != nil {
		a.xName = a.x.col.Name
	}
	if a.y != nil {
		a.yName = a.y.col.Name
	}
	return a, nil
}

// resolve maps a column name (looked up in data) or a Series to a series.
func (a *snsArgs) resolve(v starlark.Value) (*series, error) {
	if v == nil || v == starlark.None {
		return nil, nil
	}
	if s, ok := v.(*series); ok {
		return s, nil
	}
	name, ok := starlark.AsString(v)
	if !ok {
		return nil, fmt.Errorf("expected a column name or Series, got %s", v.Type())
	}
	if a.data == nil {
		return nil, fmt.Errorf("column %q given without data=", name)
	}
	c, err := a.data.column(name)
	if err != nil {
		return nil, err
	}
	return &series{col: c}, nil
}

func (a *snsArgs) label(ax *chart.Figure) {
	if ax.XLabel == "" {
		ax.XLabel = a.xName
	}
	if ax.YLabel == "" {
		ax.YLabel = a.yName
	}
}

// groupFirstSeen buckets values by label in order of first appearance.
func groupFirstSeen(labels []string, vals []float64) ([]string, [][]float64) {
	pos := map[string]int{}
	var keys []string
	var groups [][]float64
	for i, l := range labels {
		if l == "NaN" || l == "NaT" {
			continue
		}
		p, ok := pos[l]
		if !ok {
			p = len(keys)
			pos[l] = p
			keys = append(keys, l)
			groups = append(groups, nil)
		}
		if vals != nil && !math.IsNaN(vals[i]) {
			groups[p] = append(groups[p], vals[i])
		}
	}
	return keys, groups
}

// estimatorName accepts estimator="sum" or estimator=sum.
func estimatorName(v starlark.Value) string {
	switch e := v.(type) {
	case nil:
		return "mean"
	case starlark.String:
		return string(e)
	case starlark.Callable:
		if e.Name() == "len" {
			return "count"
		}
		return e.Name()
	}
	return "mean"
}

func snsBarplot(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	a, err := parseSNS(args, kwargs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	if a.x == nil || a.y == nil {
		return nil, fmt.Errorf("%s: x and y are required", b.Name())
	}
	cat, num, kind := a.x, a.y, chart.Bar
	if a.x.col.Kind == table.Numeric && a.y.col.Kind != table.Numeric {
		cat, num, kind = a.y, a.x, chart.BarH
	}
	vals, err := num.floats()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	fn := estimatorName(kwarg(kwargs, "estimator"))
	keys, groups := groupFirstSeen(cat.labels(), vals)
	heights := make([]float64, len(keys))
	for i, g := range groups {
		if heights[i], err = aggregate(g, fn); err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
	}
	ax, err := targetAxes(thread, kwargs)
	if err != nil {
		return nil, err
	}
	ax.Series = append(ax.Series, chart.Series{
		Name: seriesName(kwargs), Kind: kind, Labels: keys, Y: heights, Color: colorHex(kwargs),
	})
	a.label(ax)
	return &axesValue{fig: ax}, nil
}

func snsCountplot(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	a, err := parseSNS(args, kwargs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	cat, kind := a.x, chart.Bar
	if cat == nil {
		cat, kind = a.y, chart.BarH
	}
	if cat == nil {
		return nil, fmt.Errorf("%s: x or y is required", b.Name())
	}
	labels := cat.labels()
	ones := make([]float64, len(labels))
	keys, groups := groupFirstSeen(labels, ones)
	counts := make([]float64, len(keys))
	for i, g := range groups {
		counts[i] = float64(len(g))
	}
	ax, err := targetAxes(thread, kwargs)
	if err != nil {
		return nil, err
	}
	ax.Series = append(ax.Series, chart.Series{
		Name: seriesName(kwargs), Kind: kind, Labels: keys, Y: counts, Color: colorHex(kwargs),
	})
	if kind == chart.Bar {
		a.yName = "count"
	} else {
		a.xName = "count"
	}
	a.label(ax)
	return &axesValue{fig: ax}, nil
}

func snsHistplot(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	a, err := parseSNS(args, kwargs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	s := a.x
	if s == nil {
		s = a.y
	}
	if s == nil {
		return nil, fmt.Errorf("%s: x is required", b.Name())
	}
	vals, err := s.floats()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	ax, err := targetAxes(thread, kwargs)
	if err != nil {
		return nil, err
	}
	ax.Series = append(ax.Series, chart.Series{
		Name: seriesName(kwargs), Kind: chart.Hist, Y: vals, Bins: kwInt(kwargs, "bins", chart.DefaultBins), Color: colorHex(kwargs),
	})
	a.yName = "Count"
	a.label(ax)
	return &axesValue{fig: ax}, nil
}

// snsRelplot builds scatterplot and lineplot. hue= splits the data into one
// series per group; lineplot averages y over repeated x values.
func snsRelplot(kind chart.Kind) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		a, err := parseSNS(args, kwargs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		if a.x == nil || a.y == nil {
			return nil, fmt.Errorf("%s: x and y are required", b.Name())
		}
		ys, err := a.y.floats()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		xa, err := toAxis(a.x)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		groups := [][]int{span(0, len(ys))}
		names := []string{seriesName(kwargs)}
		if a.hue != nil {
			var keys []string
			keys, groups = groupRows(a.hue.labels())
			names = keys
		}
		ax, err := targetAxes(thread, kwargs)
		if err != nil {
			return nil, err
		}
		for gi, rows := range groups {
			s := chart.Series{Name: names[gi], Kind: kind}
			if a.hue == nil {
				s.Color = colorHex(kwargs)
			}
			if kind == chart.Line {
				lineSeries(&s, xa, ys, rows)
			} else {
				for _, r := range rows {
					s.Y = append(s.Y, ys[r])
					if xa.labels != nil {
						s.Labels = append(s.Labels, xa.labels[r])
					} else {
						s.X = append(s.X, xa.xs[r])
					}
				}
			}
			ax.Series = append(ax.Series, s)
		}
		if xa.time {
			ax.XTime = true
		}
		if a.hue != nil {
			ax.Legend = true
		}
		a.label(ax)
		return &axesValue{fig: ax}, nil
	}
}

// lineSeries averages y per distinct x and orders points along x.
func lineSeries(s *chart.Series, xa axis, ys []float64, rows []int) {
	if xa.labels != nil {
		labels := make([]string, len(rows))
		vals := make([]float64, len(rows))
		for i, r := range rows {
			labels[i], vals[i] = xa.labels[r], ys[r]
		}
		keys, groups := groupFirstSeen(labels, vals)
		s.Labels = keys
		for _, g := range groups {
			m, _ := aggregate(g, "mean")
			s.Y = append(s.Y, m)
		}
		return
	}
	sums := map[float64][]float64{}
	for _, r := range rows {
		x, y := xa.xs[r], ys[r]
		if math.IsNaN(x) || math.IsNaN(y) {
			continue
		}
		sums[x] = append(sums[x], y)
	}
	xs := make([]float64, 0, len(sums))
	for x := range sums {
		xs = append(xs, x)
	}
	sort.Float64s(xs)
	for _, x := range xs {
		m, _ := aggregate(sums[x], "mean")
		s.X = append(s.X, x)
		s.Y = append(s.Y, m)
	}
}

// groupRows buckets row positions by label in order of first appearance.
func groupRows(labels []string) ([]string, [][]int) {
	pos := map[string]int{}
	var keys []string
	var rows [][]int
	for i, l := range labels {
		p, ok := pos[l]
		if !ok {
			p = len(keys)
			pos[l] = p
			keys = append(keys, l)
			rows = append(rows, nil)
		}
		rows[p] = append(rows[p], i)
	}
	return keys, rows
}
