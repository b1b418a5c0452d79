package sandbox

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/KaramelBytes/vizqa/internal/analysis"
	"github.com/KaramelBytes/vizqa/internal/table"
)

// series is one column exposed to scripts, optionally with index labels
// (value_counts and groupby results carry their group keys there).
type series struct {
	col   *table.Column
	index []string
}

var (
	_ starlark.Mapping   = (*series)(nil)
	_ starlark.Sequence  = (*series)(nil)
	_ starlark.HasAttrs  = (*series)(nil)
	_ starlark.HasBinary = (*series)(nil)
)

func newNumericSeries(name string, index []string, vals []float64, intLike bool) *series {
	col := &table.Column{Name: name, Kind: table.Numeric, IntLike: intLike, Values: make([]table.Value, len(vals))}
	for i, f := range vals {
		if math.IsNaN(f) {
			col.Values[i] = table.Null()
		} else {
			col.Values[i] = table.Number(f)
		}
	}
	return &series{col: col, index: index}
}

func (s *series) String() string {
	return fmt.Sprintf("Series(name=%q, length=%d, dtype=%s)", s.col.Name, s.col.Len(), s.col.DType())
}
func (s *series) Type() string         { return "Series" }
func (s *series) Freeze()              {}
func (s *series) Truth() starlark.Bool { return s.col.Len() > 0 }
func (s *series) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: Series")
}

func (s *series) Len() int { return s.col.Len() }

func (s *series) Index(i int) starlark.Value {
	v := s.col.Values[i]
	if !v.Valid {
		return starlark.None
	}
	switch s.col.Kind {
	case table.Numeric:
		if s.col.IntLike {
			return number(v.Num)
		}
		return starlark.Float(v.Num)
	case table.Datetime:
		return starlark.String(table.FormatTime(v.Time))
	default:
		return starlark.String(v.Str)
	}
}

func (s *series) Iterate() starlark.Iterator { return &indexIterator{seq: s} }

// Get supports positional access s[0] and label access s["north"].
func (s *series) Get(k starlark.Value) (starlark.Value, bool, error) {
	if label, ok := starlark.AsString(k); ok {
		for i, l := range s.indexLabels() {
			if l == label {
				return s.Index(i), true, nil
			}
		}
		return nil, false, fmt.Errorf("label %q not in Series index", label)
	}
	var i int
	if err := starlark.AsInt(k, &i); err != nil {
		return nil, false, fmt.Errorf("Series index must be int or label, got %s", k.Type())
	}
	if i < 0 {
		i += s.Len()
	}
	if i < 0 || i >= s.Len() {
		return nil, false, fmt.Errorf("Series index %d out of range (length %d)", i, s.Len())
	}
	return s.Index(i), true, nil
}

func (s *series) indexLabels() []string {
	if s.index != nil {
		return s.index
	}
	out := make([]string, s.Len())
	for i := range out {
		out[i] = strconv.Itoa(i)
	}
	return out
}

// labels renders the values (not the index) as strings.
func (s *series) labels() []string {
	out := make([]string, s.Len())
	for i := range out {
		out[i] = s.col.Display(i)
	}
	return out
}

// floats returns the values as numbers; datetimes become unix seconds.
func (s *series) floats() ([]float64, error) {
	out := make([]float64, s.Len())
	for i, v := range s.col.Values {
		if !v.Valid {
			out[i] = math.NaN()
			continue
		}
		switch s.col.Kind {
		case table.Numeric:
			out[i] = v.Num
		case table.Datetime:
			out[i] = float64(v.Time.Unix())
		default:
			f, err := strconv.ParseFloat(v.Str, 64)
			if err != nil {
				return nil, fmt.Errorf("column %q is not numeric", s.col.Name)
			}
			out[i] = f
		}
	}
	return out, nil
}

func (s *series) present() []float64 {
	vals, err := s.floats()
	if err != nil {
		return nil
	}
	out := vals[:0]
	for _, f := range vals {
		if !math.IsNaN(f) {
			out = append(out, f)
		}
	}
	return out
}

// subset returns a series of the given positions.
func (s *series) subset(rows []int) *series {
	col := &table.Column{Name: s.col.Name, Kind: s.col.Kind, IntLike: s.col.IntLike, Values: make([]table.Value, len(rows))}
	var index []string
	if s.index != nil {
		index = make([]string, len(rows))
	}
	for j, r := range rows {
		col.Values[j] = s.col.Values[r]
		if index != nil {
			index[j] = s.index[r]
		}
	}
	return &series{col: col, index: index}
}

var seriesMethods = []string{
	"count", "dropna", "head", "max", "mean", "median", "min", "nunique", "plot",
	"sort_index", "sort_values", "std", "sum", "tail", "tolist", "to_list", "unique", "value_counts",
}

func (s *series) AttrNames() []string {
	return append([]string{"dtype", "empty", "index", "name", "size", "values"}, seriesMethods...)
}

func (s *series) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.String(s.col.Name), nil
	case "dtype":
		return starlark.String(s.col.DType()), nil
	case "size":
		return starlark.MakeInt(s.Len()), nil
	case "empty":
		return starlark.Bool(s.Len() == 0), nil
	case "values":
		return s.toList(), nil
	case "index":
		if s.index == nil {
			out := make([]starlark.Value, s.Len())
			for i := range out {
				out[i] = starlark.MakeInt(i)
			}
			return starlark.NewList(out), nil
		}
		return stringsList(s.index), nil
	}
	fn, ok := seriesBuiltins[name]
	if !ok {
		return nil, nil
	}
	return starlark.NewBuiltin(name, fn).BindReceiver(s), nil
}

type seriesFn = func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error)

var seriesBuiltins map[string]seriesFn

func init() {
	reduce := func(fn string) seriesFn {
		return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			s := b.Receiver().(*series)
			if fn == "count" {
				return starlark.MakeInt(s.Len() - s.col.Missing()), nil
			}
			if s.col.Kind == table.Text {
				return nil, fmt.Errorf("%s: column %q is not numeric", fn, s.col.Name)
			}
			v, err := aggregate(s.present(), fn)
			if err != nil {
				return nil, err
			}
			if fn == "sum" && s.col.IntLike {
				return number(v), nil
			}
			if math.IsNaN(v) {
				return starlark.None, nil
			}
			return starlark.Float(v), nil
		}
	}
	seriesBuiltins = map[string]seriesFn{
		"count":  reduce("count"),
		"sum":    reduce("sum"),
		"mean":   reduce("mean"),
		"median": reduce("median"),
		"min":    reduce("min"),
		"max":    reduce("max"),
		"std":    reduce("std"),
		"tolist": func(_ *starlark.Thread, b *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			return b.Receiver().(*series).toList(), nil
		},
		"unique": func(_ *starlark.Thread, b *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			return b.Receiver().(*series).unique(), nil
		},
		"nunique": func(_ *starlark.Thread, b *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			return starlark.MakeInt(analysis.Unique(b.Receiver().(*series).col)), nil
		},
		"value_counts": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var ascending, normalize bool
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "normalize?", &normalize, "ascending?", &ascending); err != nil {
				return nil, err
			}
			return valueCounts(b.Receiver().(*series).col, normalize, ascending), nil
		},
		"head": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			n := 5
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n?", &n); err != nil {
				return nil, err
			}
			s := b.Receiver().(*series)
			return s.subset(span(0, clampInt(n, 0, s.Len()))), nil
		},
		"tail": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			n := 5
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n?", &n); err != nil {
				return nil, err
			}
			s := b.Receiver().(*series)
			return s.subset(span(s.Len()-clampInt(n, 0, s.Len()), s.Len())), nil
		},
		"dropna": func(_ *starlark.Thread, b *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			s := b.Receiver().(*series)
			var rows []int
			for i, v := range s.col.Values {
				if v.Valid {
					rows = append(rows, i)
				}
			}
			return s.subset(rows), nil
		},
		"sort_values": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			ascending := true
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "ascending?", &ascending); err != nil {
				return nil, err
			}
			s := b.Receiver().(*series)
			return s.subset(sortedRows(s.col, ascending)), nil
		},
		"sort_index": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			ascending := true
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "ascending?", &ascending); err != nil {
				return nil, err
			}
			s := b.Receiver().(*series)
			labels := s.indexLabels()
			rows := span(0, s.Len())
			sort.SliceStable(rows, func(i, j int) bool {
				if ascending {
					return lessLabel(labels[rows[i]], labels[rows[j]])
				}
				return lessLabel(labels[rows[j]], labels[rows[i]])
			})
			return s.subset(rows), nil
		},
		"plot": seriesPlot,
	}
	seriesBuiltins["to_list"] = seriesBuiltins["tolist"]
}

func (s *series) toList() *starlark.List {
	out := make([]starlark.Value, s.Len())
	for i := range out {
		out[i] = s.Index(i)
	}
	return starlark.NewList(out)
}

func (s *series) unique() *starlark.List {
	seen := map[string]bool{}
	var out []starlark.Value
	for i, v := range s.col.Values {
		if !v.Valid {
			continue
		}
		key := s.col.Display(i)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s.Index(i))
	}
	return starlark.NewList(out)
}

// valueCounts counts present values, most frequent first.
func valueCounts(c *table.Column, normalize, ascending bool) *series {
	counts := analysis.TopValues(c, 0)
	if ascending {
		sort.SliceStable(counts, func(i, j int) bool { return counts[i].Count < counts[j].Count })
	}
	total := float64(c.Len() - c.Missing())
	index := make([]string, len(counts))
	vals := make([]float64, len(counts))
	for i, cc := range counts {
		index[i] = cc.Value
		vals[i] = float64(cc.Count)
		if normalize && total > 0 {
			vals[i] /= total
		}
	}
	name := "count"
	if normalize {
		name = "proportion"
	}
	return newNumericSeries(name, index, vals, !normalize)
}

// Binary implements element-wise arithmetic with scalars and series.
func (s *series) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	switch op {
	case syntax.PLUS, syntax.MINUS, syntax.STAR, syntax.SLASH:
	default:
		return nil, nil
	}
	left, err := s.floats()
	if err != nil {
		return nil, err
	}
	var right []float64
	intLike := s.col.IntLike && op != syntax.SLASH
	switch other := y.(type) {
	case *series:
		if right, err = other.floats(); err != nil {
			return nil, err
		}
		if len(right) != len(left) {
			return nil, fmt.Errorf("Series lengths differ: %d and %d", len(left), len(right))
		}
		intLike = intLike && other.col.IntLike
	default:
		f, ok := starlark.AsFloat(y)
		if !ok {
			return nil, nil
		}
		_, isInt := y.(starlark.Int)
		intLike = intLike && isInt
		right = make([]float64, len(left))
		for i := range right {
			right[i] = f
		}
	}
	if side == starlark.Right {
		left, right = right, left
	}
	out := make([]float64, len(left))
	for i := range out {
		a, b := left[i], right[i]
		switch op {
		case syntax.PLUS:
			out[i] = a + b
		case syntax.MINUS:
			out[i] = a - b
		case syntax.STAR:
			out[i] = a * b
		case syntax.SLASH:
			if b == 0 {
				out[i] = math.NaN()
			} else {
				out[i] = a / b
			}
		}
	}
	return newNumericSeries(s.col.Name, s.index, out, intLike), nil
}

// aggregate reduces present values; an empty input yields NaN.
func aggregate(vals []float64, fn string) (float64, error) {
	if fn == "count" || fn == "size" {
		return float64(len(vals)), nil
	}
	if len(vals) == 0 {
		if fn == "sum" {
			return 0, nil
		}
		return math.NaN(), nil
	}
	switch fn {
	case "sum", "mean":
		var sum float64
		for _, f := range vals {
			sum += f
		}
		if fn == "mean" {
			return sum / float64(len(vals)), nil
		}
		return sum, nil
	case "min", "max":
		out := vals[0]
		for _, f := range vals[1:] {
			if fn == "min" {
				out = math.Min(out, f)
			} else {
				out = math.Max(out, f)
			}
		}
		return out, nil
	case "median":
		sorted := append([]float64(nil), vals...)
		sort.Float64s(sorted)
		n := len(sorted)
		if n%2 == 1 {
			return sorted[n/2], nil
		}
		return (sorted[n/2-1] + sorted[n/2]) / 2, nil
	case "std":
		if len(vals) < 2 {
			return math.NaN(), nil
		}
		mean, _ := aggregate(vals, "mean")
		var ss float64
		for _, f := range vals {
			ss += (f - mean) * (f - mean)
		}
		return math.Sqrt(ss / float64(len(vals)-1)), nil
	}
	return 0, fmt.Errorf("unsupported aggregation %q (use sum, mean, median, count, min, max or std)", fn)
}

// sortedRows orders row positions by value; missing values sort last.
func sortedRows(c *table.Column, ascending bool) []int {
	rows := span(0, c.Len())
	less := func(a, b table.Value) bool {
		switch c.Kind {
		case table.Numeric:
			return a.Num < b.Num
		case table.Datetime:
			return a.Time.Before(b.Time)
		default:
			return a.Str < b.Str
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := c.Values[rows[i]], c.Values[rows[j]]
		if !a.Valid || !b.Valid {
			return a.Valid && !b.Valid
		}
		if ascending {
			return less(a, b)
		}
		return less(b, a)
	})
	return rows
}

// lessLabel compares numerically when both labels are numbers.
func lessLabel(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		return fa < fb
	}
	return a < b
}

func span(from, to int) []int {
	if to < from {
		return nil
	}
	out := make([]int, to-from)
	for i := range out {
		out[i] = from + i
	}
	return out
}

func clampInt(n, lo, hi int) int {
	return max(lo, min(n, hi))
}

type indexIterator struct {
	seq starlark.Indexable
	i   int
}

func (it *indexIterator) Next(p *starlark.Value) bool {
	if it.i >= it.seq.Len() {
		return false
	}
	*p = it.seq.Index(it.i)
	it.i++
	return true
}

func (it *indexIterator) Done() {}
