package sandbox

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.starlark.net/starlark"

	"github.com/KaramelBytes/vizqa/internal/table"
)

// frame is the df global. It owns its column slice so scripts can add or
// replace columns without touching the caller's table.
type frame struct {
	name string
	cols []*table.Column
}

var (
	_ starlark.HasSetKey = (*frame)(nil)
	_ starlark.Sequence  = (*frame)(nil)
	_ starlark.HasAttrs  = (*frame)(nil)
)

func newFrame(t *table.Table) *frame {
	if t == nil {
		return &frame{}
	}
	cols := make([]*table.Column, len(t.Columns))
	copy(cols, t.Columns)
	return &frame{name: t.Name, cols: cols}
}

func (f *frame) rows() int {
	if len(f.cols) == 0 {
		return 0
	}
	return f.cols[0].Len()
}

func (f *frame) names() []string {
	out := make([]string, len(f.cols))
	for i, c := range f.cols {
		out[i] = c.Name
	}
	return out
}

func (f *frame) column(name string) (*table.Column, error) {
	for _, c := range f.cols {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("column %q not found; available columns: %s", name, strings.Join(f.names(), ", "))
}

func (f *frame) selectRows(rows []int) *frame {
	t := (&table.Table{Name: f.name, Columns: f.cols}).Select(rows)
	return &frame{name: f.name, cols: t.Columns}
}

func (f *frame) String() string {
	return fmt.Sprintf("DataFrame(%d rows, %d columns)", f.rows(), len(f.cols))
}
func (f *frame) Type() string         { return "DataFrame" }
func (f *frame) Freeze()              {}
func (f *frame) Truth() starlark.Bool { return f.rows() > 0 }
func (f *frame) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: DataFrame")
}

// Len is the row count, like len(df) in pandas.
func (f *frame) Len() int { return f.rows() }

// Iterate yields column names, like iterating a pandas DataFrame.
func (f *frame) Iterate() starlark.Iterator {
	names := make(starlark.Tuple, len(f.cols))
	for i, c := range f.cols {
		names[i] = starlark.String(c.Name)
	}
	return &indexIterator{seq: names}
}

// Get supports df["col"] and df[["a", "b"]].
func (f *frame) Get(k starlark.Value) (starlark.Value, bool, error) {
	if name, ok := starlark.AsString(k); ok {
		c, err := f.column(name)
		if err != nil {
			return nil, false, err
		}
		return &series{col: c}, true, nil
	}
	names, err := toLabels(k)
	if err != nil {
		return nil, false, fmt.Errorf("DataFrame key must be a column name or a list of names, got %s", k.Type())
	}
	sub := &frame{name: f.name}
	for _, n := range names {
		c, err := f.column(n)
		if err != nil {
			return nil, false, err
		}
		sub.cols = append(sub.cols, c)
	}
	return sub, true, nil
}

// SetKey adds or replaces a column: df["total"] = df["a"] * df["b"].
func (f *frame) SetKey(k, v starlark.Value) error {
	name, ok := starlark.AsString(k)
	if !ok {
		return fmt.Errorf("column name must be a string, got %s", k.Type())
	}
	col, err := f.columnFrom(name, v)
	if err != nil {
		return err
	}
	for i, c := range f.cols {
		if c.Name == name {
			f.cols[i] = col
			return nil
		}
	}
	f.cols = append(f.cols, col)
	return nil
}

func (f *frame) columnFrom(name string, v starlark.Value) (*table.Column, error) {
	n := f.rows()
	if s, ok := v.(*series); ok {
		if s.Len() != n && len(f.cols) > 0 {
			return nil, fmt.Errorf("length of values (%d) does not match length of index (%d)", s.Len(), n)
		}
		c := s.col.Clone()
		c.Name = name
		return c, nil
	}
	if num, ok := starlark.AsFloat(v); ok {
		_, isInt := v.(starlark.Int)
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = num
		}
		return newNumericSeries(name, nil, vals, isInt).col, nil
	}
	if s, ok := starlark.AsString(v); ok {
		c := &table.Column{Name: name, Kind: table.Text, Values: make([]table.Value, n)}
		for i := range c.Values {
			c.Values[i] = table.String(s)
		}
		return c, nil
	}
	elems, err := elements(v)
	if err != nil {
		return nil, err
	}
	if len(elems) != n && len(f.cols) > 0 {
		return nil, fmt.Errorf("length of values (%d) does not match length of index (%d)", len(elems), n)
	}
	if vals, err := toFloats(v); err == nil {
		return newNumericSeries(name, nil, vals, false).col, nil
	}
	labels, _ := toLabels(v)
	c := &table.Column{Name: name, Kind: table.Text, Values: make([]table.Value, len(labels))}
	for i, l := range labels {
		if elems[i] == starlark.None {
			c.Values[i] = table.Null()
		} else {
			c.Values[i] = table.String(l)
		}
	}
	return c, nil
}

var frameMethods = []string{
	"copy", "dropna", "groupby", "groupby_agg", "head", "nlargest", "nsmallest",
	"sort_values", "tail", "unique", "value_counts",
}

func (f *frame) AttrNames() []string {
	return append([]string{"columns", "dtypes", "empty", "shape"}, frameMethods...)
}

func (f *frame) Attr(name string) (starlark.Value, error) {
	switch name {
	case "columns":
		return stringsList(f.names()), nil
	case "shape":
		return starlark.Tuple{starlark.MakeInt(f.rows()), starlark.MakeInt(len(f.cols))}, nil
	case "empty":
		return starlark.Bool(f.rows() == 0 || len(f.cols) == 0), nil
	case "dtypes":
		d := starlark.NewDict(len(f.cols))
		for _, c := range f.cols {
			_ = d.SetKey(starlark.String(c.Name), starlark.String(c.DType()))
		}
		return d, nil
	}
	if fn, ok := frameBuiltins[name]; ok {
		return starlark.NewBuiltin(name, fn).BindReceiver(f), nil
	}
	for _, c := range f.cols {
		if c.Name == name {
			return &series{col: c}, nil
		}
	}
	return nil, nil
}

var frameBuiltins map[string]seriesFn

func init() {
	frameBuiltins = map[string]seriesFn{
		"head": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			n := 5
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n?", &n); err != nil {
				return nil, err
			}
			f := b.Receiver().(*frame)
			return f.selectRows(span(0, clampInt(n, 0, f.rows()))), nil
		},
		"tail": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			n := 5
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n?", &n); err != nil {
				return nil, err
			}
			f := b.Receiver().(*frame)
			return f.selectRows(span(f.rows()-clampInt(n, 0, f.rows()), f.rows())), nil
		},
		"copy": func(_ *starlark.Thread, b *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			f := b.Receiver().(*frame)
			return &frame{name: f.name, cols: append([]*table.Column(nil), f.cols...)}, nil
		},
		"value_counts": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var col string
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "col", &col); err != nil {
				return nil, err
			}
			c, err := b.Receiver().(*frame).column(col)
			if err != nil {
				return nil, err
			}
			return valueCounts(c, false, false), nil
		},
		"unique": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var col string
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "col", &col); err != nil {
				return nil, err
			}
			c, err := b.Receiver().(*frame).column(col)
			if err != nil {
				return nil, err
			}
			return (&series{col: c}).unique(), nil
		},
		"dropna": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var subset starlark.Value = starlark.None
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "subset?", &subset); err != nil {
				return nil, err
			}
			f := b.Receiver().(*frame)
			cols := f.cols
			if subset != starlark.None {
				names := []string{}
				if s, ok := starlark.AsString(subset); ok {
					names = append(names, s)
				} else if names, _ = toLabels(subset); len(names) == 0 {
					return nil, fmt.Errorf("dropna: subset must name columns")
				}
				cols = nil
				for _, n := range names {
					c, err := f.column(n)
					if err != nil {
						return nil, err
					}
					cols = append(cols, c)
				}
			}
			var rows []int
		row:
			for i := 0; i < f.rows(); i++ {
				for _, c := range cols {
					if !c.Values[i].Valid {
						continue row
					}
				}
				rows = append(rows, i)
			}
			return f.selectRows(rows), nil
		},
		"sort_values": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var by string
			ascending := true
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "by", &by, "ascending?", &ascending); err != nil {
				return nil, err
			}
			f := b.Receiver().(*frame)
			c, err := f.column(by)
			if err != nil {
				return nil, err
			}
			return f.selectRows(sortedRows(c, ascending)), nil
		},
		"nlargest":    extremes(false),
		"nsmallest":   extremes(true),
		"groupby":     frameGroupBy,
		"groupby_agg": frameGroupByAgg,
	}
}

func extremes(ascending bool) seriesFn {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var n int
		var col string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n", &n, "columns", &col); err != nil {
			return nil, err
		}
		f := b.Receiver().(*frame)
		c, err := f.column(col)
		if err != nil {
			return nil, err
		}
		if c.Kind != table.Numeric {
			return nil, fmt.Errorf("%s: column %q is not numeric", b.Name(), col)
		}
		rows := sortedRows(c, ascending)
		var keep []int
		for _, r := range rows {
			if len(keep) == n {
				break
			}
			if c.Values[r].Valid {
				keep = append(keep, r)
			}
		}
		return f.selectRows(keep), nil
	}
}

func frameGroupBy(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var by string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "by", &by); err != nil {
		return nil, err
	}
	return newGrouped(b.Receiver().(*frame), by)
}

func frameGroupByAgg(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var by, col, fn string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "by", &by, "col", &col, "func", &fn); err != nil {
		return nil, err
	}
	g, err := newGrouped(b.Receiver().(*frame), by)
	if err != nil {
		return nil, err
	}
	c, err := g.f.column(col)
	if err != nil {
		return nil, err
	}
	return g.agg(c, fn)
}

// grouped is the result of df.groupby(col). Keys are sorted.
type grouped struct {
	f    *frame
	by   string
	keys []string
	rows [][]int
}

func newGrouped(f *frame, by string) (*grouped, error) {
	c, err := f.column(by)
	if err != nil {
		return nil, err
	}
	g := &grouped{f: f, by: by}
	pos := map[string]int{}
	var firsts []int
	for i, v := range c.Values {
		if !v.Valid {
			continue
		}
		key := c.Display(i)
		p, ok := pos[key]
		if !ok {
			p = len(g.keys)
			pos[key] = p
			g.keys = append(g.keys, key)
			g.rows = append(g.rows, nil)
			firsts = append(firsts, i)
		}
		g.rows[p] = append(g.rows[p], i)
	}
	order := span(0, len(g.keys))
	sort.SliceStable(order, func(i, j int) bool {
		a, b := c.Values[firsts[order[i]]], c.Values[firsts[order[j]]]
		switch c.Kind {
		case table.Numeric:
			return a.Num < b.Num
		case table.Datetime:
			return a.Time.Before(b.Time)
		default:
			return a.Str < b.Str
		}
	})
	keys := make([]string, len(order))
	rows := make([][]int, len(order))
	for i, o := range order {
		keys[i], rows[i] = g.keys[o], g.rows[o]
	}
	g.keys, g.rows = keys, rows
	return g, nil
}

func (g *grouped) agg(c *table.Column, fn string) (*series, error) {
	vals := make([]float64, len(g.keys))
	s := &series{col: c}
	all, err := s.floats()
	if err != nil && fn != "count" && fn != "size" {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	for i, rows := range g.rows {
		var present []float64
		for _, r := range rows {
			switch {
			case fn == "size":
				present = append(present, 0)
			case fn == "count":
				if c.Values[r].Valid {
					present = append(present, 0)
				}
			case !math.IsNaN(all[r]):
				present = append(present, all[r])
			}
		}
		v, err := aggregate(present, fn)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	intLike := fn == "count" || fn == "size" || (c.IntLike && fn != "mean" && fn != "median" && fn != "std")
	return newNumericSeries(c.Name, g.keys, vals, intLike), nil
}

func (g *grouped) String() string        { return fmt.Sprintf("DataFrameGroupBy(by=%q)", g.by) }
func (g *grouped) Type() string          { return "DataFrameGroupBy" }
func (g *grouped) Freeze()               {}
func (g *grouped) Truth() starlark.Bool  { return true }
func (g *grouped) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: DataFrameGroupBy") }

// Get selects a column: df.groupby("region")["sales"].
func (g *grouped) Get(k starlark.Value) (starlark.Value, bool, error) {
	name, ok := starlark.AsString(k)
	if !ok {
		return nil, false, fmt.Errorf("groupby selection must be a column name")
	}
	c, err := g.f.column(name)
	if err != nil {
		return nil, false, err
	}
	return &groupedColumn{g: g, col: c}, true, nil
}

func (g *grouped) AttrNames() []string { return []string{"size"} }

func (g *grouped) Attr(name string) (starlark.Value, error) {
	if name != "size" {
		if c, err := g.f.column(name); err == nil {
			return &groupedColumn{g: g, col: c}, nil
		}
		return nil, nil
	}
	return starlark.NewBuiltin("size", func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		c, _ := g.f.column(g.by)
		s, err := g.agg(c, "size")
		if err != nil {
			return nil, err
		}
		s.col.Name = "size"
		return s, nil
	}), nil
}

// groupedColumn is df.groupby(by)[col]; its reducers return a Series
// indexed by group key.
type groupedColumn struct {
	g   *grouped
	col *table.Column
}

var groupReducers = []string{"count", "max", "mean", "median", "min", "size", "std", "sum"}

func (gc *groupedColumn) String() string {
	return fmt.Sprintf("SeriesGroupBy(by=%q, column=%q)", gc.g.by, gc.col.Name)
}
func (gc *groupedColumn) Type() string          { return "SeriesGroupBy" }
func (gc *groupedColumn) Freeze()               {}
func (gc *groupedColumn) Truth() starlark.Bool  { return true }
func (gc *groupedColumn) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: SeriesGroupBy") }
func (gc *groupedColumn) AttrNames() []string   { return append(groupReducers, "agg") }

func (gc *groupedColumn) Attr(name string) (starlark.Value, error) {
	if name == "agg" {
		return starlark.NewBuiltin("agg", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var fn string
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "func", &fn); err != nil {
				return nil, err
			}
			return gc.g.agg(gc.col, fn)
		}), nil
	}
	for _, fn := range groupReducers {
		if fn == name {
			return starlark.NewBuiltin(name, func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
				return gc.g.agg(gc.col, fn)
			}), nil
		}
	}
	return nil, nil
}
