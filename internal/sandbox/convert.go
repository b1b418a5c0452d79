package sandbox

import (
	"fmt"
	"math"
	"strconv"

	"go.starlark.net/starlark"

	"github.com/KaramelBytes/vizqa/internal/table"
)

// elements flattens any iterable into a slice.
func elements(v starlark.Value) ([]starlark.Value, error) {
	if s, ok := v.(*series); ok {
		out := make([]starlark.Value, s.Len())
		for i := range out {
			out[i] = s.Index(i)
		}
		return out, nil
	}
	iter := starlark.Iterate(v)
	if iter == nil {
		return nil, fmt.Errorf("expected a sequence, got %s", v.Type())
	}
	defer iter.Done()
	var out []starlark.Value
	var x starlark.Value
	for iter.Next(&x) {
		out = append(out, x)
	}
	return out, nil
}

// toFloats converts a series or a sequence of numbers. None becomes NaN.
func toFloats(v starlark.Value) ([]float64, error) {
	if s, ok := v.(*series); ok {
		return s.floats()
	}
	if f, ok := starlark.AsFloat(v); ok {
		return []float64{f}, nil
	}
	elems, err := elements(v)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(elems))
	for i, e := range elems {
		if e == starlark.None {
			out[i] = math.NaN()
			continue
		}
		if f, ok := starlark.AsFloat(e); ok {
			out[i] = f
			continue
		}
		if s, ok := starlark.AsString(e); ok {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				out[i] = f
				continue
			}
		}
		return nil, fmt.Errorf("element %d: expected a number, got %s", i, e.Type())
	}
	return out, nil
}

// toLabels renders every element of a sequence as a string label.
func toLabels(v starlark.Value) ([]string, error) {
	if s, ok := v.(*series); ok {
		return s.labels(), nil
	}
	elems, err := elements(v)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(elems))
	for i, e := range elems {
		out[i] = labelOf(e)
	}
	return out, nil
}

func labelOf(v starlark.Value) string {
	switch x := v.(type) {
	case starlark.String:
		return string(x)
	case starlark.Float:
		return table.FormatNumber(float64(x), true)
	case starlark.NoneType:
		return "NaN"
	default:
		return v.String()
	}
}

// axis is an x input resolved to either positions or category labels.
type axis struct {
	xs     []float64
	labels []string
	time   bool
}

// toAxis interprets x values: numbers stay positional, datetimes become
// unix seconds, anything else is categorical.
func toAxis(v starlark.Value) (axis, error) {
	if s, ok := v.(*series); ok {
		switch s.col.Kind {
		case table.Numeric:
			xs, err := s.floats()
			return axis{xs: xs}, err
		case table.Datetime:
			xs, err := s.floats()
			return axis{xs: xs, time: true}, err
		default:
			return axis{labels: s.labels()}, nil
		}
	}
	if xs, err := toFloats(v); err == nil {
		return axis{xs: xs}, nil
	}
	labels, err := toLabels(v)
	if err != nil {
		return axis{}, err
	}
	return axis{labels: labels}, nil
}

// kwarg returns the named keyword argument or nil.
func kwarg(kwargs []starlark.Tuple, name string) starlark.Value {
	for _, kv := range kwargs {
		if k, ok := kv[0].(starlark.String); ok && string(k) == name {
			return kv[1]
		}
	}
	return nil
}

func kwString(kwargs []starlark.Tuple, name string) string {
	v := kwarg(kwargs, name)
	if v == nil {
		return ""
	}
	if s, ok := starlark.AsString(v); ok {
		return s
	}
	return ""
}

func kwInt(kwargs []starlark.Tuple, name string, def int) int {
	v := kwarg(kwargs, name)
	if v == nil {
		return def
	}
	var n int
	if err := starlark.AsInt(v, &n); err != nil {
		return def
	}
	return n
}

func kwBool(kwargs []starlark.Tuple, name string, def bool) bool {
	v := kwarg(kwargs, name)
	if v == nil || v == starlark.None {
		return def
	}
	return bool(v.Truth())
}

// argOr returns args[i] when present, else the keyword of the same role.
func argOr(args starlark.Tuple, i int, kwargs []starlark.Tuple, name string) starlark.Value {
	if i < len(args) {
		return args[i]
	}
	return kwarg(kwargs, name)
}

func floatsList(vals []float64) *starlark.List {
	out := make([]starlark.Value, len(vals))
	for i, f := range vals {
		if math.IsNaN(f) {
			out[i] = starlark.None
		} else {
			out[i] = starlark.Float(f)
		}
	}
	return starlark.NewList(out)
}

func stringsList(vals []string) *starlark.List {
	out := make([]starlark.Value, len(vals))
	for i, s := range vals {
		out[i] = starlark.String(s)
	}
	return starlark.NewList(out)
}

// number returns f as an Int when it is integral, a Float otherwise.
func number(f float64) starlark.Value {
	if math.IsNaN(f) {
		return starlark.None
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return starlark.MakeInt64(int64(f))
	}
	return starlark.Float(f)
}
