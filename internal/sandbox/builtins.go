package sandbox

import (
	"fmt"
	"math"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Go-side builtins run to completion between interpreter steps, so neither
// the step budget nor the timeout can interrupt them. Their sizes are capped
// instead: MaxRange for range, MaxElements for collections built from an
// iterable (large enough for any uploaded column).
const (
	MaxRange    = 1_000_000
	MaxElements = 5_000_000
)

// sizedBuiltins shadow universe builtins that materialize their input.
var sizedBuiltins = map[string]int{
	"range":     MaxRange,
	"list":      MaxElements,
	"tuple":     MaxElements,
	"sorted":    MaxElements,
	"set":       MaxElements,
	"dict":      MaxElements,
	"enumerate": MaxElements,
	"zip":       MaxElements,
	"reversed":  MaxElements,
}

// predeclared returns the globals visible to a script. Starlark's universe
// supplies the rest (len, min, max, abs, str, ...).
func predeclared(df *frame) starlark.StringDict {
	env := starlark.StringDict{
		"df":    df,
		"plt":   pltModule,
		"sns":   snsModule,
		"sum":   starlark.NewBuiltin("sum", builtinSum),
		"round": starlark.NewBuiltin("round", builtinRound),
	}
	for name, limit := range sizedBuiltins {
		env[name] = sized(name, limit)
	}
	return env
}

// sized wraps a universe builtin so that oversized arguments or results fail
// before or instead of being materialized.
func sized(name string, limit int) *starlark.Builtin {
	inner := starlark.Universe[name].(*starlark.Builtin)
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		for _, a := range args {
			if n := starlark.Len(a); n > limit {
				return nil, fmt.Errorf("%s: %d elements exceeds the limit of %d", name, n, limit)
			}
		}
		v, err := inner.CallInternal(thread, args, kwargs)
		if err != nil {
			return nil, err
		}
		if n := starlark.Len(v); n > limit {
			return nil, fmt.Errorf("%s: %d elements exceeds the limit of %d", name, n, limit)
		}
		return v, nil
	})
}

func builtinSum(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var iterable starlark.Value
	var start starlark.Value = starlark.MakeInt(0)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "iterable", &iterable, "start?", &start); err != nil {
		return nil, err
	}
	elems, err := elements(iterable)
	if err != nil {
		return nil, fmt.Errorf("sum: %w", err)
	}
	acc := start
	for _, e := range elems {
		if e == starlark.None {
			continue
		}
		if acc, err = starlark.Binary(syntax.PLUS, acc, e); err != nil {
			return nil, fmt.Errorf("sum: %w", err)
		}
	}
	return acc, nil
}

func builtinRound(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x starlark.Value
	var ndigits starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "number", &x, "ndigits?", &ndigits); err != nil {
		return nil, err
	}
	f, ok := starlark.AsFloat(x)
	if !ok {
		return nil, fmt.Errorf("round: expected a number, got %s", x.Type())
	}
	if ndigits == starlark.None {
		return starlark.MakeInt64(int64(math.RoundToEven(f))), nil
	}
	var n int
	if err := starlark.AsInt(ndigits, &n); err != nil {
		return nil, fmt.Errorf("round: ndigits: %w", err)
	}
	p := math.Pow(10, float64(n))
	return starlark.Float(math.RoundToEven(f*p) / p), nil
}
