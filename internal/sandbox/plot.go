package sandbox

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"go.starlark.net/starlark"

	"github.com/KaramelBytes/vizqa/internal/chart"
)

// namespace is an allow-listed module such as plt or sns. Reading any other
// attribute is an error rather than a missing field.
type namespace struct {
	name    string
	members map[string]*starlark.Builtin
}

func (n *namespace) String() string        { return "<module " + n.name + ">" }
func (n *namespace) Type() string          { return "module" }
func (n *namespace) Freeze()               {}
func (n *namespace) Truth() starlark.Bool  { return true }
func (n *namespace) Hash() (uint32, error) { return hashString(n.name), nil }

func (n *namespace) Attr(name string) (starlark.Value, error) {
	if b, ok := n.members[name]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("%s.%s is not allowed", n.name, name)
}

func (n *namespace) AttrNames() []string {
	out := make([]string, 0, len(n.members))
	for k := range n.members {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func hashString(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// drawFn mutates one set of axes.
type drawFn func(ax *chart.Figure, args starlark.Tuple, kwargs []starlark.Tuple) error

// axesOps are shared by plt (current axes) and axes handles.
var axesOps = map[string]drawFn{
	"plot":    drawPlot,
	"bar":     drawBar(chart.Bar),
	"barh":    drawBar(chart.BarH),
	"scatter": drawScatter,
	"hist":    drawHist,
	"pie":     drawPie,
	"legend":  drawLegend,
	"grid":    drawGrid,
}

// labelOps set a text property; plt and axes spell them differently.
var labelOps = map[string]func(ax *chart.Figure, s string){
	"title":  func(ax *chart.Figure, s string) { ax.Title = s },
	"xlabel": func(ax *chart.Figure, s string) { ax.XLabel = s },
	"ylabel": func(ax *chart.Figure, s string) { ax.YLabel = s },
}

func noop(_ *chart.Figure, _ starlark.Tuple, _ []starlark.Tuple) error { return nil }

var pltModule, snsModule *namespace

func init() {
	plt := map[string]*starlark.Builtin{}
	for name, op := range axesOps {
		plt[name] = onCurrentAxes("plt."+name, op)
	}
	for name, set := range labelOps {
		plt[name] = onCurrentAxes("plt."+name, setLabel(set))
	}
	for _, name := range []string{"xticks", "yticks", "tight_layout"} {
		plt[name] = onCurrentAxes("plt."+name, noop)
	}
	plt["figure"] = starlark.NewBuiltin("plt.figure", pltFigure)
	plt["subplots"] = starlark.NewBuiltin("plt.subplots", pltSubplots)
	plt["subplot"] = starlark.NewBuiltin("plt.subplot", pltSubplot)
	plt["gca"] = starlark.NewBuiltin("plt.gca", pltGCA)
	plt["suptitle"] = starlark.NewBuiltin("plt.suptitle", pltSuptitle)
	plt["show"] = starlark.NewBuiltin("plt.show", pltFinalize)
	plt["savefig"] = starlark.NewBuiltin("plt.savefig", pltFinalize)
	plt["close"] = starlark.NewBuiltin("plt.close", pltClose)
	plt["clf"] = starlark.NewBuiltin("plt.clf", pltClf)
	pltModule = &namespace{name: "plt", members: plt}

	sns := map[string]*starlark.Builtin{
		"barplot":     starlark.NewBuiltin("sns.barplot", snsBarplot),
		"countplot":   starlark.NewBuiltin("sns.countplot", snsCountplot),
		"histplot":    starlark.NewBuiltin("sns.histplot", snsHistplot),
		"scatterplot": starlark.NewBuiltin("sns.scatterplot", snsRelplot(chart.Scatter)),
		"lineplot":    starlark.NewBuiltin("sns.lineplot", snsRelplot(chart.Line)),
	}
	for _, name := range []string{"set", "set_theme", "set_style", "set_palette", "set_context", "despine"} {
		sns[name] = starlark.NewBuiltin("sns."+name, func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
			return starlark.None, nil
		})
	}
	snsModule = &namespace{name: "sns", members: sns}
}

func onCurrentAxes(name string, draw drawFn) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		c, err := canvasOf(thread)
		if err != nil {
			return nil, err
		}
		ax, err := c.axes()
		if err != nil {
			return nil, err
		}
		if err := draw(ax, args, kwargs); err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return starlark.None, nil
	})
}

func setLabel(set func(*chart.Figure, string)) drawFn {
	return func(ax *chart.Figure, args starlark.Tuple, kwargs []starlark.Tuple) error {
		v := argOr(args, 0, kwargs, "label")
		if v == nil {
			return fmt.Errorf("missing text argument")
		}
		set(ax, labelOf(v))
		return nil
	}
}

// figsize converts matplotlib inches to pixels at 100 dpi.
func figsize(kwargs []starlark.Tuple) (int, int) {
	v := kwarg(kwargs, "figsize")
	if v == nil {
		return 0, 0
	}
	dims, err := toFloats(v)
	if err != nil || len(dims) != 2 {
		return 0, 0
	}
	return clampInt(int(dims[0]*100), 320, 2400), clampInt(int(dims[1]*100), 240, 2400)
}

func pltFigure(thread *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	c, err := canvasOf(thread)
	if err != nil {
		return nil, err
	}
	w, h := figsize(kwargs)
	of, err := c.newFigure(1, w, h)
	if err != nil {
		return nil, err
	}
	return &figureValue{of: of}, nil
}

func pltSubplots(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	c, err := canvasOf(thread)
	if err != nil {
		return nil, err
	}
	nrows, ncols := 1, 1
	if len(args) > 0 {
		if err := starlark.AsInt(args[0], &nrows); err != nil {
			return nil, fmt.Errorf("%s: nrows: %w", b.Name(), err)
		}
	} else {
		nrows = kwInt(kwargs, "nrows", 1)
	}
	if len(args) > 1 {
		if err := starlark.AsInt(args[1], &ncols); err != nil {
			return nil, fmt.Errorf("%s: ncols: %w", b.Name(), err)
		}
	} else {
		ncols = kwInt(kwargs, "ncols", 1)
	}
	if nrows < 1 || ncols < 1 {
		return nil, fmt.Errorf("%s: nrows and ncols must be positive", b.Name())
	}
	w, h := figsize(kwargs)
	of, err := c.newFigure(nrows*ncols, w, h)
	if err != nil {
		return nil, err
	}
	fig := &figureValue{of: of}
	if nrows*ncols == 1 {
		return starlark.Tuple{fig, &axesValue{fig: of.axes[0]}}, nil
	}
	grid := make([]starlark.Value, 0, nrows)
	flat := make([]starlark.Value, 0, nrows*ncols)
	for r := 0; r < nrows; r++ {
		row := make([]starlark.Value, ncols)
		for col := range row {
			row[col] = &axesValue{fig: of.axes[r*ncols+col]}
			flat = append(flat, row[col])
		}
		grid = append(grid, starlark.NewList(row))
	}
	if nrows == 1 || ncols == 1 {
		return starlark.Tuple{fig, starlark.NewList(flat)}, nil
	}
	return starlark.Tuple{fig, starlark.NewList(grid)}, nil
}

// pltSubplot accepts subplot(nrows, ncols, index) and subplot(221).
func pltSubplot(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	c, err := canvasOf(thread)
	if err != nil {
		return nil, err
	}
	nums := make([]int, len(args))
	for i, a := range args {
		if err := starlark.AsInt(a, &nums[i]); err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
	}
	if len(nums) == 1 && nums[0] >= 111 && nums[0] <= 999 {
		nums = []int{nums[0] / 100, nums[0] / 10 % 10, nums[0] % 10}
	}
	if len(nums) != 3 || nums[0] < 1 || nums[1] < 1 || nums[2] < 1 || nums[2] > nums[0]*nums[1] {
		return nil, fmt.Errorf("%s: expected (nrows, ncols, index)", b.Name())
	}
	n := nums[0] * nums[1]
	if c.open == nil || len(c.open.axes) != n {
		if _, err := c.newFigure(n, 0, 0); err != nil {
			return nil, err
		}
	}
	c.open.cur = nums[2] - 1
	return &axesValue{fig: c.open.axes[c.open.cur]}, nil
}

func pltGCA(thread *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	c, err := canvasOf(thread)
	if err != nil {
		return nil, err
	}
	ax, err := c.axes()
	if err != nil {
		return nil, err
	}
	return &axesValue{fig: ax}, nil
}

func pltSuptitle(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	c, err := canvasOf(thread)
	if err != nil {
		return nil, err
	}
	if _, err := c.axes(); err != nil {
		return nil, err
	}
	v := argOr(args, 0, kwargs, "t")
	if v == nil {
		return nil, fmt.Errorf("%s: missing title", b.Name())
	}
	c.open.suptitle = labelOf(v)
	return starlark.None, nil
}

func pltFinalize(thread *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	c, err := canvasOf(thread)
	if err != nil {
		return nil, err
	}
	return starlark.None, c.flush()
}

func pltClose(thread *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	c, err := canvasOf(thread)
	if err != nil {
		return nil, err
	}
	c.discard()
	return starlark.None, nil
}

func pltClf(thread *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	c, err := canvasOf(thread)
	if err != nil {
		return nil, err
	}
	if c.open != nil {
		ax := c.open.axes[c.open.cur]
		*ax = chart.Figure{Width: ax.Width, Height: ax.Height}
	}
	return starlark.None, nil
}

// figureValue is the handle returned by plt.figure and plt.subplots.
type figureValue struct{ of *openFigure }

func (f *figureValue) String() string        { return fmt.Sprintf("<Figure with %d Axes>", len(f.of.axes)) }
func (f *figureValue) Type() string          { return "Figure" }
func (f *figureValue) Freeze()               {}
func (f *figureValue) Truth() starlark.Bool  { return true }
func (f *figureValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: Figure") }
func (f *figureValue) AttrNames() []string {
	return []string{"savefig", "show", "suptitle", "tight_layout"}
}

func (f *figureValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "savefig", "show":
		return starlark.NewBuiltin("fig."+name, func(thread *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			c, err := canvasOf(thread)
			if err != nil {
				return nil, err
			}
			if c.open == f.of {
				return starlark.None, c.flush()
			}
			return starlark.None, nil
		}), nil
	case "suptitle":
		return starlark.NewBuiltin("fig.suptitle", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			v := argOr(args, 0, kwargs, "t")
			if v == nil {
				return nil, fmt.Errorf("%s: missing title", b.Name())
			}
			f.of.suptitle = labelOf(v)
			return starlark.None, nil
		}), nil
	case "tight_layout":
		return starlark.NewBuiltin("fig.tight_layout", func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
			return starlark.None, nil
		}), nil
	}
	return nil, fmt.Errorf("fig.%s is not allowed", name)
}

// axesValue is a handle on one subplot.
type axesValue struct{ fig *chart.Figure }

var axesLabelOps = map[string]string{"set_title": "title", "set_xlabel": "xlabel", "set_ylabel": "ylabel"}

func (a *axesValue) String() string        { return "<Axes>" }
func (a *axesValue) Type() string          { return "Axes" }
func (a *axesValue) Freeze()               {}
func (a *axesValue) Truth() starlark.Bool  { return true }
func (a *axesValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: Axes") }

func (a *axesValue) AttrNames() []string {
	out := []string{"set_xticklabels", "set_xticks", "tick_params"}
	for k := range axesOps {
		out = append(out, k)
	}
	for k := range axesLabelOps {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (a *axesValue) Attr(name string) (starlark.Value, error) {
	var draw drawFn
	if op, ok := axesOps[name]; ok {
		draw = op
	} else if prop, ok := axesLabelOps[name]; ok {
		draw = setLabel(labelOps[prop])
	} else if name == "set_xticks" || name == "set_xticklabels" || name == "tick_params" {
		draw = noop
	} else {
		return nil, fmt.Errorf("ax.%s is not allowed", name)
	}
	return starlark.NewBuiltin("ax."+name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := draw(a.fig, args, kwargs); err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return starlark.None, nil
	}), nil
}

// targetAxes resolves an ax= keyword, falling back to the current axes.
func targetAxes(thread *starlark.Thread, kwargs []starlark.Tuple) (*chart.Figure, error) {
	if a, ok := kwarg(kwargs, "ax").(*axesValue); ok {
		return a.fig, nil
	}
	c, err := canvasOf(thread)
	if err != nil {
		return nil, err
	}
	if w, h := figsize(kwargs); w > 0 {
		if _, err := c.newFigure(1, w, h); err != nil {
			return nil, err
		}
	}
	return c.axes()
}

func seriesName(kwargs []starlark.Tuple) string { return kwString(kwargs, "label") }

func applyAxis(ax *chart.Figure, s *chart.Series, a axis, n int) error {
	if a.labels != nil {
		if len(a.labels) != n {
			return shapeError(len(a.labels), n)
		}
		s.Labels = a.labels
		return nil
	}
	if len(a.xs) != n {
		return shapeError(len(a.xs), n)
	}
	s.X = a.xs
	if a.time {
		ax.XTime = true
	}
	return nil
}

func shapeError(nx, ny int) error {
	return fmt.Errorf("x and y must have same first dimension, but have shapes (%d,) and (%d,)", nx, ny)
}

// markersOnly reports a format or marker setting that disables the line.
func markersOnly(format string, kwargs []starlark.Tuple) bool {
	if ls, ok := kwarg(kwargs, "linestyle").(starlark.String); ok {
		switch string(ls) {
		case "", "None", "none", " ":
			return true
		}
	}
	return format != "" && !strings.ContainsAny(format, "-:") && strings.ContainsAny(format, "o.s^v*x+dDph")
}

func drawPlot(ax *chart.Figure, args starlark.Tuple, kwargs []starlark.Tuple) error {
	format := ""
	if n := len(args); n >= 2 {
		if s, ok := args[n-1].(starlark.String); ok {
			format = string(s)
			args = args[:n-1]
		}
	}
	var xv, yv starlark.Value
	switch len(args) {
	case 0:
		xv, yv = kwarg(kwargs, "x"), kwarg(kwargs, "y")
	case 1:
		yv = args[0]
	default:
		xv, yv = args[0], args[1]
	}
	if yv == nil {
		return fmt.Errorf("missing y values")
	}
	ys, err := toFloats(yv)
	if err != nil {
		return err
	}
	s := chart.Series{Name: seriesName(kwargs), Kind: chart.Line, Y: ys, Color: colorHex(kwargs)}
	if xv != nil {
		a, err := toAxis(xv)
		if err != nil {
			return err
		}
		if err := applyAxis(ax, &s, a, len(ys)); err != nil {
			return err
		}
	} else if ser, ok := yv.(*series); ok && ser.index != nil {
		s.Labels = ser.index
	}
	if markersOnly(format, kwargs) {
		s.Kind = chart.Scatter
	}
	ax.Series = append(ax.Series, s)
	return nil
}

func drawBar(kind chart.Kind) drawFn {
	xName, hName := "x", "height"
	if kind == chart.BarH {
		xName, hName = "y", "width"
	}
	return func(ax *chart.Figure, args starlark.Tuple, kwargs []starlark.Tuple) error {
		xv, hv := argOr(args, 0, kwargs, xName), argOr(args, 1, kwargs, hName)
		if xv == nil || hv == nil {
			return fmt.Errorf("expected %s and %s", xName, hName)
		}
		labels, err := toLabels(xv)
		if err != nil {
			return err
		}
		heights, err := toFloats(hv)
		if err != nil {
			return err
		}
		if len(heights) == 1 && len(labels) > 1 {
			for len(heights) < len(labels) {
				heights = append(heights, heights[0])
			}
		}
		if len(labels) != len(heights) {
			return shapeError(len(labels), len(heights))
		}
		ax.Series = append(ax.Series, chart.Series{
			Name: seriesName(kwargs), Kind: kind, Labels: labels, Y: heights, Color: colorHex(kwargs),
		})
		return nil
	}
}

func drawScatter(ax *chart.Figure, args starlark.Tuple, kwargs []starlark.Tuple) error {
	xv, yv := argOr(args, 0, kwargs, "x"), argOr(args, 1, kwargs, "y")
	if xv == nil || yv == nil {
		return fmt.Errorf("expected x and y")
	}
	ys, err := toFloats(yv)
	if err != nil {
		return err
	}
	a, err := toAxis(xv)
	if err != nil {
		return err
	}
	s := chart.Series{Name: seriesName(kwargs), Kind: chart.Scatter, Y: ys, Color: colorHex(kwargs)}
	if err := applyAxis(ax, &s, a, len(ys)); err != nil {
		return err
	}
	ax.Series = append(ax.Series, s)
	return nil
}

func drawHist(ax *chart.Figure, args starlark.Tuple, kwargs []starlark.Tuple) error {
	xv := argOr(args, 0, kwargs, "x")
	if xv == nil {
		return fmt.Errorf("missing values")
	}
	vals, err := toFloats(xv)
	if err != nil {
		return err
	}
	bins := chart.DefaultBins
	if bv := argOr(args, 1, kwargs, "bins"); bv != nil {
		if err := starlark.AsInt(bv, &bins); err != nil {
			if edges, ferr := toFloats(bv); ferr == nil && len(edges) > 1 {
				bins = len(edges) - 1
			}
		}
	}
	ax.Series = append(ax.Series, chart.Series{
		Name: seriesName(kwargs), Kind: chart.Hist, Y: vals, Bins: bins, Color: colorHex(kwargs),
	})
	return nil
}

func drawPie(ax *chart.Figure, args starlark.Tuple, kwargs []starlark.Tuple) error {
	xv := argOr(args, 0, kwargs, "x")
	if xv == nil {
		return fmt.Errorf("missing values")
	}
	vals, err := toFloats(xv)
	if err != nil {
		return err
	}
	var labels []string
	if lv := kwarg(kwargs, "labels"); lv != nil && lv != starlark.None {
		if labels, err = toLabels(lv); err != nil {
			return err
		}
	} else if s, ok := xv.(*series); ok && s.index != nil {
		labels = s.index
	}
	ax.Series = append(ax.Series, chart.Series{Kind: chart.Pie, Y: vals, Labels: labels})
	return nil
}

func drawLegend(ax *chart.Figure, args starlark.Tuple, kwargs []starlark.Tuple) error {
	ax.Legend = true
	lv := argOr(args, 0, kwargs, "labels")
	if lv == nil {
		return nil
	}
	if _, ok := lv.(starlark.String); ok {
		return nil
	}
	names, err := toLabels(lv)
	if err != nil {
		return nil
	}
	for i := range ax.Series {
		if i < len(names) {
			ax.Series[i].Name = names[i]
		}
	}
	return nil
}

func drawGrid(ax *chart.Figure, args starlark.Tuple, kwargs []starlark.Tuple) error {
	on := true
	if v := argOr(args, 0, kwargs, "visible"); v != nil && v != starlark.None {
		on = bool(v.Truth())
	}
	ax.Grid = on
	return nil
}

// namedColors covers matplotlib's base, tableau and common CSS names.
var namedColors = map[string]string{
	"blue": "1f77b4", "orange": "ff7f0e", "green": "2ca02c", "red": "d62728",
	"purple": "9467bd", "brown": "8c564b", "pink": "e377c2", "gray": "7f7f7f",
	"grey": "7f7f7f", "olive": "bcbd22", "cyan": "17becf", "black": "000000",
	"white": "ffffff", "yellow": "ffd700", "navy": "000080", "teal": "008080",
	"skyblue": "87ceeb", "steelblue": "4682b4", "coral": "ff7f50", "salmon": "fa8072",
	"gold": "ffd700", "magenta": "ff00ff", "lightblue": "add8e6", "darkblue": "00008b",
	"darkgreen": "006400", "lightgreen": "90ee90", "crimson": "dc143c", "indigo": "4b0082",
	"b": "1f77b4", "g": "2ca02c", "r": "d62728", "c": "17becf", "m": "e377c2",
	"y": "bcbd22", "k": "000000", "w": "ffffff",
}

// colorHex resolves color= (or c= when it is a string) to a hex string;
// unknown names fall back to the palette.
func colorHex(kwargs []starlark.Tuple) string {
	name := kwString(kwargs, "color")
	if name == "" {
		name = kwString(kwargs, "c")
	}
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "tab:")
	if strings.HasPrefix(name, "#") && (len(name) == 7 || len(name) == 4) {
		return name
	}
	if len(name) == 2 && name[0] == 'c' && name[1] >= '0' && name[1] <= '9' {
		return chart.Palette[name[1]-'0']
	}
	return namedColors[name]
}

// seriesPlot implements Series.plot(kind=...).
func seriesPlot(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	s := b.Receiver().(*series)
	kind := "line"
	if len(args) > 0 {
		if k, ok := starlark.AsString(args[0]); ok {
			kind = k
		}
	} else if k := kwString(kwargs, "kind"); k != "" {
		kind = k
	}
	ax, err := targetAxes(thread, kwargs)
	if err != nil {
		return nil, err
	}
	vals, err := s.floats()
	if err != nil {
		return nil, fmt.Errorf("Series.plot: %w", err)
	}
	out := chart.Series{Name: kwString(kwargs, "label"), Y: vals, Color: colorHex(kwargs)}
	if out.Name == "" && s.col.Name != "count" {
		out.Name = s.col.Name
	}
	switch kind {
	case "line":
		out.Kind = chart.Line
		if s.index != nil {
			out.Labels = s.index
		}
	case "bar", "barh":
		out.Kind = chart.Kind(kind)
		out.Labels = s.indexLabels()
	case "hist":
		out.Kind = chart.Hist
		out.Bins = kwInt(kwargs, "bins", chart.DefaultBins)
	case "pie":
		out.Kind = chart.Pie
		out.Labels = s.indexLabels()
	default:
		return nil, fmt.Errorf("Series.plot: kind %q is not supported", kind)
	}
	ax.Series = append(ax.Series, out)
	for key, set := range map[string]func(string){
		"title":  func(v string) { ax.Title = v },
		"xlabel": func(v string) { ax.XLabel = v },
		"ylabel": func(v string) { ax.YLabel = v },
	} {
		if v := kwString(kwargs, key); v != "" {
			set(v)
		}
	}
	if kwBool(kwargs, "legend", false) {
		ax.Legend = true
	}
	if kwBool(kwargs, "grid", false) {
		ax.Grid = true
	}
	return &axesValue{fig: ax}, nil
}
