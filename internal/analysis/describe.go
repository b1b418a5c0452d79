// Package analysis summarizes a table for prompts and for people: dtype
// listings, descriptive statistics, a head preview and correlations.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/vizqa/internal/table"
)

// DTypes lists column types the way pandas prints df.dtypes.
func DTypes(t *table.Table) string {
	if t == nil || len(t.Columns) == 0 {
		return "Series([], dtype: object)"
	}
	nameW, typeW := 0, 0
	for _, c := range t.Columns {
		nameW = max(nameW, len([]rune(c.Name)))
		typeW = max(typeW, len(c.DType()))
	}
	var b strings.Builder
	for _, c := range t.Columns {
		fmt.Fprintf(&b, "%s%s\n", padRight(c.Name, nameW+4), padLeft(c.DType(), typeW))
	}
	b.WriteString("dtype: object")
	return b.String()
}

// Description is the result of Describe: one row per statistic, one column
// per table column. Cells that do not apply hold "NaN".
type Description struct {
	Stats   []string
	Columns []string
	Cells   [][]string // Cells[stat][column]
}

var (
	objectStats  = []string{"unique", "top", "freq"}
	numericStats = []string{"mean", "std", "min", "25%", "50%", "75%", "max"}
)

// Describe computes count, unique, top, freq, mean, std, min, quartiles and
// max for every column, like describe(include='all'). Statistic rows that
// apply to no column are omitted.
func Describe(t *table.Table) *Description {
	d := &Description{}
	if t == nil || len(t.Columns) == 0 {
		return d
	}
	var hasText, hasNum bool
	for _, c := range t.Columns {
		switch c.Kind {
		case table.Text:
			hasText = true
		default:
			hasNum = true
		}
	}
	d.Stats = []string{"count"}
	if hasText {
		d.Stats = append(d.Stats, objectStats...)
	}
	if hasNum {
		d.Stats = append(d.Stats, numericStats...)
	}
	d.Columns = t.ColumnNames()
	d.Cells = make([][]string, len(d.Stats))
	for i := range d.Cells {
		d.Cells[i] = make([]string, len(t.Columns))
		for j := range d.Cells[i] {
			d.Cells[i][j] = "NaN"
		}
	}
	for j, c := range t.Columns {
		stats := describeColumn(c)
		for i, s := range d.Stats {
			if v, ok := stats[s]; ok {
				d.Cells[i][j] = v
			}
		}
	}
	return d
}

func describeColumn(c *table.Column) map[string]string {
	out := map[string]string{}
	present := c.Len() - c.Missing()
	out["count"] = strconv.Itoa(present)
	switch c.Kind {
	case table.Numeric:
		vals := make([]float64, 0, present)
		for _, v := range c.Values {
			if v.Valid {
				vals = append(vals, v.Num)
			}
		}
		if len(vals) == 0 {
			return out
		}
		sort.Float64s(vals)
		mean, std := meanStd(vals)
		out["mean"] = fmtStat(mean)
		out["std"] = fmtStat(std)
		out["min"] = fmtStat(vals[0])
		out["25%"] = fmtStat(quantile(vals, 0.25))
		out["50%"] = fmtStat(quantile(vals, 0.5))
		out["75%"] = fmtStat(quantile(vals, 0.75))
		out["max"] = fmtStat(vals[len(vals)-1])
	case table.Datetime:
		ns := make([]float64, 0, present)
		for _, v := range c.Values {
			if v.Valid {
				ns = append(ns, float64(v.Time.UnixNano()))
			}
		}
		if len(ns) == 0 {
			return out
		}
		sort.Float64s(ns)
		mean, _ := meanStd(ns)
		out["mean"] = fmtTime(mean)
		out["min"] = fmtTime(ns[0])
		out["25%"] = fmtTime(quantile(ns, 0.25))
		out["50%"] = fmtTime(quantile(ns, 0.5))
		out["75%"] = fmtTime(quantile(ns, 0.75))
		out["max"] = fmtTime(ns[len(ns)-1])
	default:
		top := TopValues(c, 1)
		out["unique"] = strconv.Itoa(Unique(c))
		if len(top) > 0 {
			out["top"] = top[0].Value
			out["freq"] = strconv.Itoa(top[0].Count)
		}
	}
	return out
}

// String renders the description as a right-aligned text grid.
func (d *Description) String() string {
	if d == nil || len(d.Columns) == 0 {
		return "Empty DataFrame"
	}
	labelW := 0
	for _, s := range d.Stats {
		labelW = max(labelW, len(s))
	}
	widths := make([]int, len(d.Columns))
	for j, name := range d.Columns {
		widths[j] = len([]rune(name))
		for i := range d.Stats {
			widths[j] = max(widths[j], len([]rune(d.Cells[i][j])))
		}
	}
	var b strings.Builder
	b.WriteString(strings.Repeat(" ", labelW))
	for j, name := range d.Columns {
		b.WriteString("  ")
		b.WriteString(padLeft(name, widths[j]))
	}
	for i, s := range d.Stats {
		b.WriteString("\n")
		b.WriteString(padRight(s, labelW))
		for j := range d.Columns {
			b.WriteString("  ")
			b.WriteString(padLeft(safeVal(d.Cells[i][j]), widths[j]))
		}
	}
	return b.String()
}

// CategoryCount is one entry of a value_counts listing.
type CategoryCount struct {
	Value string
	Count int
}

// TopValues returns up to n most frequent present values of c, most
// frequent first, ties broken by value.
func TopValues(c *table.Column, n int) []CategoryCount {
	counts := map[string]int{}
	for i, v := range c.Values {
		if v.Valid {
			counts[c.Display(i)]++
		}
	}
	out := make([]CategoryCount, 0, len(counts))
	for k, v := range counts {
		out = append(out, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Value < out[j].Value
		}
		return out[i].Count > out[j].Count
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Unique counts distinct present values.
func Unique(c *table.Column) int {
	seen := map[string]struct{}{}
	for i, v := range c.Values {
		if v.Valid {
			seen[c.Display(i)] = struct{}{}
		}
	}
	return len(seen)
}

// meanStd returns the mean and the sample standard deviation (ddof=1).
func meanStd(vals []float64) (float64, float64) {
	var n, mean, m2 float64
	for _, x := range vals {
		n++
		delta := x - mean
		mean += delta / n
		m2 += delta * (x - mean)
	}
	if n < 2 {
		return mean, math.NaN()
	}
	return mean, math.Sqrt(m2 / (n - 1))
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

func fmtStat(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	return strconv.FormatFloat(f, 'f', 6, 64)
}

func fmtTime(ns float64) string {
	return time.Unix(0, int64(ns)).UTC().Format("2006-01-02 15:04:05")
}

func padLeft(s string, w int) string {
	if n := len([]rune(s)); n < w {
		return strings.Repeat(" ", w-n) + s
	}
	return s
}

func padRight(s string, w int) string {
	if n := len([]rune(s)); n < w {
		return s + strings.Repeat(" ", w-n)
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
