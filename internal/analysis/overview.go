package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/vizqa/internal/table"
)

// Overview renders the shape, the column list and the first n rows as a
// markdown block.
func Overview(t *table.Table, n int) string {
	var b strings.Builder
	b.WriteString("[DATASET OVERVIEW]\n")
	if t == nil {
		b.WriteString("Shape: 0 rows × 0 columns\n")
		return b.String()
	}
	if t.Name != "" {
		fmt.Fprintf(&b, "File: %s\n", t.Name)
	}
	rows, cols := t.Shape()
	fmt.Fprintf(&b, "Shape: %d rows × %d columns\n", rows, cols)
	if cols == 0 {
		return b.String()
	}
	b.WriteString("Columns: ")
	names := make([]string, cols)
	for i, c := range t.Columns {
		names[i] = safeName(c.Name)
	}
	b.WriteString(strings.Join(names, ", "))
	b.WriteString("\n")

	head := t.Head(n)
	if head.Rows() == 0 {
		return b.String()
	}
	b.WriteString("\n| ")
	b.WriteString(strings.Join(names, " | "))
	b.WriteString(" |\n|")
	b.WriteString(strings.Repeat(" --- |", cols))
	b.WriteString("\n")
	for i := 0; i < head.Rows(); i++ {
		b.WriteString("| ")
		for j, c := range head.Columns {
			if j > 0 {
				b.WriteString(" | ")
			}
			val := c.Display(i)
			if len(val) > 80 {
				val = val[:77] + "..."
			}
			b.WriteString(safeVal(val))
		}
		b.WriteString(" |\n")
	}
	return b.String()
}

// PairCorr is one Pearson correlation between two numeric columns.
type PairCorr struct {
	A, B string
	R    float64
}

// Correlations returns pairwise Pearson correlations among numeric columns,
// strongest first, using rows where both values are present. At most limit
// pairs are returned when limit > 0.
func Correlations(t *table.Table, limit int) []PairCorr {
	if t == nil {
		return nil
	}
	var nums []*table.Column
	for _, c := range t.Columns {
		if c.Kind == table.Numeric {
			nums = append(nums, c)
		}
	}
	var pairs []PairCorr
	for a := 0; a < len(nums); a++ {
		for b := a + 1; b < len(nums); b++ {
			if r, ok := pearson(nums[a], nums[b]); ok {
				pairs = append(pairs, PairCorr{A: nums[a].Name, B: nums[b].Name, R: r})
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		ai := math.Abs(pairs[i].R)
		aj := math.Abs(pairs[j].R)
		if ai == aj {
			return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
		}
		return ai > aj
	})
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

func pearson(x, y *table.Column) (float64, bool) {
	var n, sumX, sumY, sumXX, sumYY, sumXY float64
	for i := range x.Values {
		if !x.Values[i].Valid || !y.Values[i].Valid {
			continue
		}
		a, b := x.Values[i].Num, y.Values[i].Num
		n++
		sumX += a
		sumY += b
		sumXX += a * a
		sumYY += b * b
		sumXY += a * b
	}
	if n < 2 {
		return 0, false
	}
	denom := math.Sqrt((n*sumXX - sumX*sumX) * (n*sumYY - sumY*sumY))
	if denom == 0 || math.IsNaN(denom) {
		return 0, false
	}
	r := (n*sumXY - sumX*sumY) / denom
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	return r, true
}

// Summary is the schema and statistics block embedded in model prompts.
func Summary(t *table.Table) string {
	var b strings.Builder
	b.WriteString("Column Names and Types:\n")
	b.WriteString(DTypes(t))
	b.WriteString("\n\nDataset Description:\n")
	b.WriteString(Describe(t).String())
	return b.String()
}

// CorrelationsMarkdown lists correlation pairs, one per line.
func CorrelationsMarkdown(pairs []PairCorr) string {
	if len(pairs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("[CORRELATIONS]\n")
	for _, p := range pairs {
		fmt.Fprintf(&b, "- %s ~ %s: r=%.3f\n", p.A, p.B, p.R)
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}
