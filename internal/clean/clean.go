// Package clean produces a tidied copy of a dataset: normalized column
// names, exact duplicates removed, missing values imputed, text trimmed.
package clean

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/vizqa/internal/notice"
	"github.com/KaramelBytes/vizqa/internal/table"
)

// Fill records how many cells of a column were imputed.
type Fill struct {
	Column string `json:"column"`
	Count  int    `json:"count"`
}

// Report describes what Clean changed.
type Report struct {
	DuplicatesRemoved int               `json:"duplicates_removed"`
	Filled            []Fill            `json:"filled,omitempty"`
	Renamed           map[string]string `json:"renamed,omitempty"`
}

// Notices renders the report as user-facing messages.
func (r Report) Notices() []notice.Notice {
	var out []notice.Notice
	if r.DuplicatesRemoved > 0 {
		out = append(out, notice.Warnf("Removed %d duplicate rows", r.DuplicatesRemoved))
	}
	for _, f := range r.Filled {
		out = append(out, notice.Infof("Filled %d missing values in column '%s'", f.Count, f.Column))
	}
	return out
}

// Clean returns a cleaned deep copy of t. The input is never modified.
func Clean(t *table.Table) (*table.Table, Report) {
	rep := Report{Renamed: map[string]string{}}
	if t == nil {
		return &table.Table{}, rep
	}
	out := t.Clone()

	names := NormalizeNames(out.ColumnNames())
	for i, c := range out.Columns {
		if c.Name != names[i] {
			rep.Renamed[c.Name] = names[i]
			c.Name = names[i]
		}
	}

	out, rep.DuplicatesRemoved = dropDuplicates(out)

	for _, c := range out.Columns {
		if n := impute(c); n > 0 {
			rep.Filled = append(rep.Filled, Fill{Column: c.Name, Count: n})
		}
	}

	for _, c := range out.Columns {
		if c.Kind != table.Text {
			continue
		}
		for i, v := range c.Values {
			if v.Valid {
				c.Values[i].Str = strings.TrimSpace(v.Str)
			}
		}
	}
	return out, rep
}

var (
	spaceRun = regexp.MustCompile(`\s+`)
	nonWord  = regexp.MustCompile(`[^\p{L}\p{N}_]`)
)

// NormalizeName lower-cases and trims s, joins whitespace runs with '_' and
// drops every character that is not a letter, digit or underscore.
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = spaceRun.ReplaceAllString(s, "_")
	return nonWord.ReplaceAllString(s, "")
}

// NormalizeNames normalizes every name and resolves collisions with _1, _2
// suffixes. Names that normalize to nothing become column_<index>.
func NormalizeNames(names []string) []string {
	out := make([]string, len(names))
	seen := make(map[string]bool, len(names))
	for i, n := range names {
		base := NormalizeName(n)
		if base == "" {
			base = fmt.Sprintf("column_%d", i)
		}
		name := base
		for k := 1; seen[name]; k++ {
			name = fmt.Sprintf("%s_%d", base, k)
		}
		seen[name] = true
		out[i] = name
	}
	return out
}

func dropDuplicates(t *table.Table) (*table.Table, int) {
	seen := make(map[string]struct{}, t.Rows())
	keep := make([]int, 0, t.Rows())
	for i := 0; i < t.Rows(); i++ {
		k := t.RowKey(i)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keep = append(keep, i)
	}
	removed := t.Rows() - len(keep)
	if removed == 0 {
		return t, 0
	}
	return t.Select(keep), removed
}

// impute fills missing cells in place and returns how many were filled.
func impute(c *table.Column) int {
	missing := c.Missing()
	if missing == 0 {
		return 0
	}
	var fill table.Value
	switch c.Kind {
	case table.Numeric:
		m, ok := median(c)
		if !ok {
			return 0
		}
		fill = table.Number(m)
		c.IntLike = false
	case table.Datetime:
		tm, ok := modeTime(c)
		if !ok {
			return 0
		}
		fill = table.Timestamp(tm)
	default:
		fill = table.String(modeString(c))
	}
	for i, v := range c.Values {
		if !v.Valid {
			c.Values[i] = fill
		}
	}
	return missing
}

func median(c *table.Column) (float64, bool) {
	vals := make([]float64, 0, c.Len())
	for _, v := range c.Values {
		if v.Valid {
			vals = append(vals, v.Num)
		}
	}
	if len(vals) == 0 {
		return 0, false
	}
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid], true
	}
	return (vals[mid-1] + vals[mid]) / 2, true
}

// modeString returns the most frequent value; ties go to the smallest.
// An all-missing column yields "".
func modeString(c *table.Column) string {
	counts := map[string]int{}
	for _, v := range c.Values {
		if v.Valid {
			counts[v.Str]++
		}
	}
	best, bestN := "", 0
	for s, n := range counts {
		if n > bestN || (n == bestN && s < best) {
			best, bestN = s, n
		}
	}
	return best
}

func modeTime(c *table.Column) (time.Time, bool) {
	counts := map[int64]int{}
	byKey := map[int64]time.Time{}
	for _, v := range c.Values {
		if v.Valid {
			k := v.Time.UnixNano()
			counts[k]++
			byKey[k] = v.Time
		}
	}
	if len(counts) == 0 {
		return time.Time{}, false
	}
	var best int64
	bestN := 0
	for k, n := range counts {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	return byKey[best], true
}
