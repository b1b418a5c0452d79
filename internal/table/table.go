// Package table holds the in-memory columnar dataset shared by the loader,
// the cleaner, the analysis helpers and the plotting sandbox.
package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the inferred type of a column.
type Kind int

const (
	Text Kind = iota
	Numeric
	Datetime
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Datetime:
		return "datetime"
	default:
		return "text"
	}
}

// Value is a single cell. Valid=false marks a missing value.
type Value struct {
	Valid bool
	Str   string
	Num   float64
	Time  time.Time
}

// Null returns a missing value.
func Null() Value { return Value{} }

// String returns a valid text value.
func String(s string) Value { return Value{Valid: true, Str: s} }

// Number returns a valid numeric value.
func Number(f float64) Value { return Value{Valid: true, Num: f} }

// Timestamp returns a valid datetime value.
func Timestamp(t time.Time) Value { return Value{Valid: true, Time: t} }

// Column is a named, typed vector of values.
type Column struct {
	Name string
	Kind Kind
	// IntLike is true when every numeric value came from an integer literal.
	IntLike bool
	Values  []Value
}

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.Values) }

// Missing counts cells with no value.
func (c *Column) Missing() int {
	n := 0
	for _, v := range c.Values {
		if !v.Valid {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the column.
func (c *Column) Clone() *Column {
	vals := make([]Value, len(c.Values))
	copy(vals, c.Values)
	return &Column{Name: c.Name, Kind: c.Kind, IntLike: c.IntLike, Values: vals}
}

// DType reports the column type using pandas dtype names.
func (c *Column) DType() string {
	switch c.Kind {
	case Numeric:
		if c.IntLike && c.Missing() == 0 {
			return "int64"
		}
		return "float64"
	case Datetime:
		return "datetime64[ns]"
	default:
		return "object"
	}
}

// Display renders the i-th cell for human consumption (NaN for missing).
func (c *Column) Display(i int) string {
	v := c.Values[i]
	if !v.Valid {
		if c.Kind == Datetime {
			return "NaT"
		}
		return "NaN"
	}
	return c.format(v, true)
}

// Raw renders the i-th cell for CSV output (empty for missing).
func (c *Column) Raw(i int) string {
	v := c.Values[i]
	if !v.Valid {
		return ""
	}
	return c.format(v, false)
}

func (c *Column) format(v Value, display bool) string {
	switch c.Kind {
	case Numeric:
		return FormatNumber(v.Num, c.DType() == "int64" || !display)
	case Datetime:
		return FormatTime(v.Time)
	default:
		return v.Str
	}
}

// FormatNumber prints f without trailing zeros. When bare is false an
// integral value keeps a ".0" suffix, the way pandas shows float64 cells.
func FormatNumber(f float64, bare bool) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !bare && !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// FormatTime prints a date, or a date and time when the clock part is set.
func FormatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

// Table is an ordered set of equally long columns.
type Table struct {
	Name    string
	Columns []*Column
}

// New builds a table from columns. All columns must have the same length.
func New(name string, cols ...*Column) (*Table, error) {
	for i := 1; i < len(cols); i++ {
		if cols[i].Len() != cols[0].Len() {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", cols[i].Name, cols[i].Len(), cols[0].Len())
		}
	}
	return &Table{Name: name, Columns: cols}, nil
}

// Rows returns the number of rows.
func (t *Table) Rows() int {
	if t == nil || len(t.Columns) == 0 {
		return 0
	}
	return t.Columns[0].Len()
}

// Shape returns (rows, columns).
func (t *Table) Shape() (int, int) {
	if t == nil {
		return 0, 0
	}
	return t.Rows(), len(t.Columns)
}

// Empty reports whether the table has no rows or no columns.
func (t *Table) Empty() bool {
	r, c := t.Shape()
	return r == 0 || c == 0
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Column finds a column by exact name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Clone returns a deep copy; mutating the copy never affects t.
func (t *Table) Clone() *Table {
	out := &Table{Name: t.Name, Columns: make([]*Column, len(t.Columns))}
	for i, c := range t.Columns {
		out.Columns[i] = c.Clone()
	}
	return out
}

// Select returns a new table with the given row indices, in order.
func (t *Table) Select(rows []int) *Table {
	out := &Table{Name: t.Name, Columns: make([]*Column, len(t.Columns))}
	for i, c := range t.Columns {
		nc := &Column{Name: c.Name, Kind: c.Kind, IntLike: c.IntLike, Values: make([]Value, len(rows))}
		for j, r := range rows {
			nc.Values[j] = c.Values[r]
		}
		out.Columns[i] = nc
	}
	return out
}

// Head returns the first n rows.
func (t *Table) Head(n int) *Table {
	if n > t.Rows() {
		n = t.Rows()
	}
	if n < 0 {
		n = 0
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return t.Select(idx)
}

// Row returns the values of row i across all columns.
func (t *Table) Row(i int) []Value {
	out := make([]Value, len(t.Columns))
	for j, c := range t.Columns {
		out[j] = c.Values[i]
	}
	return out
}

// RowKey returns a string that is equal for two rows exactly when every
// cell is equal; missing compares equal to missing.
func (t *Table) RowKey(i int) string {
	var b strings.Builder
	for _, c := range t.Columns {
		v := c.Values[i]
		if !v.Valid {
			b.WriteString("\x00;")
			continue
		}
		var s string
		switch c.Kind {
		case Numeric:
			f := v.Num
			if f == 0 {
				f = 0 // -0 and 0 are the same value
			}
			s = strconv.FormatUint(math.Float64bits(f), 16)
		case Datetime:
			s = strconv.FormatInt(v.Time.UnixNano(), 16)
		default:
			s = v.Str
		}
		fmt.Fprintf(&b, "%d:%s;", len(s), s)
	}
	return b.String()
}

// Records renders the table as a header row followed by raw data rows.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, t.Rows()+1)
	out = append(out, t.ColumnNames())
	for i := 0; i < t.Rows(); i++ {
		row := make([]string, len(t.Columns))
		for j, c := range t.Columns {
			row[j] = c.Raw(i)
		}
		out = append(out, row)
	}
	return out
}
