package clean

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/vizqa/internal/notice"
	"github.com/KaramelBytes/vizqa/internal/table"
)

func build(header []string, rows ...[]string) *table.Table {
	return table.FromRecords("t.csv", header, rows, table.InferOptions{})
}

func TestCleanDoesNotMutateInput(t *testing.T) {
	in := build([]string{" Name ", "Age"}, []string{" Alice ", "25"}, []string{"Bob", ""}, []string{" Alice ", "25"})
	before := in.Records()

	out, _ := Clean(in)

	assert.Equal(t, before, in.Records())
	assert.Equal(t, []string{" Name ", "Age"}, in.ColumnNames())
	assert.NotSame(t, in, out)
}

func TestDuplicateRowsRemoved(t *testing.T) {
	in := build([]string{"name", "age"}, []string{"Alice", "25"}, []string{"Bob", "30"}, []string{"Alice", "25"})

	out, rep := Clean(in)

	require.Equal(t, 2, out.Rows())
	assert.Equal(t, 1, rep.DuplicatesRemoved)
	assert.Contains(t, rep.Notices(), notice.Notice{Level: notice.Warning, Text: "Removed 1 duplicate rows"})
	name, _ := out.Column("name")
	assert.Equal(t, "Alice", name.Values[0].Str)
	assert.Equal(t, "Bob", name.Values[1].Str)
}

func TestNumericMedianFill(t *testing.T) {
	in := build([]string{"v"}, []string{"10"}, []string{""}, []string{"30"})

	out, rep := Clean(in)

	v, _ := out.Column("v")
	require.True(t, v.Values[1].Valid)
	assert.InDelta(t, 20.0, v.Values[1].Num, 1e-9)
	assert.Equal(t, []Fill{{Column: "v", Count: 1}}, rep.Filled)
	assert.Equal(t, "float64", v.DType())
	assert.Equal(t, []notice.Notice{{Level: notice.Info, Text: "Filled 1 missing values in column 'v'"}}, rep.Notices())
}

func TestAllNullTextColumn(t *testing.T) {
	in := build([]string{"c"}, []string{""})

	var (
		out *table.Table
		rep Report
	)
	require.NotPanics(t, func() { out, rep = Clean(in) })

	c, _ := out.Column("c")
	require.True(t, c.Values[0].Valid)
	assert.Equal(t, "", c.Values[0].Str)
	assert.Len(t, rep.Notices(), 1)
}

func TestModeTiesPickSmallest(t *testing.T) {
	in := build([]string{"city"},
		[]string{"Paris"}, []string{"Berlin"}, []string{""}, []string{"Paris "}, []string{"Berlin"}, []string{"Paris"})

	out, _ := Clean(in)

	city, _ := out.Column("city")
	// After deduplication every value occurs once; "Paris " is distinct until trimmed.
	assert.Equal(t, "Berlin", city.Values[2].Str)
	assert.Equal(t, "Paris", city.Values[3].Str, "text is trimmed after imputation")
}

func TestDatetimeModeFill(t *testing.T) {
	in := build([]string{"d"}, []string{"2024-01-02"}, []string{""}, []string{"2024-01-02"}, []string{"2024-03-01"})

	out, rep := Clean(in)

	d, _ := out.Column("d")
	assert.Equal(t, "2024-01-02", d.Display(1))
	assert.Equal(t, 1, rep.Filled[0].Count)
}

func TestNormalizeNames(t *testing.T) {
	got := NormalizeNames([]string{" First Name ", "AGE (yrs)", "first  name", "%%", "Prix €", "Größe"})
	assert.Equal(t, []string{"first_name", "age_yrs", "first_name_1", "column_3", "prix_", "größe"}, got)

	assert.Equal(t, got, NormalizeNames(got), "normalization is idempotent")
}

func TestNormalizeNamesSuffixCollision(t *testing.T) {
	got := NormalizeNames([]string{"a", "a", "a_1"})
	assert.Equal(t, []string{"a", "a_1", "a_1_1"}, got)
	assert.Equal(t, got, NormalizeNames(got))
}

func TestCleanRecordsRenames(t *testing.T) {
	in := build([]string{"Total Sales", "id"}, []string{"1", "2"})
	out, rep := Clean(in)
	assert.Equal(t, []string{"total_sales", "id"}, out.ColumnNames())
	assert.Equal(t, map[string]string{"Total Sales": "total_sales"}, rep.Renamed)
}

func TestCleanEmptyAndNil(t *testing.T) {
	out, rep := Clean(nil)
	assert.True(t, out.Empty())
	assert.Empty(t, rep.Notices())

	empty := build([]string{"a", "b"})
	out, rep = Clean(empty)
	assert.Equal(t, []string{"a", "b"}, out.ColumnNames())
	assert.Equal(t, 0, rep.DuplicatesRemoved)
}

func TestNegativeZeroRowsAreDuplicates(t *testing.T) {
	in := build([]string{"k", "v"}, []string{"a", "0"}, []string{"a", "-0"}, []string{"a", "-0.0"})

	out, rep := Clean(in)

	assert.Equal(t, 1, out.Rows())
	assert.Equal(t, 2, rep.DuplicatesRemoved)
}

func TestNaNSpellingImputed(t *testing.T) {
	in := build([]string{"v"}, []string{"10"}, []string{"NAN"}, []string{"30"})

	out, rep := Clean(in)

	v, _ := out.Column("v")
	require.True(t, v.Values[1].Valid)
	assert.InDelta(t, 20.0, v.Values[1].Num, 1e-9)
	assert.Equal(t, []Fill{{Column: "v", Count: 1}}, rep.Filled)
}
