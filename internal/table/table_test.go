package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRecordsInfersKinds(t *testing.T) {
	tb := FromRecords("people.csv",
		[]string{"name", "age", "score", "joined", "notes"},
		[][]string{
			{"Alice", "25", "1.5", "2024-01-02", ""},
			{"Bob", "30", "NA", "2024-02-03", "  "},
			{"Cara", "", "2", "2024-03-04", "x"},
		}, InferOptions{})

	require.Equal(t, 3, tb.Rows())
	kinds := map[string]Kind{}
	for _, c := range tb.Columns {
		kinds[c.Name] = c.Kind
	}
	assert.Equal(t, Text, kinds["name"])
	assert.Equal(t, Numeric, kinds["age"])
	assert.Equal(t, Numeric, kinds["score"])
	assert.Equal(t, Datetime, kinds["joined"])
	assert.Equal(t, Text, kinds["notes"])

	age, _ := tb.Column("age")
	assert.Equal(t, "float64", age.DType(), "int column with missing values is float64")
	assert.Equal(t, 1, age.Missing())

	notes, _ := tb.Column("notes")
	assert.True(t, notes.Values[1].Valid, "whitespace-only cells are not missing")
	assert.Equal(t, "  ", notes.Values[1].Str)
}

func TestIntColumnDType(t *testing.T) {
	tb := FromRecords("", []string{"n"}, [][]string{{"1"}, {"2"}}, InferOptions{})
	assert.Equal(t, "int64", tb.Columns[0].DType())
	assert.Equal(t, "2", tb.Columns[0].Display(1))

	fl := FromRecords("", []string{"n"}, [][]string{{"1.0"}, {"2"}}, InferOptions{})
	assert.Equal(t, "float64", fl.Columns[0].DType())
	assert.Equal(t, "2.0", fl.Columns[0].Display(1))
	assert.Equal(t, "2", fl.Columns[0].Raw(1))
}

func TestAllMissingColumnIsText(t *testing.T) {
	tb := FromRecords("", []string{"empty"}, [][]string{{""}, {"NaN"}}, InferOptions{})
	assert.Equal(t, Text, tb.Columns[0].Kind)
	assert.Equal(t, "object", tb.Columns[0].DType())
	assert.Equal(t, 2, tb.Columns[0].Missing())
}

func TestHeaderNamesAreDisambiguated(t *testing.T) {
	tb := FromRecords("", []string{"a", "a", "", "a"}, [][]string{{"1", "2", "3", "4", "5"}}, InferOptions{})
	assert.Equal(t, []string{"a", "a.1", "Unnamed: 2", "a.2", "Unnamed: 4"}, tb.ColumnNames())
}

func TestLocaleNumbers(t *testing.T) {
	f, ok := ParseLocaleNumber("1.234,5", 0, 0)
	require.True(t, ok)
	assert.InDelta(t, 1234.5, f, 1e-9)

	f, ok = ParseLocaleNumber("12 %", 0, 0)
	require.True(t, ok)
	assert.InDelta(t, 12, f, 1e-9)

	tb := FromRecords("", []string{"v"}, [][]string{{"1,5"}, {"2,25"}}, InferOptions{LocaleNumbers: true})
	assert.Equal(t, Numeric, tb.Columns[0].Kind)
	assert.InDelta(t, 2.25, tb.Columns[0].Values[1].Num, 1e-9)

	strict := FromRecords("", []string{"v"}, [][]string{{"1,5"}}, InferOptions{})
	assert.Equal(t, Text, strict.Columns[0].Kind)
}

func TestCloneIsDeep(t *testing.T) {
	tb := FromRecords("", []string{"x"}, [][]string{{"a"}, {"b"}}, InferOptions{})
	cp := tb.Clone()
	cp.Columns[0].Values[0] = String("changed")
	cp.Columns[0].Name = "y"
	assert.Equal(t, "a", tb.Columns[0].Values[0].Str)
	assert.Equal(t, "x", tb.Columns[0].Name)
}

func TestRowKeyTreatsMissingAsEqual(t *testing.T) {
	tb := FromRecords("", []string{"a", "b"}, [][]string{{"x", ""}, {"x", ""}, {"x", "1"}, {"", "x"}}, InferOptions{})
	assert.Equal(t, tb.RowKey(0), tb.RowKey(1))
	assert.NotEqual(t, tb.RowKey(0), tb.RowKey(2))
	assert.NotEqual(t, tb.RowKey(2), tb.RowKey(3))
}

func TestEmptyAndHead(t *testing.T) {
	var nilTable *Table
	assert.True(t, nilTable.Empty())
	assert.True(t, (&Table{}).Empty())

	noRows := FromRecords("", []string{"a"}, nil, InferOptions{})
	assert.True(t, noRows.Empty())

	tb := FromRecords("", []string{"a"}, [][]string{{"1"}, {"2"}, {"3"}}, InferOptions{})
	assert.False(t, tb.Empty())
	assert.Equal(t, 2, tb.Head(2).Rows())
	assert.Equal(t, 3, tb.Head(10).Rows())
}

func TestRecords(t *testing.T) {
	tb := FromRecords("", []string{"a", "b"}, [][]string{{"1", ""}, {"2", "x"}}, InferOptions{})
	assert.Equal(t, [][]string{{"a", "b"}, {"1", ""}, {"2", "x"}}, tb.Records())
}

func TestNaNSpellingsAreMissing(t *testing.T) {
	tb := FromRecords("", []string{"v"}, [][]string{{"1"}, {"NAN"}, {"nAn"}, {" -NaN "}, {"+nan"}, {"3"}}, InferOptions{})
	c := tb.Columns[0]
	require.Equal(t, Numeric, c.Kind)
	assert.True(t, c.IntLike)
	assert.Equal(t, 4, c.Missing())
	assert.Equal(t, 1.0, c.Values[0].Num)
	assert.Equal(t, 3.0, c.Values[5].Num)

	loc := FromRecords("", []string{"v"}, [][]string{{"1,5"}, {"NAN"}}, InferOptions{LocaleNumbers: true})
	assert.Equal(t, Numeric, loc.Columns[0].Kind)
	assert.False(t, loc.Columns[0].Values[1].Valid)
}

func TestRowKeyNegativeZero(t *testing.T) {
	tb := FromRecords("", []string{"a", "b"}, [][]string{{"x", "0"}, {"x", "-0"}, {"x", "-0.0"}, {"x", "1"}}, InferOptions{})
	require.Equal(t, Numeric, tb.Columns[1].Kind)
	assert.Equal(t, tb.RowKey(0), tb.RowKey(1))
	assert.Equal(t, tb.RowKey(0), tb.RowKey(2))
	assert.NotEqual(t, tb.RowKey(0), tb.RowKey(3))
}

func TestFromRecordsCapsWidth(t *testing.T) {
	row := make([]string, MaxColumns+5)
	tb := FromRecords("", []string{"a"}, [][]string{row}, InferOptions{})
	_, cols := tb.Shape()
	assert.Equal(t, MaxColumns, cols)
}
