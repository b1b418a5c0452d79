package chart

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestRenderKinds(t *testing.T) {
	cases := map[string]*Figure{
		"line": {Title: "Sales", XLabel: "month", YLabel: "units", Legend: true, Grid: true, Series: []Series{
			{Name: "north", Kind: Line, X: []float64{1, 2, 3}, Y: []float64{10, 12, 9}},
			{Name: "south", Kind: Line, X: []float64{1, 2, 3}, Y: []float64{7, 8, 11}},
		}},
		"scatter": {Series: []Series{{Kind: Scatter, X: []float64{1, 2, 3, 4}, Y: []float64{2, 4, 1, 3}}}},
		"categorical line": {Series: []Series{{Kind: Line, Labels: []string{"a", "b", "c"}, Y: []float64{1, 3, 2}}}},
		"bar":              {Title: "Counts", Series: []Series{{Kind: Bar, Labels: []string{"a", "b"}, Y: []float64{3, 5}}}},
		"barh":             {Series: []Series{{Kind: BarH, Labels: []string{"x"}, Y: []float64{2}}}},
		"hist":             {Series: []Series{{Kind: Hist, Y: []float64{1, 2, 2, 3, 3, 3, 4}, Bins: 4}}},
		"pie":              {Title: "Share", Series: []Series{{Kind: Pie, Labels: []string{"a", "b", "c"}, Y: []float64{1, 2, 3}}}},
		"single point":     {Series: []Series{{Kind: Line, X: []float64{5}, Y: []float64{5}}}},
		"time axis":        {XTime: true, Series: []Series{{Kind: Line, X: []float64{1.7e9, 1.7e9 + 86400, 1.7e9 + 2*86400}, Y: []float64{1, 2, 3}}}},
	}
	for name, fig := range cases {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Render(fig, &buf))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic), "output is not a PNG")
		})
	}
}

func TestRenderEmpty(t *testing.T) {
	assert.ErrorIs(t, Render(nil, &bytes.Buffer{}), ErrNoData)
	assert.ErrorIs(t, Render(&Figure{Series: []Series{{Kind: Line}}}, &bytes.Buffer{}), ErrNoData)

	_, err := RenderPNG(&Figure{Series: []Series{{Kind: Pie, Labels: []string{"a"}, Y: []float64{0}}}})
	assert.ErrorIs(t, err, ErrNoData)
}

func TestFigureKind(t *testing.T) {
	assert.Equal(t, Line, (&Figure{}).Kind())
	assert.Equal(t, Bar, (&Figure{Series: []Series{{Kind: Bar}, {Kind: BarH}}}).Kind())
	assert.Equal(t, Hist, (&Figure{Series: []Series{{Kind: Hist}}}).Kind())
	assert.Equal(t, Line, (&Figure{Series: []Series{{Kind: Bar}, {Kind: Line}}}).Kind())
	assert.Equal(t, Pie, (&Figure{Series: []Series{{Kind: Line}, {Kind: Pie}}}).Kind())
}

func TestHistogram(t *testing.T) {
	labels, counts := Histogram([]float64{0, 1, 2, 3, 4, 10}, 2)
	assert.Equal(t, []string{"0", "5"}, labels)
	assert.Equal(t, []float64{5, 1}, counts)

	labels, counts = Histogram([]float64{7, 7, 7}, 0)
	assert.Len(t, labels, DefaultBins)
	assert.Equal(t, float64(3), counts[0])

	labels, counts = Histogram(nil, 3)
	assert.Nil(t, labels)
	assert.Nil(t, counts)
}

func TestPadRange(t *testing.T) {
	lo, hi := padRange(5, 5)
	assert.Less(t, lo, 5.0)
	assert.Greater(t, hi, 5.0)

	lo, hi = padRange(10, 0)
	assert.Less(t, lo, 0.0)
	assert.Greater(t, hi, 10.0)
}

func TestNiceTicksLabels(t *testing.T) {
	ticks := niceTicks(0, 10, 6, false)
	require.NotEmpty(t, ticks)
	assert.Equal(t, "0", ticks[0].Label)
	for _, tk := range ticks {
		assert.GreaterOrEqual(t, tk.Value, 0.0)
		assert.LessOrEqual(t, tk.Value, 10.0)
	}
	assert.Nil(t, niceTicks(0, 1, 1, false))
}
