package sandbox

import (
	"context"
	"errors"
	"os"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/vizqa/internal/chart"
	"github.com/KaramelBytes/vizqa/internal/table"
)

// TestMain lets the test binary act as the isolated sandbox child.
func TestMain(m *testing.M) {
	RunChild()
	os.Exit(m.Run())
}

func salesTable() *table.Table {
	return table.FromRecords("sales.csv",
		[]string{"region", "product", "sales", "units"},
		[][]string{
			{"west", "a", "10", "1"},
			{"east", "b", "20", "2"},
			{"west", "b", "30", "3"},
			{"north", "a", "", "4"},
			{"east", "a", "5", "5"},
		}, table.InferOptions{})
}

func run(t *testing.T, src string) ([]*chart.Figure, error) {
	t.Helper()
	return New(Options{}).Run(context.Background(), src, salesTable())
}

func TestRunGroupedBarChart(t *testing.T) {
	figs, err := run(t, `
import matplotlib.pyplot as plt
import pandas as pd

totals = df.groupby("region")["sales"].sum()
totals.plot(kind="bar", title="Sales by region")
plt.ylabel("Sales")
plt.savefig("sales.png")
`)
	require.NoError(t, err)
	require.Len(t, figs, 1)

	fig := figs[0]
	assert.Equal(t, "Sales by region", fig.Title)
	assert.Equal(t, "Sales", fig.YLabel)
	require.Len(t, fig.Series, 1)
	s := fig.Series[0]
	assert.Equal(t, chart.Bar, s.Kind)
	assert.Equal(t, []string{"east", "north", "west"}, s.Labels)
	assert.Equal(t, []float64{25, 0, 40}, s.Y)
}

func TestRunLinePlotWithoutSave(t *testing.T) {
	figs, err := run(t, `
plt.figure(figsize=(8, 4))
plt.plot(df["units"], df["sales"], marker="o", label="sales")
plt.title("Units vs sales")
plt.legend()
`)
	require.NoError(t, err)
	require.Len(t, figs, 1)
	assert.Equal(t, 800, figs[0].Width)
	assert.Equal(t, 400, figs[0].Height)
	assert.True(t, figs[0].Legend)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, figs[0].Series[0].X)
}

func TestRunSubplotsProduceOneFigurePerAxes(t *testing.T) {
	figs, err := run(t, `
fig, axes = plt.subplots(1, 2, figsize=(10, 4))
axes[0].hist(df["units"], bins=3)
axes[0].set_title("Units")
df["region"].value_counts().plot(kind="pie", ax=axes[1])
fig.suptitle("Overview")
plt.show()
`)
	require.NoError(t, err)
	require.Len(t, figs, 2)
	assert.Equal(t, "Units", figs[0].Title)
	assert.Equal(t, chart.Hist, figs[0].Series[0].Kind)
	assert.Equal(t, "Overview", figs[1].Title)
	assert.Equal(t, chart.Pie, figs[1].Series[0].Kind)
	assert.Equal(t, []string{"east", "west", "north"}, figs[1].Series[0].Labels)
}

func TestRunSeaborn(t *testing.T) {
	figs, err := run(t, `
import seaborn as sns
sns.set_theme()
sns.countplot(data=df, x="region")
plt.show()
sns.barplot(data=df, x="region", y="units")
`)
	require.NoError(t, err)
	require.Len(t, figs, 2)

	counts := figs[0].Series[0]
	assert.Equal(t, []string{"west", "east", "north"}, counts.Labels)
	assert.Equal(t, []float64{2, 2, 1}, counts.Y)
	assert.Equal(t, "count", figs[0].YLabel)

	means := figs[1].Series[0]
	assert.Equal(t, []float64{2, 3.5, 4}, means.Y)
	assert.Equal(t, "units", figs[1].YLabel)
}

func TestRunDoesNotMutateInput(t *testing.T) {
	tbl := salesTable()
	_, err := New(Options{}).Run(context.Background(), `
df["double"] = df["sales"] * 2
df["region"] = "x"
df.sort_values("sales").head(2)
`, tbl)
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "product", "sales", "units"}, tbl.ColumnNames())
	region, _ := tbl.Column("region")
	assert.Equal(t, "west", region.Display(0))
}

func TestRunNoFigures(t *testing.T) {
	figs, err := run(t, `x = len(df)`)
	require.NoError(t, err)
	assert.Empty(t, figs)

	figs, err = run(t, `
plt.bar(["a"], [1])
plt.close()
`)
	require.NoError(t, err)
	assert.Empty(t, figs)
}

func TestRunRejectsImports(t *testing.T) {
	_, err := run(t, "import matplotlib.pyplot as plt\nimport os\nplt.plot([1])")
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 2, serr.Line)
	assert.Contains(t, serr.Error(), `import of "os" is not allowed`)

	_, err = run(t, "from subprocess import run")
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 1, serr.Line)
}

func TestRunRejectsUnknownAttributes(t *testing.T) {
	_, err := run(t, "\nplt.imshow([[1]])")
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 2, serr.Line)
	assert.Contains(t, serr.Msg, "plt.imshow is not allowed")
}

func TestRunReportsScriptErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
		msg  string
	}{
		{"syntax", "x = 1\ny = = 2", 2, "syntax error"},
		{"undefined", "x = 1\nprint(y)", 2, "undefined: y"},
		{"missing column", `df["nope"]`, 1, "nope"},
		{"shape mismatch", "plt.plot([1, 2], [1, 2, 3])", 1, "x and y must have same first dimension"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := run(t, tc.src)
			var serr *Error
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, tc.line, serr.Line)
			assert.Contains(t, serr.Msg, tc.msg)
		})
	}
}

func TestRunStepLimit(t *testing.T) {
	r := New(Options{MaxSteps: 10_000, Timeout: time.Minute})
	_, err := r.Run(context.Background(), "while True:\n    pass\n", salesTable())
	require.ErrorIs(t, err, ErrStepLimit)
	assert.Contains(t, err.Error(), "limit 10000")
}

func TestRunTimeout(t *testing.T) {
	r := New(Options{MaxSteps: 1 << 62, Timeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := r.Run(context.Background(), "while True:\n    pass\n", salesTable())
	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)

	// The recycled thread must run again after being cancelled.
	figs, err := r.Run(context.Background(), `plt.bar(["a"], [1])`, salesTable())
	require.NoError(t, err)
	assert.Len(t, figs, 1)
}

func TestRunTooManyFigures(t *testing.T) {
	r := New(Options{MaxFigures: 2})
	_, err := r.Run(context.Background(), `
for i in range(3):
    plt.figure()
    plt.plot([i, i + 1])
`, salesTable())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many figures (limit 2)")
}

func TestRunConcurrent(t *testing.T) {
	r := New(Options{Concurrency: 2})
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.Run(context.Background(), `df["units"].plot(kind="hist")`, salesTable())
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.LessOrEqual(t, r.pool.size(), 2)
}

func TestRunCancelledContext(t *testing.T) {
	r := New(Options{Concurrency: 1})
	require.True(t, r.sem.TryAcquire(1))
	defer r.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx, `plt.plot([1])`, salesTable())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestStripImportsKeepsLineNumbers(t *testing.T) {
	src := "import pandas as pd\nimport numpy as np, matplotlib.pyplot as plt\nfrom matplotlib import pyplot\nx = 1"
	out, err := stripImports(src)
	require.NoError(t, err)
	assert.Equal(t, "\n\n\nx = 1", out)
	assert.Equal(t, strings.Count(src, "\n"), strings.Count(out, "\n"))
}

func TestThreadPoolReuse(t *testing.T) {
	p := newThreadPool(1)
	th := p.get("a")
	th.Steps = 42
	th.Cancel("done")
	p.put(th)
	p.put(p.get("b"))
	assert.Equal(t, 1, p.size())

	again := p.get("c")
	assert.Equal(t, "c", again.Name)
	assert.Equal(t, uint64(0), again.Steps)
	assert.Equal(t, 0, p.size())
}

func TestRunRejectsOversizedBuiltins(t *testing.T) {
	r := New(Options{MaxSteps: 1000, Timeout: 100 * time.Millisecond})
	cases := map[string]string{
		"list over huge range": "x = list(range(400000000))",
		"sort over huge range": "x = sorted(range(8000000), reverse=True)",
		"sum over huge range":  "x = sum(range(2000000))",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			start := time.Now()
			_, err := r.Run(context.Background(), src, salesTable())
			var serr *Error
			require.ErrorAs(t, err, &serr)
			assert.Contains(t, serr.Msg, "exceeds the limit")
			assert.Equal(t, 1, serr.Line)
			assert.Less(t, time.Since(start), time.Second)
		})
	}

	// Ranges within the cap still work.
	figs, err := New(Options{}).Run(context.Background(), "xs = list(range(10))\nplt.plot(xs, sorted(xs, reverse=True))", salesTable())
	require.NoError(t, err)
	assert.Len(t, figs, 1)
}

func isolated(opts Options) *Runner {
	opts.Isolate = true
	return New(opts)
}

func TestIsolatedRunReturnsFigures(t *testing.T) {
	r := isolated(Options{})
	figs, err := r.Run(context.Background(), `
import matplotlib.pyplot as plt
plt.bar(["west", "east"], [df["sales"].sum(), 5])
plt.title("Sales")
plt.show()
`, salesTable())
	require.NoError(t, err)
	require.Len(t, figs, 1)
	assert.Equal(t, "Sales", figs[0].Title)
	assert.NotEmpty(t, figs[0].Series)
}

func TestIsolatedRunReportsScriptErrors(t *testing.T) {
	r := isolated(Options{})
	_, err := r.Run(context.Background(), "x = 1\nplt.imshow(df)\n", salesTable())
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 2, serr.Line)
	assert.Contains(t, serr.Msg, "plt.imshow is not allowed")

	_, err = isolated(Options{MaxSteps: 10_000}).Run(context.Background(), "while True:\n    pass\n", salesTable())
	require.ErrorIs(t, err, ErrStepLimit)
}

func TestIsolatedRunTimeout(t *testing.T) {
	r := isolated(Options{MaxSteps: 1 << 62, Timeout: 100 * time.Millisecond})
	start := time.Now()
	_, err := r.Run(context.Background(), "while True:\n    pass\n", salesTable())
	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestIsolatedRunSurvivesMemoryExhaustion(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("address-space limits are enforced on linux only")
	}
	r := isolated(Options{MaxMemory: 1 << 30, Timeout: 10 * time.Second})
	_, err := r.Run(context.Background(), "s = \"x\" * 1000000000\nt = s + s\n", salesTable())
	require.ErrorIs(t, err, ErrResourceLimit)
	assert.Contains(t, err.Error(), "memory limit 1024 MB")

	// The runner stays usable after a child dies.
	figs, err := r.Run(context.Background(), `plt.plot([1, 2, 3])`, salesTable())
	require.NoError(t, err)
	assert.Len(t, figs, 1)
}
