package viz

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/KaramelBytes/vizqa/internal/analysis"
	"github.com/KaramelBytes/vizqa/internal/table"
	"github.com/KaramelBytes/vizqa/internal/utils"
)

const promptTemplate = `You are an expert in data visualization. Given the dataset structure below, write plotting code for the user's request using matplotlib or seaborn.

Dataset Overview:
%s

User Request:
%s

Guidelines:
- Respond with code only, in a single ` + "```python" + ` block, with no explanations or comments.
- Use the exact column names from the dataset.
- The dataset is already loaded as ` + "`df`" + `; do not read files and do not redefine ` + "`df`" + `.
- ` + "`plt`" + ` (matplotlib.pyplot) and ` + "`sns`" + ` (seaborn) are already in scope.
- The code runs in a restricted Python dialect: no f-strings, no try/except, no classes, no with-blocks, and no imports other than matplotlib, seaborn, pandas and numpy.
- Supported DataFrame operations: df["col"], df.columns, df.shape, df.dtypes, head, tail, dropna, sort_values, nlargest, nsmallest, value_counts, unique, groupby(col)[col].sum/mean/count/min/max/median, groupby_agg(by, col, func).
- Supported Series operations: arithmetic with numbers or other columns, sum, mean, median, min, max, std, count, unique, nunique, value_counts, sort_values, head, tail, dropna, tolist, plot(kind=...).
- Supported plotting calls: plt.figure, plt.subplots, plt.plot, plt.bar, plt.barh, plt.scatter, plt.hist, plt.pie, plt.title, plt.xlabel, plt.ylabel, plt.legend, plt.grid, plt.show, and sns.barplot, sns.countplot, sns.histplot, sns.scatterplot, sns.lineplot.
- The visualization should be relevant to the dataset's structure.
- If necessary, infer numerical, categorical, or time-based trends.

Provide only the code.`

// BuildPrompt renders the instruction sent to the model. The dataset summary
// is truncated to summaryLimit tokens when summaryLimit > 0.
func BuildPrompt(t *table.Table, request string, summaryLimit int) string {
	summary := analysis.Summary(t)
	if summaryLimit > 0 && utils.CountTokens(summary) > summaryLimit {
		summary = utils.TruncateToTokenLimit(summary, summaryLimit) + "\n..."
	}
	return fmt.Sprintf(promptTemplate, summary, strings.TrimSpace(request))
}

var fenceRe = regexp.MustCompile("(?s)```(?:python|py|starlark)[^\\n]*\\n(.*?)\\n?```")

// ExtractCode returns the first python fenced block in text. Without a
// block, a non-blank response is returned as is with fallback set.
func ExtractCode(text string) (code string, fallback bool, err error) {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return m[1], false, nil
	}
	if strings.TrimSpace(text) == "" {
		return "", false, ErrNoCode
	}
	return text, true, nil
}
