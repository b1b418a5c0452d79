package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/vizqa/internal/ai"
	cfgpkg "github.com/KaramelBytes/vizqa/internal/config"
	"github.com/KaramelBytes/vizqa/internal/loader"
	"github.com/KaramelBytes/vizqa/internal/sandbox"
	"github.com/KaramelBytes/vizqa/internal/utils"
	"github.com/KaramelBytes/vizqa/internal/viz"
)

var (
	vizLoad        loadFlags
	vizPrompt      string
	vizClean       bool
	vizOutputDir   string
	vizModel       string
	vizMaxTokens   int
	vizTemperature float64
	vizPrintCode   bool
	vizPrintPrompt bool
)

var visualizeCmd = &cobra.Command{
	Use:   "visualize <file>",
	Short: "Ask the model for a chart of a dataset and render it to PNG",
	Args:  cobra.ExactArgs(1),
	Example: `  vizqa visualize sales.csv -p "monthly revenue as a line chart"
  vizqa visualize survey.xlsx --clean -p "age distribution" -o charts/
  vizqa visualize sales.csv -p "top products" --print-prompt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		opt, err := vizLoad.options()
		if err != nil {
			return err
		}
		t, err := loader.LoadFile(args[0], opt)
		if err != nil {
			return err
		}
		if t.Empty() {
			return viz.ErrEmptyTable
		}
		if strings.TrimSpace(vizPrompt) == "" {
			return viz.ErrEmptyPrompt
		}
		out := cmd.OutOrStdout()
		if vizClean {
			t = cleanAndReport(out, t)
		}
		if vizPrintPrompt {
			fmt.Fprintln(out, viz.BuildPrompt(t, vizPrompt, viz.DefaultSummaryTokenLimit))
			return nil
		}

		model := selectModel(c, vizModel)
		rt, err := newRuntime(c, c.ResolveAPIKey(), nil)
		if err != nil {
			return explainAIError(err, c.DefaultProvider, model)
		}
		maxTokens := c.MaxTokens
		if vizMaxTokens > 0 {
			maxTokens = vizMaxTokens
		}
		temp := c.Temperature
		if cmd.Flags().Changed("temperature") {
			temp = vizTemperature
		}
		svc := viz.New(rt, newSandbox(c), viz.Options{
			Model:       model,
			MaxTokens:   maxTokens,
			Temperature: temp,
		}, log)

		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout(c))
		defer cancel()
		res, err := svc.Generate(ctx, t, vizPrompt)
		if res == nil {
			return explainAIError(err, c.DefaultProvider, model)
		}
		printVisualization(out, res, model)
		if err != nil {
			return err
		}
		return writeCharts(out, vizOutputDir, res.Charts)
	},
}

func init() {
	rootCmd.AddCommand(visualizeCmd)
	vizLoad.register(visualizeCmd)
	visualizeCmd.Flags().StringVarP(&vizPrompt, "prompt", "p", "", "what to visualize, in plain language")
	visualizeCmd.Flags().BoolVar(&vizClean, "clean", false, "clean the dataset before visualizing")
	visualizeCmd.Flags().StringVarP(&vizOutputDir, "output", "o", ".", "directory for rendered PNG files")
	visualizeCmd.Flags().StringVarP(&vizModel, "model", "m", "", "model to use (overrides config)")
	visualizeCmd.Flags().IntVar(&vizMaxTokens, "max-tokens", 0, "max completion tokens (overrides config)")
	visualizeCmd.Flags().Float64Var(&vizTemperature, "temperature", 0, "sampling temperature (overrides config)")
	visualizeCmd.Flags().BoolVar(&vizPrintCode, "print-code", false, "print the generated plotting code")
	visualizeCmd.Flags().BoolVar(&vizPrintPrompt, "print-prompt", false, "print the model prompt and exit without calling the model")
}

func newSandbox(c *cfgpkg.Global) *sandbox.Runner {
	return sandbox.New(sandbox.Options{
		Timeout:   c.ExecTimeout(),
		MaxSteps:  c.ExecMaxSteps,
		Isolate:   c.ExecIsolate,
		MaxMemory: int64(c.ExecMaxMemoryMB) << 20,
		Logger:    log,
	})
}

func requestTimeout(c *cfgpkg.Global) time.Duration {
	if d := c.RequestTimeout(); d > 0 {
		return d
	}
	return 3 * time.Minute
}

func printVisualization(w io.Writer, res *viz.Result, model string) {
	switch {
	case res.Code == "":
		fmt.Fprintln(w, res.Response)
		fmt.Fprintln(w)
	case vizPrintCode:
		fmt.Fprintln(w, res.Code)
		fmt.Fprintln(w)
	}
	for _, n := range res.Notices {
		fmt.Fprintln(w, n)
	}
	if res.Usage.PromptTokens+res.Usage.CompletionTokens > 0 {
		if cost, ok := ai.EstimateCostUSD(model, res.Usage.PromptTokens, res.Usage.CompletionTokens); ok {
			fmt.Fprintf(w, "Tokens: %d prompt + %d completion (~$%.4f)\n", res.Usage.PromptTokens, res.Usage.CompletionTokens, cost)
		} else {
			fmt.Fprintf(w, "Tokens: %d prompt + %d completion\n", res.Usage.PromptTokens, res.Usage.CompletionTokens)
		}
	}
}

// writeCharts saves each chart as chart-<n>.png under dir.
func writeCharts(w io.Writer, dir string, charts []viz.Chart) error {
	if len(charts) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	var errs []error
	for i, c := range charts {
		path := filepath.Join(dir, fmt.Sprintf("chart-%d.png", i+1))
		if err := utils.SafeWriteFile(path, c.PNG); err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(w, "✓ Saved %s\n", path)
	}
	return errors.Join(errs...)
}
