package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/vizqa/internal/insight"
)

var (
	insModel     string
	insMaxTokens int
	insMaxDim    int
)

var insightsCmd = &cobra.Command{
	Use:   "insights <image>",
	Short: "Describe trends and takeaways in a saved chart image (PNG or JPEG)",
	Args:  cobra.ExactArgs(1),
	Example: `  vizqa insights chart-1.png
  vizqa insights screenshot.jpg --model openai/gpt-4o`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		img, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		if len(img) == 0 {
			return insight.ErrEmptyImage
		}
		model := selectModel(c, insModel)
		rt, err := newRuntime(c, c.ResolveAPIKey(), nil)
		if err != nil {
			return explainAIError(err, c.DefaultProvider, model)
		}
		maxDim := c.InsightMaxImageDim
		if insMaxDim > 0 {
			maxDim = insMaxDim
		}
		svc := insight.New(rt, insight.Options{Model: model, MaxTokens: insMaxTokens, MaxImageDim: maxDim}, log)

		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout(c))
		defer cancel()
		text, err := svc.Analyze(ctx, img)
		if err != nil {
			return explainAIError(err, c.DefaultProvider, model)
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(insightsCmd)
	insightsCmd.Flags().StringVarP(&insModel, "model", "m", "", "vision model to use (overrides config)")
	insightsCmd.Flags().IntVar(&insMaxTokens, "max-tokens", 0, "max completion tokens (default 4000)")
	insightsCmd.Flags().IntVar(&insMaxDim, "max-dim", 0, "downscale images whose longest side exceeds this many pixels (overrides config)")
}
