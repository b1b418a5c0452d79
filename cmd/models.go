package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/vizqa/internal/ai"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect or extend the model catalog",
	Example: `  vizqa models list
  vizqa models list --provider ollama --vision
  vizqa models sync --file ./models.json
  vizqa models fetch --url https://example.com/models.json`,
}

var (
	listProvider string
	listVision   bool
)

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known models with context size and pricing",
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := table.NewWriter()
		tw.SetOutputMirror(cmd.OutOrStdout())
		tw.SetStyle(table.StyleLight)
		tw.AppendHeader(table.Row{"Model", "Provider", "Context", "In $/1K", "Out $/1K", "Vision"})
		n := 0
		for _, mi := range ai.CatalogList(listProvider) {
			if listVision && !mi.Vision {
				continue
			}
			vision := ""
			if mi.Vision {
				vision = "yes"
			}
			tw.AppendRow(table.Row{mi.Name, mi.Provider, mi.ContextTokens, fmt.Sprintf("%.5f", mi.InputPerK), fmt.Sprintf("%.5f", mi.OutputPerK), vision})
			n++
		}
		if n == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "(0 models)")
			return nil
		}
		tw.Render()
		return nil
	},
}

var syncPath string

var modelsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Merge model catalog/pricing from a JSON file for this run",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncPath == "" {
			return fmt.Errorf("--file is required")
		}
		m, err := ai.LoadCatalogFromJSON(syncPath)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		ai.MergeCatalog(m)
		fmt.Fprintf(cmd.OutOrStdout(), "Merged %d models from %s\n", len(m), syncPath)
		return nil
	},
}

var fetchURL string

var modelsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch model catalog/pricing JSON from a URL and merge it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if fetchURL == "" {
			return fmt.Errorf("--url is required")
		}
		if err := fetchAndApplyCatalog(fetchURL); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Merged fetched catalog into in-memory catalog")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsSyncCmd)
	modelsCmd.AddCommand(modelsFetchCmd)

	modelsListCmd.Flags().StringVar(&listProvider, "provider", "", "only list models of this provider")
	modelsListCmd.Flags().BoolVar(&listVision, "vision", false, "only list models that accept images")
	modelsSyncCmd.Flags().StringVar(&syncPath, "file", "", "path to JSON catalog file")
	modelsFetchCmd.Flags().StringVar(&fetchURL, "url", "", "URL to JSON catalog file")
}
