package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/vizqa/internal/analysis"
	"github.com/KaramelBytes/vizqa/internal/loader"
)

var (
	descLoad  loadFlags
	descRows  int
	descCorr  bool
	descClean bool
)

var describeCmd = &cobra.Command{
	Use:   "describe <file>",
	Short: "Print the overview, column types and summary statistics of a dataset",
	Args:  cobra.ExactArgs(1),
	Example: `  vizqa describe sales.csv
  vizqa describe report.xlsx --sheet Q3 --corr
  vizqa describe eu.csv --delimiter ';' --decimal comma --clean`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opt, err := descLoad.options()
		if err != nil {
			return err
		}
		t, err := loader.LoadFile(args[0], opt)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if descClean {
			t = cleanAndReport(out, t)
		}
		fmt.Fprintln(out, analysis.Overview(t, descRows))
		fmt.Fprintln(out, "Column Names and Types:")
		fmt.Fprintln(out, analysis.DTypes(t))
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Dataset Description:")
		fmt.Fprintln(out, analysis.Describe(t).String())
		if descCorr {
			if md := analysis.CorrelationsMarkdown(analysis.Correlations(t, 10)); md != "" {
				fmt.Fprintln(out)
				fmt.Fprint(out, md)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
	descLoad.register(describeCmd)
	describeCmd.Flags().IntVar(&descRows, "rows", 5, "number of preview rows")
	describeCmd.Flags().BoolVar(&descCorr, "corr", false, "include pairwise correlations of numeric columns")
	describeCmd.Flags().BoolVar(&descClean, "clean", false, "clean the dataset before describing it")
}
