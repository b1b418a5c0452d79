package cmd

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/vizqa/internal/clean"
	"github.com/KaramelBytes/vizqa/internal/loader"
	"github.com/KaramelBytes/vizqa/internal/table"
	"github.com/KaramelBytes/vizqa/internal/utils"
)

var (
	cleanLoad   loadFlags
	cleanOutput string
)

var cleanCmd = &cobra.Command{
	Use:   "clean <file>",
	Short: "Deduplicate rows, impute missing values and normalize column names",
	Args:  cobra.ExactArgs(1),
	Example: `  vizqa clean survey.csv
  vizqa clean survey.xlsx -o survey_clean.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opt, err := cleanLoad.options()
		if err != nil {
			return err
		}
		t, err := loader.LoadFile(args[0], opt)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		cleaned := cleanAndReport(out, t)
		rows, cols := cleaned.Shape()
		if cleanOutput == "" {
			fmt.Fprintf(out, "Shape: %d rows × %d columns\n", rows, cols)
			return nil
		}
		data, err := encodeCSV(cleaned)
		if err != nil {
			return err
		}
		if err := utils.SafeWriteFile(cleanOutput, data); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Wrote %d rows × %d columns to %s\n", rows, cols, cleanOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanLoad.register(cleanCmd)
	cleanCmd.Flags().StringVarP(&cleanOutput, "output", "o", "", "write the cleaned dataset as CSV to this path")
}

// cleanAndReport cleans t and prints the cleaning notices.
func cleanAndReport(w io.Writer, t *table.Table) *table.Table {
	cleaned, rep := clean.Clean(t)
	for _, n := range rep.Notices() {
		fmt.Fprintln(w, n)
	}
	log.Debug("dataset cleaned",
		zap.Int("duplicates_removed", rep.DuplicatesRemoved),
		zap.Int("columns_filled", len(rep.Filled)),
		zap.Int("columns_renamed", len(rep.Renamed)),
	)
	return cleaned
}

func encodeCSV(t *table.Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(t.Records()); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}
