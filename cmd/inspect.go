package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/square-images/internal/report"
)

func newInspectCmd() *cobra.Command {
	var (
		reportPath string
		limit      int
		outcome    string
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect the image outcomes stored in a run report",
		Long: `Prints the per-image outcomes from a report written by download --report.
Both YAML and Parquet reports are supported.`,
		Example: `  # Show the failures from the last run
  square-images inspect --report run.parquet --outcome fetch_failed

  # Show every outcome
  square-images inspect --report run.yaml --limit 0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := report.Load(reportPath)
			if err != nil {
				return fmt.Errorf("failed to load report: %w", err)
			}
			printRows(cmd.OutOrStdout(), filterRows(rows, outcome, limit))
			return nil
		},
	}

	cmd.Flags().StringVar(&reportPath, "report", "", "Path to a .yaml, .yml or .parquet report (required)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of outcomes to show (0 for all)")
	cmd.Flags().StringVar(&outcome, "outcome", "", "Only show outcomes of this kind (saved, skipped_no_url, fetch_failed, decode_failed, write_failed)")
	_ = cmd.MarkFlagRequired("report")

	return cmd
}

func filterRows(rows []report.OutcomeRow, outcome string, limit int) []report.OutcomeRow {
	var out []report.OutcomeRow
	for _, row := range rows {
		if outcome != "" && row.Outcome != outcome {
			continue
		}
		out = append(out, row)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func printRows(w io.Writer, rows []report.OutcomeRow) {
	for i, row := range rows {
		fmt.Fprintf(w, "OUTCOME %d/%d\n", i+1, len(rows))
		fmt.Fprintln(w, strings.Repeat("-", 60))
		fmt.Fprintf(w, "Item:     %s (%s)\n", row.ItemName, row.ItemID)
		fmt.Fprintf(w, "Image:    %s\n", row.ImageID)
		fmt.Fprintf(w, "Outcome:  %s\n", row.Outcome)
		if row.URL != "" {
			fmt.Fprintf(w, "URL:      %s\n", row.URL)
		}
		if row.Path != "" {
			fmt.Fprintf(w, "Path:     %s\n", row.Path)
		}
		if row.Error != "" {
			fmt.Fprintf(w, "Error:    %s\n", row.Error)
		}
		fmt.Fprintln(w)
	}
}
