package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/square-images/internal/pipeline"
	"github.com/lehigh-university-libraries/square-images/internal/report"
)

func newDownloadCmd(opts *rootOptions) *cobra.Command {
	flags := &pipelineFlags{}
	var reportPath string

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download every catalog item image into the output directory",
		Long: `Searches the Square catalog for items of the selected product types, looks up
each item's images among the catalog IMAGE objects, downloads them, converts
them to the output format at quality 85 and saves them as <item name>.<ext>.

Failures on individual images are reported and skipped; only a missing token or
a failed catalog query stops the run.`,
		Example: `  # Download food and beverage images using SQUARE_ACCESS_TOKEN from .env
  square-images download

  # Use the sandbox, fetch up to 4 images per item in parallel, keep a report
  SQUARE_ENVIRONMENT=sandbox square-images download --concurrency 4 --report run.yaml

  # Save JPEG files into a custom directory
  square-images download --format jpeg --output ./menu_photos`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := flags.build(opts)
			if err != nil {
				return err
			}

			sink := newTerminalSink(cmd.ErrOrStderr())
			summary, runErr := pipeline.Drain(p.Start(cmd.Context(), flags.resolveToken()), sink)
			sink.Close()

			if reportPath != "" && summary != nil {
				if err := report.Save(reportPath, summary); err != nil {
					slog.Error("Failed to save run report", "path", reportPath, "error", err)
				}
			}

			if summary != nil {
				printSummary(cmd.OutOrStdout(), summary)
			}
			return runError(cmd.Context(), summary, runErr)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&reportPath, "report", "", "Write a run report (.yaml, .yml or .parquet)")

	return cmd
}

// runError is the command's exit error. A run whose final event never arrived was interrupted.
func runError(ctx context.Context, summary *pipeline.RunSummary, runErr error) error {
	if runErr != nil {
		return runErr
	}
	if summary == nil {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("download interrupted: %w", err)
		}
		return fmt.Errorf("download ended without a result")
	}
	return nil
}

func printSummary(w io.Writer, summary *pipeline.RunSummary) {
	fmt.Fprintln(w, "\n========================================")
	fmt.Fprintln(w, "Download Summary")
	fmt.Fprintln(w, "========================================")
	fmt.Fprintf(w, "State:              %s\n", summary.State)
	fmt.Fprintf(w, "Items Processed:    %d\n", summary.ItemsTotal)
	fmt.Fprintf(w, "Images Saved:       %d\n", summary.ImagesWritten)
	fmt.Fprintf(w, "Skipped (no URL):   %d\n", summary.Count(pipeline.SkippedNoURL))
	fmt.Fprintf(w, "Fetch Failures:     %d\n", summary.Count(pipeline.FetchFailed))
	fmt.Fprintf(w, "Decode Failures:    %d\n", summary.Count(pipeline.DecodeFailed))
	fmt.Fprintf(w, "Write Failures:     %d\n", summary.Count(pipeline.WriteFailed))
	fmt.Fprintf(w, "Files in Output:    %d\n", summary.FilesInOutput)
	fmt.Fprintf(w, "Output Location:    %s\n", summary.OutputDir)
	fmt.Fprintln(w, "========================================")
}
