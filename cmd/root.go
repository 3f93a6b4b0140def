package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	envFile string
	verbose bool
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "square-images",
		Short: "Download Square catalog item images as WebP files",
		Long: `square-images pulls the items of a Square catalog, matches them with the
catalog's image objects, and saves every item image under a filename derived
from the item name.

The access token is read from SQUARE_ACCESS_TOKEN (a .env file is loaded if
present) or passed with --token.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load(opts.envFile)

			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Path to the .env file holding SQUARE_ACCESS_TOKEN")
	cmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Verbose logging")

	// Add subcommands
	cmd.AddCommand(newDownloadCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newInspectCmd())

	return cmd
}
