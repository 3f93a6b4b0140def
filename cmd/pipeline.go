package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/square-images/internal/catalog"
	"github.com/lehigh-university-libraries/square-images/internal/images"
	"github.com/lehigh-university-libraries/square-images/internal/pipeline"
	"github.com/lehigh-university-libraries/square-images/internal/storage"
)

// pipelineFlags are the settings shared by every command that runs the pipeline
type pipelineFlags struct {
	token        string
	baseURL      string
	outputDir    string
	productTypes []string
	format       string
	concurrency  int
	overwrite    bool
}

func (f *pipelineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.token, "token", "", "Square access token (defaults to SQUARE_ACCESS_TOKEN)")
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "Square API base URL (defaults from SQUARE_ENVIRONMENT)")
	cmd.Flags().StringVar(&f.outputDir, "output", "", "Output directory (defaults to product_images next to the .env file)")
	cmd.Flags().StringSliceVar(&f.productTypes, "product-type", []string{catalog.DefaultProductType}, "Catalog product types to include")
	cmd.Flags().StringVar(&f.format, "format", "webp", "Output format (webp, jpeg, png)")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 1, "Parallel image downloads per item")
	cmd.Flags().BoolVar(&f.overwrite, "overwrite", false, "Overwrite files whose names collide instead of adding a numeric suffix")
}

// resolveToken prefers the flag, then the environment
func (f *pipelineFlags) resolveToken() string {
	if f.token != "" {
		return f.token
	}
	return os.Getenv("SQUARE_ACCESS_TOKEN")
}

// build wires the catalog client, fetcher, transcoder and output directory into a pipeline
func (f *pipelineFlags) build(opts *rootOptions) (*pipeline.Pipeline, *storage.OutputDir, error) {
	format, err := images.ParseFormat(f.format)
	if err != nil {
		return nil, nil, err
	}
	if f.concurrency < 1 {
		return nil, nil, fmt.Errorf("--concurrency must be at least 1")
	}

	outputDir := f.outputDir
	if outputDir == "" {
		outputDir = defaultOutputDir(opts.envFile)
	}
	transcoder := images.NewTranscoder(format)
	out, err := storage.NewOutputDir(outputDir, transcoder.Extension(), f.overwrite)
	if err != nil {
		return nil, nil, err
	}

	baseURL := f.baseURL
	if baseURL == "" {
		baseURL = catalog.BaseURLForEnvironment(os.Getenv("SQUARE_ENVIRONMENT"))
	}
	newSource := func(token string) pipeline.Source {
		return catalog.NewClient(baseURL, token)
	}

	p := pipeline.New(newSource, images.NewFetcher(), transcoder, out, pipeline.Config{
		ProductTypes: f.productTypes,
		Concurrency:  f.concurrency,
	})
	return p, out, nil
}

// defaultOutputDir places product_images beside the credential file
func defaultOutputDir(envFile string) string {
	dir := filepath.Dir(envFile)
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return filepath.Join(dir, "product_images")
}
