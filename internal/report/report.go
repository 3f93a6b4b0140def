package report

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/square-images/internal/pipeline"
)

// RunReport represents the run section of the YAML report
type RunReport struct {
	State         string `yaml:"state"`
	Error         string `yaml:"error,omitempty"`
	OutputDir     string `yaml:"outputdir"`
	ItemsTotal    int    `yaml:"itemstotal"`
	ImagesWritten int    `yaml:"imageswritten"`
	FilesInOutput int    `yaml:"filesinoutput"`
	StartedAt     string `yaml:"startedat"`
	FinishedAt    string `yaml:"finishedat"`
	Duration      string `yaml:"duration"`
}

// OutcomeRow is one image outcome, shared by the YAML and Parquet writers
type OutcomeRow struct {
	ItemID   string `yaml:"itemid" parquet:"item_id"`
	ItemName string `yaml:"itemname" parquet:"item_name"`
	ImageID  string `yaml:"imageid" parquet:"image_id"`
	URL      string `yaml:"url,omitempty" parquet:"url"`
	Outcome  string `yaml:"outcome" parquet:"outcome"`
	Path     string `yaml:"path,omitempty" parquet:"path"`
	Error    string `yaml:"error,omitempty" parquet:"error"`
}

// Document is the complete YAML report
type Document struct {
	Run      RunReport      `yaml:"run"`
	Counts   map[string]int `yaml:"counts"`
	Outcomes []OutcomeRow   `yaml:"outcomes"`
}

// Save writes the summary to path, choosing YAML or Parquet from the extension
func Save(path string, summary *pipeline.RunSummary) error {
	if summary == nil {
		return fmt.Errorf("no run summary to save")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = saveYAML(path, summary)
	case ".parquet":
		err = saveParquet(path, summary)
	default:
		return fmt.Errorf("unsupported report format: %s (supported: .yaml, .yml, .parquet)", ext)
	}
	if err != nil {
		return err
	}

	slog.Info("Run report saved", "path", path, "outcomes", len(summary.Outcomes))
	return nil
}

// Rows flattens the summary outcomes
func Rows(summary *pipeline.RunSummary) []OutcomeRow {
	rows := make([]OutcomeRow, 0, len(summary.Outcomes))
	for _, o := range summary.Outcomes {
		row := OutcomeRow{
			ItemID:   o.ItemID,
			ItemName: o.ItemName,
			ImageID:  o.ImageID,
			URL:      o.URL,
			Outcome:  o.Kind.String(),
			Path:     o.Path,
		}
		if o.Err != nil {
			row.Error = o.Err.Error()
		}
		rows = append(rows, row)
	}
	return rows
}

func saveYAML(path string, summary *pipeline.RunSummary) error {
	doc := Document{
		Run: RunReport{
			State:         string(summary.State),
			OutputDir:     summary.OutputDir,
			ItemsTotal:    summary.ItemsTotal,
			ImagesWritten: summary.ImagesWritten,
			FilesInOutput: summary.FilesInOutput,
			StartedAt:     summary.StartedAt.Format(time.RFC3339),
			FinishedAt:    summary.FinishedAt.Format(time.RFC3339),
			Duration:      summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond).String(),
		},
		Counts:   make(map[string]int),
		Outcomes: Rows(summary),
	}
	if summary.Err != nil {
		doc.Run.Error = summary.Err.Error()
	}
	for _, kind := range []pipeline.OutcomeKind{pipeline.Saved, pipeline.SkippedNoURL, pipeline.FetchFailed, pipeline.DecodeFailed, pipeline.WriteFailed} {
		doc.Counts[kind.String()] = summary.Count(kind)
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	return nil
}

func saveParquet(path string, summary *pipeline.RunSummary) error {
	if err := parquet.WriteFile(path, Rows(summary)); err != nil {
		return fmt.Errorf("failed to write parquet file: %w", err)
	}
	return nil
}
