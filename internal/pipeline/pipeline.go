package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lehigh-university-libraries/square-images/internal/catalog"
	"github.com/lehigh-university-libraries/square-images/internal/images"
	"github.com/lehigh-university-libraries/square-images/internal/storage"
)

// Source runs the two catalog queries a run needs
type Source interface {
	SearchItems(ctx context.Context, productTypes ...string) ([]catalog.Item, error)
	SearchImages(ctx context.Context) ([]catalog.Image, error)
}

// SourceFactory builds a Source authenticated with token
type SourceFactory func(token string) Source

// Fetcher retrieves the raw bytes behind an image URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Transcoder converts raw image bytes to the output format
type Transcoder interface {
	Transcode(data []byte) ([]byte, error)
}

// Config holds the knobs of a pipeline
type Config struct {
	ProductTypes []string
	// Concurrency bounds parallel fetches among one item's images. At 1 each image is
	// fetched, converted and written before the next is requested.
	Concurrency int
}

// Pipeline downloads every image of the selected catalog items into an output directory
type Pipeline struct {
	newSource  SourceFactory
	fetcher    Fetcher
	transcoder Transcoder
	output     *storage.OutputDir
	config     Config
}

// New creates a pipeline. Runs share no state besides the output directory.
func New(newSource SourceFactory, fetcher Fetcher, transcoder Transcoder, output *storage.OutputDir, config Config) *Pipeline {
	if len(config.ProductTypes) == 0 {
		config.ProductTypes = []string{catalog.DefaultProductType}
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	return &Pipeline{
		newSource:  newSource,
		fetcher:    fetcher,
		transcoder: transcoder,
		output:     output,
		config:     config,
	}
}

// Start launches a run on its own goroutine. The returned channel carries every log and
// progress event in order, then one EventDone, and is closed afterwards.
func (p *Pipeline) Start(ctx context.Context, token string) <-chan Event {
	events := make(chan Event, 64)

	go func() {
		defer close(events)
		summary, err := p.Run(ctx, token, NewChannelSink(ctx, events))
		select {
		case events <- Event{Kind: EventDone, Summary: summary, Err: err}:
		case <-ctx.Done():
		}
	}()

	return events
}

// Run executes one run on the calling goroutine. The returned error is non-nil only when
// the run aborted (missing token or failed catalog query); image failures are outcomes.
func (p *Pipeline) Run(ctx context.Context, token string, sink ProgressSink) (*RunSummary, error) {
	if sink == nil {
		sink = MultiSink()
	}
	r := &run{
		Pipeline: p,
		sink:     sink,
		summary: &RunSummary{
			State:     StateRunning,
			OutputDir: p.output.Path,
			StartedAt: time.Now(),
		},
	}

	if strings.TrimSpace(token) == "" {
		r.log(SeverityError, "Error: access token not provided")
		return r.abort(ErrMissingCredential)
	}

	source := p.newSource(token)

	r.log(SeverityInfo, "Searching catalog items...", "product_types", p.config.ProductTypes)
	items, err := source.SearchItems(ctx, p.config.ProductTypes...)
	if err != nil {
		r.log(SeverityError, fmt.Sprintf("Error fetching items: %v", err))
		return r.abort(err)
	}

	r.log(SeverityInfo, "Searching all catalog images...")
	catalogImages, err := source.SearchImages(ctx)
	if err != nil {
		r.log(SeverityError, fmt.Sprintf("Error fetching images: %v", err))
		return r.abort(err)
	}

	index := catalog.NewIndex(catalogImages)
	total := len(items)
	r.summary.ItemsTotal = total
	r.log(SeverityInfo, fmt.Sprintf("Found %d items to process", total), "images_indexed", len(index))

	batch := p.output.Begin()
	for i, item := range items {
		r.processItem(ctx, item, index, batch)
		sink.OnProgress(i+1, total)
	}

	r.finish()
	return r.summary, nil
}

// run is the state of one invocation
type run struct {
	*Pipeline
	sink    ProgressSink
	summary *RunSummary
}

// prepared is an image that has been fetched and converted but not yet written
type prepared struct {
	url  string
	data []byte
	err  error
}

func (r *run) processItem(ctx context.Context, item catalog.Item, index catalog.Index, batch *storage.Batch) {
	if len(item.ImageIDs) == 0 {
		r.log(SeverityWarning, fmt.Sprintf("Item '%s' has no associated images", item.Name), "item_id", item.ID)
		return
	}

	if r.config.Concurrency == 1 {
		for _, imageID := range item.ImageIDs {
			r.commit(item, imageID, r.prepareOne(ctx, item, imageID, index), batch)
		}
		return
	}

	results := r.prepare(ctx, item, index)
	for i, imageID := range item.ImageIDs {
		r.commit(item, imageID, results[i], batch)
	}
}

// commit writes one prepared image and records its outcome
func (r *run) commit(item catalog.Item, imageID string, res prepared, batch *storage.Batch) {
	outcome := Outcome{
		ItemID:   item.ID,
		ItemName: item.Name,
		ImageID:  imageID,
		URL:      res.url,
	}

	if res.err == nil {
		path, err := batch.Write(stemFor(item, imageID), res.data)
		outcome.Path = path
		res.err = err
	}

	if res.err != nil {
		outcome.Kind = classify(res.err)
		outcome.Err = res.err
	} else {
		outcome.Kind = Saved
	}
	r.summary.record(outcome)
	r.report(outcome)
}

// prepareOne looks up, fetches and transcodes a single image
func (r *run) prepareOne(ctx context.Context, item catalog.Item, imageID string, index catalog.Index) prepared {
	url, ok := index.Lookup(imageID)
	if !ok {
		return prepared{err: ErrImageNotIndexed}
	}

	slog.Debug("Downloading image", "item", item.Name, "image_id", imageID, "url", url)
	res := prepared{url: url}
	data, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		res.err = err
		return res
	}
	res.data, res.err = r.transcoder.Transcode(data)
	return res
}

// prepare fetches and transcodes an item's images, at most Concurrency at a time.
// Results come back in ImageIDs order.
func (r *run) prepare(ctx context.Context, item catalog.Item, index catalog.Index) []prepared {
	results := make([]prepared, len(item.ImageIDs))

	var g errgroup.Group
	g.SetLimit(r.config.Concurrency)

	for i, imageID := range item.ImageIDs {
		g.Go(func() error {
			results[i] = r.prepareOne(ctx, item, imageID, index)
			return nil
		})
	}

	// workers never return errors; failures stay attached to their image
	_ = g.Wait()
	return results
}

func (r *run) report(o Outcome) {
	switch o.Kind {
	case Saved:
		r.log(SeveritySuccess, fmt.Sprintf("Image saved as: %s", filepath.Base(o.Path)),
			"item", o.ItemName, "image_id", o.ImageID, "path", o.Path)
	case SkippedNoURL:
		r.log(SeverityWarning, fmt.Sprintf("Image ID %s not found for '%s'", o.ImageID, o.ItemName),
			"item_id", o.ItemID)
	case FetchFailed:
		r.log(SeverityError, fmt.Sprintf("Error downloading image for '%s' (%s): %v", o.ItemName, o.URL, o.Err),
			"image_id", o.ImageID)
	case DecodeFailed:
		r.log(SeverityError, fmt.Sprintf("Error processing image for '%s' (%s): %v", o.ItemName, o.ImageID, o.Err),
			"url", o.URL)
	case WriteFailed:
		r.log(SeverityError, fmt.Sprintf("Error saving image for '%s' (%s): %v", o.ItemName, o.ImageID, o.Err),
			"url", o.URL)
	}
}

func (r *run) finish() {
	names, err := r.output.List()
	if err != nil {
		r.log(SeverityWarning, fmt.Sprintf("Could not list output directory: %v", err))
	}
	r.summary.FilesInOutput = len(names)

	r.log(SeverityInfo, "Files created in:")
	r.log(SeverityInfo, r.output.Path)
	for _, name := range names {
		r.log(SeverityInfo, "- "+name)
	}
	r.log(SeverityInfo, fmt.Sprintf("Total files created: %d", len(names)),
		"items", r.summary.ItemsTotal, "written", r.summary.ImagesWritten)

	r.summary.State = StateCompleted
	r.summary.FinishedAt = time.Now()
}

func (r *run) abort(err error) (*RunSummary, error) {
	r.summary.State = StateAborted
	r.summary.Err = err
	r.summary.FinishedAt = time.Now()
	return r.summary, err
}

// log sends a line to the sink and keeps a debug copy with extra attributes
func (r *run) log(severity Severity, message string, args ...any) {
	r.sink.OnLog(message, severity)
	slog.Debug(message, append([]any{"severity", severity.String()}, args...)...)
}

// stemFor picks the file stem for an item, falling back to its ids when the name sanitizes to nothing
func stemFor(item catalog.Item, imageID string) string {
	if stem := images.SanitizeFilename(item.Name); stem != "" {
		return stem
	}
	if stem := images.SanitizeFilename(item.ID); stem != "" {
		return stem
	}
	return "image_" + images.SanitizeFilename(imageID)
}
