package pipeline

import (
	"errors"
	"time"

	"github.com/lehigh-university-libraries/square-images/internal/images"
	"github.com/lehigh-university-libraries/square-images/internal/storage"
)

var (
	ErrMissingCredential = errors.New("access token not provided")
	ErrImageNotIndexed   = errors.New("image id not found in catalog images")
)

// OutcomeKind is the terminal status of one image within one item
type OutcomeKind int

const (
	Saved OutcomeKind = iota
	SkippedNoURL
	FetchFailed
	DecodeFailed
	WriteFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case Saved:
		return "saved"
	case SkippedNoURL:
		return "skipped_no_url"
	case FetchFailed:
		return "fetch_failed"
	case DecodeFailed:
		return "decode_failed"
	case WriteFailed:
		return "write_failed"
	default:
		return "unknown"
	}
}

// Outcome records what happened to one image
type Outcome struct {
	ItemID   string
	ItemName string
	ImageID  string
	URL      string
	Kind     OutcomeKind
	Path     string
	Err      error
}

// classify maps an error from the fetch/transcode/write chain to its outcome kind
func classify(err error) OutcomeKind {
	switch {
	case errors.Is(err, ErrImageNotIndexed):
		return SkippedNoURL
	case errors.Is(err, images.ErrFetchFailed):
		return FetchFailed
	case errors.Is(err, images.ErrDecodeFailed):
		return DecodeFailed
	case errors.Is(err, storage.ErrWriteFailed):
		return WriteFailed
	default:
		// encoder failures after a good decode are reported with decode failures
		return DecodeFailed
	}
}

// State is where a run ended up
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
)

// RunSummary is owned by one run and finalized when it ends
type RunSummary struct {
	State         State
	OutputDir     string
	ItemsTotal    int
	ImagesWritten int
	FilesInOutput int
	Outcomes      []Outcome
	StartedAt     time.Time
	FinishedAt    time.Time
	Err           error
}

// Count returns how many outcomes have the given kind
func (s *RunSummary) Count(kind OutcomeKind) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Kind == kind {
			n++
		}
	}
	return n
}

func (s *RunSummary) record(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	if o.Kind == Saved {
		s.ImagesWritten++
	}
}
