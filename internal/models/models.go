package models

import "time"

// Run is one download run started through the HTTP interface
type Run struct {
	ID         string     `json:"id"`
	State      string     `json:"state"` // "running", "completed", "aborted"
	Error      string     `json:"error,omitempty"`
	Completed  int        `json:"completed"`
	Total      int        `json:"total"`
	Logs       []LogEntry `json:"logs"`
	Summary    *Summary   `json:"summary,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// LogEntry is one line of a run's activity log
type LogEntry struct {
	Time     time.Time `json:"time"`
	Severity string    `json:"severity"` // "info", "success", "warning", "error"
	Message  string    `json:"message"`
}

// Summary is the final tally of a run
type Summary struct {
	OutputDir     string `json:"output_dir"`
	ItemsTotal    int    `json:"items_total"`
	ImagesWritten int    `json:"images_written"`
	ImagesFailed  int    `json:"images_failed"`
	ImagesSkipped int    `json:"images_skipped"`
	FilesInOutput int    `json:"files_in_output"`
}

// Progress returns the completed fraction, 0 when nothing is known yet
func (r *Run) Progress() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Completed) / float64(r.Total)
}
