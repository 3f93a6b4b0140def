package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/square-images/internal/models"
)

// RunStore keeps run records in memory for the HTTP interface
type RunStore struct {
	runs map[string]*models.Run
	mu   sync.RWMutex
}

func New() *RunStore {
	return &RunStore{
		runs: make(map[string]*models.Run),
	}
}

// Get returns a copy of the run so callers never share the log slice with the writer
func (s *RunStore) Get(runID string) (*models.Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, exists := s.runs[runID]
	if !exists {
		return nil, false
	}
	return cloneRun(run), true
}

func (s *RunStore) Set(runID string, run *models.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[runID] = run
}

// GetAll returns every run, oldest first
func (s *RunStore) GetAll() []*models.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Run, 0, len(s.runs))
	for _, v := range s.runs {
		result = append(result, cloneRun(v))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	return result
}

// Delete forgets a run record. Files it wrote stay on disk.
func (s *RunStore) Delete(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, runID)
}

// AppendLog adds a log line to a run
func (s *RunStore) AppendLog(runID string, entry models.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[runID]; ok {
		run.Logs = append(run.Logs, entry)
	}
}

// SetProgress records the completed/total counters of a run
func (s *RunStore) SetProgress(runID string, completed, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[runID]; ok {
		run.Completed = completed
		run.Total = total
	}
}

// Finish moves a run into its terminal state
func (s *RunStore) Finish(runID, state, errMsg string, summary *models.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return
	}
	now := time.Now()
	run.State = state
	run.Error = errMsg
	run.Summary = summary
	run.FinishedAt = &now
}

func cloneRun(run *models.Run) *models.Run {
	c := *run
	c.Logs = append([]models.LogEntry(nil), run.Logs...)
	if run.Summary != nil {
		summary := *run.Summary
		c.Summary = &summary
	}
	return &c
}
