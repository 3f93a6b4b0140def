package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lehigh-university-libraries/square-images/internal/models"
	"github.com/lehigh-university-libraries/square-images/internal/pipeline"
	"github.com/lehigh-university-libraries/square-images/internal/storage"
)

type startRunRequest struct {
	Token string `json:"token"`
}

func (h *Handler) HandleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		h.writeJSON(w, http.StatusOK, h.runStore.GetAll())
	case "POST":
		var req startRunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		token := req.Token
		if token == "" {
			token = h.defaultToken
		}
		run := h.startRun(token)
		h.writeJSON(w, http.StatusAccepted, run)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) HandleRunDetail(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")

	run, ok := h.getRunOrError(w, runID)
	if !ok {
		return
	}

	switch r.Method {
	case "GET":
		h.writeJSON(w, http.StatusOK, run)
	case "DELETE":
		if run.State == string(pipeline.StateRunning) {
			h.writeError(w, "Run is still in progress", http.StatusConflict)
			return
		}
		h.runStore.Delete(runID)
		w.WriteHeader(http.StatusNoContent)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// startRun registers a run record and feeds the run's events into it from a background goroutine.
// The run outlives the request that started it.
func (h *Handler) startRun(token string) *models.Run {
	run := &models.Run{
		ID:        uuid.NewString(),
		State:     string(pipeline.StateRunning),
		Logs:      []models.LogEntry{},
		StartedAt: time.Now(),
	}
	h.runStore.Set(run.ID, run)
	snapshot, _ := h.runStore.Get(run.ID)

	events := h.starter.Start(context.Background(), token)
	go h.follow(run.ID, events)

	slog.Info("Run started", "run_id", run.ID)
	return snapshot
}

func (h *Handler) follow(runID string, events <-chan pipeline.Event) {
	summary, err := pipeline.Drain(events, pipeline.MultiSink(
		&storeSink{store: h.runStore, runID: runID},
		pipeline.LogSink{Logger: slog.With("run_id", runID)},
	))

	state := string(pipeline.StateAborted)
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	var result *models.Summary
	if summary != nil {
		state = string(summary.State)
		result = &models.Summary{
			OutputDir:     summary.OutputDir,
			ItemsTotal:    summary.ItemsTotal,
			ImagesWritten: summary.ImagesWritten,
			ImagesFailed:  summary.Count(pipeline.FetchFailed) + summary.Count(pipeline.DecodeFailed) + summary.Count(pipeline.WriteFailed),
			ImagesSkipped: summary.Count(pipeline.SkippedNoURL),
			FilesInOutput: summary.FilesInOutput,
		}
	}

	h.runStore.Finish(runID, state, errMsg, result)
	slog.Info("Run finished", "run_id", runID, "state", state)
}

// storeSink writes pipeline events into a run record
type storeSink struct {
	store *storage.RunStore
	runID string
}

func (s *storeSink) OnLog(message string, severity pipeline.Severity) {
	s.store.AppendLog(s.runID, models.LogEntry{
		Time:     time.Now(),
		Severity: severity.String(),
		Message:  message,
	})
}

func (s *storeSink) OnProgress(completed, total int) {
	s.store.SetProgress(s.runID, completed, total)
}
