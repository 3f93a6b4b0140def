package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/square-images/internal/models"
	"github.com/lehigh-university-libraries/square-images/internal/pipeline"
	"github.com/lehigh-university-libraries/square-images/internal/storage"
)

// Starter launches a pipeline run in the background
type Starter interface {
	Start(ctx context.Context, token string) <-chan pipeline.Event
}

type Handler struct {
	runStore     *storage.RunStore
	starter      Starter
	defaultToken string
}

func New(starter Starter, defaultToken string) *Handler {
	return &Handler{
		runStore:     storage.New(),
		starter:      starter,
		defaultToken: defaultToken,
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

// Run helpers
func (h *Handler) getRunOrError(w http.ResponseWriter, runID string) (*models.Run, bool) {
	run, exists := h.runStore.Get(runID)
	if !exists {
		h.writeError(w, "Run not found", http.StatusNotFound)
		return nil, false
	}
	return run, true
}
