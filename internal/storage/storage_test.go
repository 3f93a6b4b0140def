package storage

import (
	"testing"
	"time"

	"github.com/lehigh-university-libraries/square-images/internal/models"
)

func TestRunStore(t *testing.T) {
	store := New()
	store.Set("r1", &models.Run{ID: "r1", State: "running", StartedAt: time.Now()})

	store.AppendLog("r1", models.LogEntry{Severity: "info", Message: "hello"})
	store.SetProgress("r1", 1, 4)

	run, ok := store.Get("r1")
	if !ok {
		t.Fatal("Expected run to exist")
	}
	if len(run.Logs) != 1 || run.Completed != 1 || run.Total != 4 {
		t.Errorf("unexpected run %+v", run)
	}

	// mutating the copy must not leak into the store
	run.Logs = append(run.Logs, models.LogEntry{Message: "local"})
	again, _ := store.Get("r1")
	if len(again.Logs) != 1 {
		t.Errorf("Expected store to be isolated from copies, got %d logs", len(again.Logs))
	}

	store.Finish("r1", "completed", "", &models.Summary{ImagesWritten: 2})
	done, _ := store.Get("r1")
	if done.State != "completed" || done.FinishedAt == nil || done.Summary.ImagesWritten != 2 {
		t.Errorf("unexpected finished run %+v", done)
	}

	store.Delete("r1")
	if _, ok := store.Get("r1"); ok {
		t.Error("Expected run to be deleted")
	}
}

func TestRunStoreGetAllOrdered(t *testing.T) {
	store := New()
	base := time.Now()
	store.Set("b", &models.Run{ID: "b", StartedAt: base.Add(time.Second)})
	store.Set("a", &models.Run{ID: "a", StartedAt: base})

	runs := store.GetAll()
	if len(runs) != 2 || runs[0].ID != "a" || runs[1].ID != "b" {
		t.Errorf("Expected runs ordered by start time, got %v", runs)
	}
}
