package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/square-images/internal/models"
	"github.com/lehigh-university-libraries/square-images/internal/pipeline"
)

// fakeStarter replays a fixed event script and records the token it was given
type fakeStarter struct {
	tokens chan string
}

func (f *fakeStarter) Start(ctx context.Context, token string) <-chan pipeline.Event {
	f.tokens <- token
	events := make(chan pipeline.Event, 8)
	go func() {
		defer close(events)
		if token == "" {
			events <- pipeline.Event{Kind: pipeline.EventLog, Message: "Error: access token not provided", Severity: pipeline.SeverityError}
			events <- pipeline.Event{Kind: pipeline.EventDone, Summary: &pipeline.RunSummary{State: pipeline.StateAborted}, Err: pipeline.ErrMissingCredential}
			return
		}
		events <- pipeline.Event{Kind: pipeline.EventLog, Message: "Image saved as: Iced_Tea.webp", Severity: pipeline.SeveritySuccess}
		events <- pipeline.Event{Kind: pipeline.EventProgress, Completed: 1, Total: 1}
		events <- pipeline.Event{Kind: pipeline.EventDone, Summary: &pipeline.RunSummary{
			State:         pipeline.StateCompleted,
			ItemsTotal:    1,
			ImagesWritten: 1,
			FilesInOutput: 1,
			Outcomes:      []pipeline.Outcome{{Kind: pipeline.Saved}},
		}}
	}()
	return events
}

func newTestServer(t *testing.T, defaultToken string) (*httptest.Server, *fakeStarter) {
	t.Helper()
	starter := &fakeStarter{tokens: make(chan string, 4)}
	h := New(starter, defaultToken)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/runs", h.HandleRuns)
	mux.HandleFunc("/api/runs/", h.HandleRunDetail)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, starter
}

func waitForRun(t *testing.T, baseURL, id string) models.Run {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(baseURL + "/api/runs/" + id)
		if err != nil {
			t.Fatalf("GET run failed: %v", err)
		}
		var run models.Run
		err = json.NewDecoder(resp.Body).Decode(&run)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("failed to decode run: %v", err)
		}
		if run.State != string(pipeline.StateRunning) {
			return run
		}
		if time.Now().After(deadline) {
			t.Fatalf("run %s did not finish", id)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStartRunAndFollow(t *testing.T) {
	server, starter := newTestServer(t, "env-token")

	resp, err := http.Post(server.URL+"/api/runs", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", resp.StatusCode)
	}
	var started models.Run
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
		t.Fatalf("failed to decode run: %v", err)
	}

	if got := <-starter.tokens; got != "env-token" {
		t.Errorf("Expected default token, got %q", got)
	}

	run := waitForRun(t, server.URL, started.ID)
	if run.State != "completed" {
		t.Errorf("Expected completed, got %s", run.State)
	}
	if run.Completed != 1 || run.Total != 1 || run.Progress() != 1 {
		t.Errorf("unexpected progress %d/%d", run.Completed, run.Total)
	}
	if len(run.Logs) != 1 || run.Logs[0].Severity != "success" {
		t.Errorf("unexpected logs %+v", run.Logs)
	}
	if run.Summary == nil || run.Summary.ImagesWritten != 1 || run.FinishedAt == nil {
		t.Errorf("unexpected summary %+v", run.Summary)
	}
}

func TestStartRunWithoutToken(t *testing.T) {
	server, starter := newTestServer(t, "")

	resp, err := http.Post(server.URL+"/api/runs", "application/json", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	var started models.Run
	_ = json.NewDecoder(resp.Body).Decode(&started)
	resp.Body.Close()
	<-starter.tokens

	run := waitForRun(t, server.URL, started.ID)
	if run.State != "aborted" || !strings.Contains(run.Error, "access token") {
		t.Errorf("Expected aborted run with token error, got %+v", run)
	}
}

func TestRunDetailNotFound(t *testing.T) {
	server, _ := newTestServer(t, "")

	resp, err := http.Get(server.URL + "/api/runs/nope")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestListRuns(t *testing.T) {
	server, starter := newTestServer(t, "tok")

	for i := 0; i < 2; i++ {
		resp, err := http.Post(server.URL+"/api/runs", "application/json", strings.NewReader(`{"token":"abc"}`))
		if err != nil {
			t.Fatalf("POST failed: %v", err)
		}
		resp.Body.Close()
		if got := <-starter.tokens; got != "abc" {
			t.Errorf("Expected request token, got %q", got)
		}
	}

	resp, err := http.Get(server.URL + "/api/runs")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	var runs []models.Run
	if err := json.NewDecoder(resp.Body).Decode(&runs); err != nil {
		t.Fatalf("failed to decode runs: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("Expected 2 runs, got %d", len(runs))
	}
}

func TestDeleteRun(t *testing.T) {
	server, starter := newTestServer(t, "tok")

	resp, err := http.Post(server.URL+"/api/runs", "application/json", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	var started models.Run
	_ = json.NewDecoder(resp.Body).Decode(&started)
	resp.Body.Close()
	<-starter.tokens
	waitForRun(t, server.URL, started.ID)

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/api/runs/"+started.ID, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", resp.StatusCode)
	}

	resp, err = http.Get(server.URL + "/api/runs/" + started.ID)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", resp.StatusCode)
	}
}
