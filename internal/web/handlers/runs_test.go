package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-sorter/internal/config"
	"github.com/kozaktomas/face-sorter/internal/database"
	"github.com/kozaktomas/face-sorter/internal/database/mock"
	"github.com/kozaktomas/face-sorter/internal/facematch"
	"github.com/kozaktomas/face-sorter/internal/metrics"
	"github.com/kozaktomas/face-sorter/internal/sorter"
)

type fixedDetector struct {
	faces []facematch.Detection
}

func (d *fixedDetector) Detect(context.Context, image.Image) ([]facematch.Detection, error) {
	return d.faces, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	input := t.TempDir()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 16, 16))); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.png", "b.png"} {
		if err := os.WriteFile(filepath.Join(input, name), buf.Bytes(), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	return &config.Config{
		Paths: config.PathsConfig{InputDir: input, OutputDir: t.TempDir()},
		Matching: config.MatchingConfig{
			Thresholds:    facematch.DefaultThresholds(),
			UnknownFolder: "Unknown",
			Extensions:    []string{".png"},
		},
	}
}

func sorterFactory(t *testing.T) SorterFactory {
	t.Helper()
	return func(context.Context) (*sorter.Sorter, error) {
		store := facematch.NewReferenceStore(map[string][]facematch.Embedding{"Alice": {{1, 0}}})
		engine, err := facematch.NewEngine(store, nil, facematch.DefaultThresholds())
		if err != nil {
			return nil, err
		}
		det := &fixedDetector{faces: []facematch.Detection{{BBox: facematch.BBox{1, 1, 8, 8}, Score: 0.9, Embedding: facematch.Embedding{1, 0}}}}
		return sorter.New(engine, facematch.Detectors{LowRes: det, HighRes: det}), nil
	}
}

func waitForTerminal(t *testing.T, job *RunJob) RunView {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if isJobTerminal(job.GetStatus()) {
			return job.Snapshot()
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", job.ID)
	return RunView{}
}

func TestRunsHandler_StartAndStatus(t *testing.T) {
	cfg := testConfig(t)
	jm := NewJobManager()
	runs := mock.NewMockRunWriter()
	h := NewRunsHandler(cfg, jm, sorterFactory(t), runs, metrics.NewExporter())

	rec := httptest.NewRecorder()
	h.Start(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var started map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &started); err != nil {
		t.Fatal(err)
	}

	job := jm.GetJob(started["job_id"])
	if job == nil {
		t.Fatal("job was not registered")
	}
	view := waitForTerminal(t, job)
	if view.Status != JobStatusCompleted || view.Summary == nil || view.Summary.ClearMatches != 2 {
		t.Fatalf("unexpected final view %+v", view)
	}
	if view.ProcessedImages != 2 || view.TotalImages != 2 {
		t.Errorf("unexpected progress %d/%d", view.ProcessedImages, view.TotalImages)
	}

	saved, _ := runs.GetRun(context.Background(), job.ID)
	if saved == nil || saved.Summary.ClearMatches != 2 {
		t.Errorf("run was not persisted: %+v", saved)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.OutputDir, "Alice", "a.png")); err != nil {
		t.Errorf("expected sorted file: %v", err)
	}

	rec = httptest.NewRecorder()
	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+job.ID, nil), map[string]string{"jobId": job.ID})
	h.Status(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"completed"`) {
		t.Errorf("unexpected status response %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRunsHandler_StatusFromHistory(t *testing.T) {
	runs := mock.NewMockRunWriter()
	_ = runs.SaveRun(context.Background(), database.RunRecord{ID: "old-run", StartedAt: time.Now()})
	h := NewRunsHandler(testConfig(t), NewJobManager(), sorterFactory(t), runs, nil)

	rec := httptest.NewRecorder()
	h.Status(rec, requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/runs/old-run", nil), map[string]string{"jobId": "old-run"}))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for persisted run, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Status(rec, requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/runs/missing", nil), map[string]string{"jobId": "missing"}))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestRunsHandler_StartValidation(t *testing.T) {
	h := NewRunsHandler(testConfig(t), NewJobManager(), sorterFactory(t), nil, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", "{", http.StatusBadRequest},
		{"missing input", `{"input_dir": "/nonexistent/input"}`, http.StatusBadRequest},
		{"too many workers", `{"concurrency": 1000}`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Start(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(tc.body)))
			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestRunsHandler_FactoryFailure(t *testing.T) {
	jm := NewJobManager()
	failing := func(context.Context) (*sorter.Sorter, error) {
		return nil, errors.New("reference database not found")
	}
	h := NewRunsHandler(testConfig(t), jm, failing, nil, nil)

	rec := httptest.NewRecorder()
	h.Start(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil))
	var started map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &started)

	view := waitForTerminal(t, jm.GetJob(started["job_id"]))
	if view.Status != JobStatusFailed || view.Error == "" {
		t.Errorf("expected failed job, got %+v", view)
	}
}

func TestRunsHandler_CancelUnknown(t *testing.T) {
	h := NewRunsHandler(testConfig(t), NewJobManager(), sorterFactory(t), nil, nil)

	rec := httptest.NewRecorder()
	h.Cancel(rec, requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/api/v1/runs/x", nil), map[string]string{"jobId": "x"}))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestRunsHandler_StartConflict(t *testing.T) {
	jm := NewJobManager()
	if _, err := jm.CreateJob("busy", RunJobOptions{}); err != nil {
		t.Fatal(err)
	}
	h := NewRunsHandler(testConfig(t), jm, sorterFactory(t), nil, nil)

	rec := httptest.NewRecorder()
	h.Start(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
	if n := len(jm.ListJobs()); n != 1 {
		t.Errorf("expected no new job, got %d jobs", n)
	}
}

func TestRunsHandler_CancelPendingAndDeleteFinished(t *testing.T) {
	jm := NewJobManager()
	job, err := jm.CreateJob("r", RunJobOptions{})
	if err != nil {
		t.Fatal(err)
	}
	h := NewRunsHandler(testConfig(t), jm, sorterFactory(t), nil, nil)
	del := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.Cancel(rec, requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/api/v1/runs/r", nil), map[string]string{"jobId": "r"}))
		return rec
	}

	if rec := del(); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"cancelled":true`) {
		t.Errorf("unexpected cancel response %d: %s", rec.Code, rec.Body.String())
	}
	if jm.GetJob("r") == nil {
		t.Fatal("a pending job must stay registered after cancel")
	}

	job.mu.Lock()
	job.Status = JobStatusCancelled
	job.mu.Unlock()

	if rec := del(); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"deleted":true`) {
		t.Errorf("unexpected delete response %d: %s", rec.Code, rec.Body.String())
	}
	if jm.GetJob("r") != nil {
		t.Error("finished job should have been removed")
	}
	if rec := del(); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestRunsHandler_List(t *testing.T) {
	jm := NewJobManager()
	if _, err := jm.CreateJob("first", RunJobOptions{InputDir: "in"}); err != nil {
		t.Fatal(err)
	}
	runs := mock.NewMockRunWriter()
	h := NewRunsHandler(testConfig(t), jm, sorterFactory(t), runs, nil)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))

	var resp struct {
		Runs    []RunView            `json:"runs"`
		History []database.RunRecord `json:"history"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Runs) != 1 || resp.Runs[0].ID != "first" {
		t.Errorf("unexpected runs %+v", resp.Runs)
	}
}

func TestRunsHandler_EventsForFinishedJob(t *testing.T) {
	jm := NewJobManager()
	job, err := jm.CreateJob("done", RunJobOptions{})
	if err != nil {
		t.Fatal(err)
	}
	job.Status = JobStatusCompleted
	h := NewRunsHandler(testConfig(t), jm, sorterFactory(t), nil, nil)

	rec := httptest.NewRecorder()
	h.Events(rec, requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/runs/done/events", nil), map[string]string{"jobId": "done"}))

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected event stream, got %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "event: status\ndata: ") {
		t.Errorf("unexpected stream %q", rec.Body.String())
	}
}
