package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/face-sorter/internal/config"
	"github.com/kozaktomas/face-sorter/internal/constants"
	"github.com/kozaktomas/face-sorter/internal/database"
	"github.com/kozaktomas/face-sorter/internal/metrics"
	"github.com/kozaktomas/face-sorter/internal/sorter"
)

// SorterFactory builds a sorter with freshly loaded references.
type SorterFactory func(ctx context.Context) (*sorter.Sorter, error)

// RunsHandler handles sorting run endpoints
type RunsHandler struct {
	config     *config.Config
	jobManager *JobManager
	newSorter  SorterFactory
	runs       database.RunWriter // optional history
	metrics    *metrics.Exporter  // optional
}

// NewRunsHandler creates a new runs handler
func NewRunsHandler(cfg *config.Config, jm *JobManager, newSorter SorterFactory, runs database.RunWriter, m *metrics.Exporter) *RunsHandler {
	return &RunsHandler{
		config:     cfg,
		jobManager: jm,
		newSorter:  newSorter,
		runs:       runs,
		metrics:    m,
	}
}

// StartRequest represents a run start request
type StartRequest struct {
	InputDir    string `json:"input_dir"`
	OutputDir   string `json:"output_dir"`
	Concurrency int    `json:"concurrency"`
}

// Start starts a new sorting run
func (h *RunsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return
		}
	}

	if req.InputDir == "" {
		req.InputDir = h.config.Paths.InputDir
	}
	if req.OutputDir == "" {
		req.OutputDir = h.config.Paths.OutputDir
	}
	if req.Concurrency <= 0 {
		req.Concurrency = constants.DefaultConcurrency
	}
	if req.Concurrency > constants.MaxConcurrency {
		respondError(w, http.StatusBadRequest, "concurrency must be at most "+strconv.Itoa(constants.MaxConcurrency))
		return
	}

	if info, err := os.Stat(req.InputDir); err != nil || !info.IsDir() {
		respondError(w, http.StatusBadRequest, "input directory not found")
		return
	}

	jobID := uuid.New().String()
	job, err := h.jobManager.CreateJob(jobID, RunJobOptions(req))
	if err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	job.setCancel(cancel)
	go h.runSortJob(ctx, cancel, job)

	respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(JobStatusPending),
	})
}

// List returns the runs of this server and the persisted history
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobManager.ListJobs()
	views := make([]RunView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, job.Snapshot())
	}

	resp := map[string]any{"runs": views}
	if h.runs != nil {
		limit := database.DefaultRunListLimit
		if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
			limit = v
		}
		history, err := h.runs.ListRuns(r.Context(), limit)
		if err != nil {
			log.Errorf("web: failed to list runs: %v", err)
			respondError(w, http.StatusInternalServerError, "failed to list run history")
			return
		}
		resp["history"] = history
	}
	respondJSON(w, http.StatusOK, resp)
}

// Status returns the status of a run, falling back to the persisted history
func (h *RunsHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	if job := h.jobManager.GetJob(jobID); job != nil {
		respondJSON(w, http.StatusOK, job.Snapshot())
		return
	}

	if h.runs != nil {
		run, err := h.runs.GetRun(r.Context(), jobID)
		if err != nil {
			log.Errorf("web: failed to load run %s: %v", sanitizeForLog(jobID), err)
			respondError(w, http.StatusInternalServerError, "failed to load run")
			return
		}
		if run != nil {
			respondJSON(w, http.StatusOK, run)
			return
		}
	}
	respondError(w, http.StatusNotFound, "job not found")
}

// Events streams run events via SSE
func (h *RunsHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			job := h.jobManager.GetJob(id)
			if job == nil {
				return nil
			}
			return job
		},
		func(job SSEJob) any {
			return job.(*RunJob).Snapshot()
		},
	)
}

// Cancel cancels a pending or running run and removes a finished one
func (h *RunsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	if h.jobManager.DeleteJob(jobID) {
		respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
		return
	}
	job.Cancel()
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// runSortJob runs the sorting in the background
func (h *RunsHandler) runSortJob(ctx context.Context, cancel context.CancelFunc, job *RunJob) {
	defer cancel()

	job.mu.Lock()
	job.Status = JobStatusRunning
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "started", Message: "Run started"})

	if h.metrics != nil {
		h.metrics.RunStarted()
		defer h.metrics.RunFinished()
	}

	s, err := h.newSorter(ctx)
	if err != nil {
		h.failJob(job, err.Error())
		return
	}

	opts := sorter.SortOptions{
		InputDir:      job.Options.InputDir,
		OutputDir:     job.Options.OutputDir,
		UnknownFolder: h.config.Matching.UnknownFolder,
		Concurrency:   job.Options.Concurrency,
		IsImage:       h.config.Matching.IsImageFile,
		Quiet:         true,
		OnProgress: func(p sorter.ProgressInfo) {
			job.mu.Lock()
			job.ProcessedImages = p.Current
			job.TotalImages = p.Total
			job.mu.Unlock()
			job.SendEvent(JobEvent{Type: "progress", Data: p})
		},
	}
	if h.metrics != nil {
		opts.Observer = h.metrics
	}

	result, err := s.Sort(ctx, opts)
	if err != nil {
		if errors.Is(err, sorter.ErrInputDirNotFound) {
			h.failJob(job, "input directory not found")
			return
		}
		h.failJob(job, err.Error())
		return
	}

	if h.runs != nil {
		record := database.RunRecord{
			ID:         job.ID,
			StartedAt:  result.StartedAt,
			FinishedAt: result.FinishedAt,
			InputDir:   result.InputDir,
			OutputDir:  result.OutputDir,
			Cancelled:  result.Cancelled,
			Summary:    result.Summary,
		}
		if err := h.runs.SaveRun(context.Background(), record); err != nil {
			log.Errorf("web: failed to save run %s: %v", job.ID, err)
		}
	}

	now := time.Now()
	job.mu.Lock()
	job.Summary = &result.Summary
	job.CompletedAt = &now
	job.Status = JobStatusCompleted
	if result.Cancelled {
		job.Status = JobStatusCancelled
	}
	status := job.Status
	job.mu.Unlock()

	job.SendEvent(JobEvent{Type: string(status), Data: result.Summary})
}

func (h *RunsHandler) failJob(job *RunJob, message string) {
	now := time.Now()
	job.mu.Lock()
	job.Status = JobStatusFailed
	job.Error = message
	job.CompletedAt = &now
	job.mu.Unlock()
	log.Errorf("web: run %s failed: %s", job.ID, message)
	job.SendEvent(JobEvent{Type: "job_error", Message: message})
}
