package handlers

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/face-sorter/internal/constants"
	"github.com/kozaktomas/face-sorter/internal/facematch"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// RunView is the JSON representation of a run job.
type RunView struct {
	ID              string             `json:"id"`
	Status          JobStatus          `json:"status"`
	TotalImages     int                `json:"total_images"`
	ProcessedImages int                `json:"processed_images"`
	Error           string             `json:"error,omitempty"`
	StartedAt       time.Time          `json:"started_at"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
	Options         RunJobOptions      `json:"options"`
	Summary         *facematch.Summary `json:"summary,omitempty"`
}

// RunJob represents an async sorting run.
type RunJob struct {
	EventBroadcaster
	RunView
}

// GetStatus returns the current job status (implements SSEJob).
func (j *RunJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// Snapshot returns a copy safe to encode while the job runs.
func (j *RunJob) Snapshot() RunView {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.RunView
}

// Cancel cancels the run. The status turns cancelled once the sorter stops.
func (j *RunJob) Cancel() {
	j.EventBroadcaster.Cancel()
}

// RunJobOptions represents run job options.
type RunJobOptions struct {
	InputDir    string `json:"input_dir"`
	OutputDir   string `json:"output_dir"`
	Concurrency int    `json:"concurrency"`
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the job via context and sends a cancelling event.
func (b *EventBroadcaster) Cancel() {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelling", Message: "Run cancelled by user"})
}

// setCancel stores the cancel function of the running job.
func (b *EventBroadcaster) setCancel(cancel context.CancelFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancel = cancel
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager manages async jobs.
type JobManager struct {
	jobs map[string]*RunJob
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*RunJob),
	}
}

// ErrRunInProgress is returned by CreateJob while another job is pending or running.
var ErrRunInProgress = errors.New("a run is already in progress")

// CreateJob creates a new run job unless another one is still pending or running.
func (m *JobManager) CreateJob(id string, options RunJobOptions) (*RunJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.jobs {
		if !isJobTerminal(job.GetStatus()) {
			return nil, ErrRunInProgress
		}
	}

	job := &RunJob{RunView: RunView{
		ID:        id,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
		Options:   options,
	}}
	m.jobs[id] = job
	return job, nil
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *RunJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// DeleteJob removes a finished job. It reports false, leaving the job in
// place, when the job is unknown or still pending or running.
func (m *JobManager) DeleteJob(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || !isJobTerminal(job.GetStatus()) {
		return false
	}
	delete(m.jobs, id)
	return true
}

// ListJobs returns all jobs, newest first.
func (m *JobManager) ListJobs() []*RunJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]*RunJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartedAt.After(jobs[j].StartedAt)
	})
	return jobs
}
