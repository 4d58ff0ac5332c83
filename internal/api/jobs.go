package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zotero/translate/core/runner"
	"github.com/zotero/translate/core/translator"
	"github.com/zotero/translate/internal/logging"
	"github.com/zotero/translate/internal/server"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// RunRequest is the request body for starting a test run.
type RunRequest struct {
	Translator string `json:"translator"` // translator ID or label
}

// Job tracks one asynchronous test run.
type Job struct {
	ID          string         `json:"id"`
	Status      JobStatus      `json:"status"`
	Progress    int            `json:"progress"` // 0-100
	Translator  string         `json:"translator"`
	RunID       string         `json:"run_id,omitempty"`
	Report      *runner.Report `json:"report,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
	CompletedAt string         `json:"completed_at,omitempty"`

	ctx    context.Context    `json:"-"`
	cancel context.CancelFunc `json:"-"`
}

// JobStore manages run jobs in memory.
type JobStore struct {
	jobs map[string]*Job
	mu   sync.RWMutex
}

// NewJobStore creates a new job store.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
	}
}

var globalJobStore = NewJobStore()

// Create creates a new pending job. The returned pointer is the live
// job whose context the worker goroutine watches; readers go through
// Get and List, which hand out copies.
func (s *JobStore) Create(translatorLabel string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now().UTC().Format(time.RFC3339)

	job := &Job{
		ID:         uuid.New().String(),
		Status:     JobStatusPending,
		Translator: translatorLabel,
		CreatedAt:  now,
		UpdatedAt:  now,
		ctx:        ctx,
		cancel:     cancel,
	}

	s.jobs[job.ID] = job
	return job
}

// Get retrieves a snapshot of a job by ID.
func (s *JobStore) Get(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

// Update updates a job's status and progress. A non-nil report also
// stamps the job's run ID.
func (s *JobStore) Update(id string, status JobStatus, progress int, report *runner.Report, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	job.Status = status
	job.Progress = progress
	job.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	if report != nil {
		job.Report = report
		job.RunID = report.RunID
	}

	if errMsg != "" {
		job.Error = errMsg
	}

	if status == JobStatusCompleted || status == JobStatusFailed || status == JobStatusCancelled {
		job.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	}

	return nil
}

// setRunID stamps the run ID on a job before its report exists, so
// clients can correlate WebSocket messages while the run is live.
func (s *JobStore) setRunID(id, runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, exists := s.jobs[id]; exists {
		job.RunID = runID
		job.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	}
}

// Delete removes a job from the store, cancelling it if still active.
func (s *JobStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	if job.Status == JobStatusRunning || job.Status == JobStatusPending {
		if job.cancel != nil {
			job.cancel()
		}
	}

	delete(s.jobs, id)
	return nil
}

// List returns snapshots of all jobs, newest first.
func (s *JobStore) List() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		snapshot := *job
		jobs = append(jobs, &snapshot)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt != jobs[j].CreatedAt {
			return jobs[i].CreatedAt > jobs[j].CreatedAt
		}
		return jobs[i].ID > jobs[j].ID
	})
	return jobs
}

// Cancel cancels a pending or running job.
func (s *JobStore) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	if job.Status != JobStatusPending && job.Status != JobStatusRunning {
		return fmt.Errorf("job cannot be cancelled (status: %s)", job.Status)
	}

	if job.cancel != nil {
		job.cancel()
	}

	job.Status = JobStatusCancelled
	job.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	job.CompletedAt = time.Now().UTC().Format(time.RFC3339)

	return nil
}

// runJob executes the translator's recorded tests in a goroutine,
// streaming per-test progress to the WebSocket hub and recording the
// final report in run history.
func runJob(job *Job, tr *translator.Translator) {
	go func() {
		runID := uuid.NewString()
		globalJobStore.setRunID(job.ID, runID)
		globalJobStore.Update(job.ID, JobStatusRunning, 0, nil, "")

		tests, err := tr.TestsChecked()
		if err != nil {
			globalJobStore.Update(job.ID, JobStatusFailed, 0, nil, "fixture block unreadable: "+err.Error())
			BroadcastRunError(runID, tr.Label, "fixture block unreadable")
			return
		}
		BroadcastRunStarted(runID, tr.Label, len(tests))

		pct := 0
		r := runner.New(runner.Config{
			Progress: func(ev runner.Progress) {
				if job.ctx.Err() != nil {
					return
				}
				pct = (ev.Index + 1) * 100 / ev.Total
				globalJobStore.Update(job.ID, JobStatusRunning, pct, nil, "")
				BroadcastTestResult(ev)
			},
		})

		ctx := logging.WithRunID(job.ctx, runID)
		report := r.RunAll(ctx, tr)

		if job.ctx.Err() != nil {
			globalJobStore.Update(job.ID, JobStatusCancelled, pct, nil, "Job cancelled by user")
			BroadcastRunError(runID, tr.Label, "run cancelled")
			return
		}

		errMsg := ""
		if runHistory != nil {
			if err := runHistory.Record(context.Background(), report); err != nil {
				errMsg = "run completed but history write failed: " + err.Error()
				logging.Error("record run failed", "run_id", runID, "error", err.Error())
			}
		}

		globalJobStore.Update(job.ID, JobStatusCompleted, 100, report, errMsg)
		BroadcastRunCompleted(report)
	}()
}

// handleRun handles POST /api/v1/run - start an asynchronous test run.
func handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}

	if ct := r.Header.Get("Content-Type"); ct != "" && !server.ValidateContentType(ct, []string{"application/json"}) {
		respondError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Request body must be application/json")
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}

	if req.Translator == "" {
		respondError(w, http.StatusBadRequest, "MISSING_PARAMS", "translator is required")
		return
	}

	reg, err := currentRegistry()
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "NOT_READY", "Translator registry is not loaded")
		return
	}

	tr, err := reg.Lookup(req.Translator)
	if err != nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Translator not found: "+req.Translator)
		return
	}

	job := globalJobStore.Create(tr.Label)
	runJob(job, tr)

	created, _ := globalJobStore.Get(job.ID)
	respond(w, http.StatusCreated, created)
}

// handleJobs handles GET /api/v1/jobs - list jobs.
func handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	jobs := globalJobStore.List()

	response := APIResponse{
		Success: true,
		Data:    jobs,
		Meta: &APIMeta{
			Total:     len(jobs),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleJobByID handles GET /api/v1/jobs/{id} - get job status and
// DELETE /api/v1/jobs/{id} - cancel job.
func handleJobByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	if id == "" {
		respondError(w, http.StatusBadRequest, "MISSING_ID", "Job ID is required")
		return
	}
	if !server.ValidateAlphanumeric(id) {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Job ID has invalid characters")
		return
	}

	switch r.Method {
	case http.MethodGet:
		getJobHandler(w, id)
	case http.MethodDelete:
		cancelJobHandler(w, id)
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and DELETE are allowed")
	}
}

func getJobHandler(w http.ResponseWriter, id string) {
	job, exists := globalJobStore.Get(id)
	if !exists {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Job not found")
		return
	}

	respond(w, http.StatusOK, job)
}

func cancelJobHandler(w http.ResponseWriter, id string) {
	if err := globalJobStore.Cancel(id); err != nil {
		if strings.Contains(err.Error(), "not found") {
			respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, "CANCEL_FAILED", err.Error())
		return
	}

	respond(w, http.StatusOK, map[string]string{"message": "Job cancelled"})
}
