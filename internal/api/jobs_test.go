package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zotero/translate/core/item"
	"github.com/zotero/translate/core/runner"
	"github.com/zotero/translate/core/translator"
)

// apiHandler scripts the direct execution path for import and search
// tests.
type apiHandler struct {
	detect  func(ctx context.Context, caps *translator.Capabilities) (string, error)
	extract func(ctx context.Context, caps *translator.Capabilities) ([]item.Item, error)
}

func (h apiHandler) Detect(ctx context.Context, caps *translator.Capabilities) (string, error) {
	if h.detect == nil {
		return "", nil
	}
	return h.detect(ctx, caps)
}

func (h apiHandler) Extract(ctx context.Context, caps *translator.Capabilities) ([]item.Item, error) {
	if h.extract == nil {
		return nil, nil
	}
	return h.extract(ctx, caps)
}

// waitForJob polls until the job reaches a terminal status.
func waitForJob(t *testing.T, id string) *Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := globalJobStore.Get(id)
		if !ok {
			t.Fatalf("job %s disappeared", id)
		}
		switch job.Status {
		case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return nil
}

func postRun(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/run", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handleRun(rec, req)
	return rec
}

func TestJobStoreCreateAndGet(t *testing.T) {
	store := NewJobStore()

	job := store.Create("Alpha Press")
	if job.ID == "" {
		t.Fatalf("created job has no ID")
	}
	if job.Status != JobStatusPending {
		t.Errorf("Status = %q, want %q", job.Status, JobStatusPending)
	}
	if job.CreatedAt == "" || job.UpdatedAt == "" {
		t.Errorf("timestamps missing: %+v", job)
	}

	got, ok := store.Get(job.ID)
	if !ok {
		t.Fatalf("Get returned no job")
	}
	if got.Translator != "Alpha Press" {
		t.Errorf("Translator = %q, want %q", got.Translator, "Alpha Press")
	}

	// Get hands out snapshots; mutating one must not reach the store.
	got.Status = JobStatusFailed
	again, _ := store.Get(job.ID)
	if again.Status != JobStatusPending {
		t.Errorf("Status = %q after snapshot mutation, want %q", again.Status, JobStatusPending)
	}
}

func TestJobStoreGetMissing(t *testing.T) {
	store := NewJobStore()
	if _, ok := store.Get("no-such-job"); ok {
		t.Errorf("Get returned a job for an unknown ID")
	}
}

func TestJobStoreUpdate(t *testing.T) {
	store := NewJobStore()
	job := store.Create("Alpha Press")

	if err := store.Update(job.ID, JobStatusRunning, 40, nil, ""); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := store.Get(job.ID)
	if got.Status != JobStatusRunning || got.Progress != 40 {
		t.Errorf("job = %+v, want running at 40", got)
	}
	if got.CompletedAt != "" {
		t.Errorf("CompletedAt = %q, want empty while running", got.CompletedAt)
	}

	rep := apiReport("run-upd", "2026-08-01T10:00:00Z")
	if err := store.Update(job.ID, JobStatusCompleted, 100, rep, ""); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ = store.Get(job.ID)
	if got.Status != JobStatusCompleted || got.Progress != 100 {
		t.Errorf("job = %+v, want completed at 100", got)
	}
	if got.Report == nil || got.RunID != "run-upd" {
		t.Errorf("job = %+v, want report and run ID attached", got)
	}
	if got.CompletedAt == "" {
		t.Errorf("CompletedAt missing on terminal status")
	}

	if err := store.Update("no-such-job", JobStatusRunning, 0, nil, ""); err == nil {
		t.Errorf("Update of unknown job succeeded")
	}
}

func TestJobStoreListNewestFirst(t *testing.T) {
	store := NewJobStore()
	older := store.Create("Alpha Press")
	newer := store.Create("Beta Journal")

	// Creation happens within one second, so backdate the first job to
	// make the ordering observable.
	store.mu.Lock()
	store.jobs[older.ID].CreatedAt = "2026-08-01T10:00:00Z"
	store.jobs[newer.ID].CreatedAt = "2026-08-02T10:00:00Z"
	store.mu.Unlock()

	jobs := store.List()
	if len(jobs) != 2 {
		t.Fatalf("len = %d, want 2", len(jobs))
	}
	if jobs[0].ID != newer.ID || jobs[1].ID != older.ID {
		t.Errorf("order = %q, %q, want newest first", jobs[0].Translator, jobs[1].Translator)
	}
}

func TestJobStoreCancel(t *testing.T) {
	store := NewJobStore()
	job := store.Create("Alpha Press")

	if err := store.Cancel(job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if job.ctx.Err() == nil {
		t.Errorf("job context still live after cancel")
	}
	got, _ := store.Get(job.ID)
	if got.Status != JobStatusCancelled {
		t.Errorf("Status = %q, want %q", got.Status, JobStatusCancelled)
	}
	if got.CompletedAt == "" {
		t.Errorf("CompletedAt missing after cancel")
	}

	if err := store.Cancel(job.ID); err == nil {
		t.Errorf("second cancel succeeded, want status error")
	}

	done := store.Create("Beta Journal")
	store.Update(done.ID, JobStatusCompleted, 100, nil, "")
	if err := store.Cancel(done.ID); err == nil || !strings.Contains(err.Error(), "cannot be cancelled") {
		t.Errorf("Cancel of completed job = %v, want status error", err)
	}

	if err := store.Cancel("no-such-job"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Cancel of unknown job = %v, want not found", err)
	}
}

func TestJobStoreDelete(t *testing.T) {
	store := NewJobStore()
	job := store.Create("Alpha Press")

	if err := store.Delete(job.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if job.ctx.Err() == nil {
		t.Errorf("deleting a pending job should cancel its context")
	}
	if _, ok := store.Get(job.ID); ok {
		t.Errorf("job still present after delete")
	}
	if err := store.Delete(job.ID); err == nil {
		t.Errorf("second delete succeeded")
	}
}

func TestHandleRunValidation(t *testing.T) {
	resetJobStore(t)
	withRegistry(t,
		apiTranslator(t, "77777777-0000-4000-8000-000000000001", "Alpha Press", "^https?://alpha\\.example\\.com/", ""),
	)

	t.Run("method not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handleRun(rec, httptest.NewRequest(http.MethodGet, "/api/v1/run", nil))
		wantErrorCode(t, rec, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")
	})

	t.Run("wrong content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/run", strings.NewReader(`{"translator":"Alpha Press"}`))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		handleRun(rec, req)
		wantErrorCode(t, rec, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE")
	})

	t.Run("invalid json", func(t *testing.T) {
		rec := postRun(t, "{not json")
		wantErrorCode(t, rec, http.StatusBadRequest, "INVALID_JSON")
	})

	t.Run("missing translator", func(t *testing.T) {
		rec := postRun(t, `{}`)
		wantErrorCode(t, rec, http.StatusBadRequest, "MISSING_PARAMS")
	})

	t.Run("unknown translator", func(t *testing.T) {
		rec := postRun(t, `{"translator":"No Such Translator"}`)
		wantErrorCode(t, rec, http.StatusNotFound, "NOT_FOUND")
	})
}

func TestHandleRunNotReady(t *testing.T) {
	resetJobStore(t)
	prev := registryCache
	registryCache = nil
	t.Cleanup(func() { registryCache = prev })

	rec := postRun(t, `{"translator":"Alpha Press"}`)
	wantErrorCode(t, rec, http.StatusServiceUnavailable, "NOT_READY")
}

func TestHandleRunNoTests(t *testing.T) {
	resetJobStore(t)
	withRegistry(t,
		apiTranslator(t, "77777777-0000-4000-8000-000000000002", "Alpha Press", "^https?://alpha\\.example\\.com/", ""),
	)

	rec := postRun(t, `{"translator":"Alpha Press"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var created Job
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("created job has no ID")
	}
	if created.Translator != "Alpha Press" {
		t.Errorf("Translator = %q, want the resolved label", created.Translator)
	}

	job := waitForJob(t, created.ID)
	if job.Status != JobStatusCompleted {
		t.Fatalf("Status = %q, want %q, error %q", job.Status, JobStatusCompleted, job.Error)
	}
	if job.Progress != 100 {
		t.Errorf("Progress = %d, want 100", job.Progress)
	}
	if job.Report == nil || job.Report.Status != runner.StatusNoTests {
		t.Errorf("Report = %+v, want a no-tests report", job.Report)
	}
	if job.RunID == "" || job.RunID != job.Report.RunID {
		t.Errorf("RunID = %q, report %q, want them stamped and equal", job.RunID, job.Report.RunID)
	}
}

const passingImportFixture = `/** BEGIN TEST CASES **/
var testCases = [
	{
		"type": "import",
		"input": "Alpha",
		"items": [
			{
				"itemType": "journalArticle",
				"title": "Alpha"
			}
		]
	}
]
/** END TEST CASES **/`

func TestHandleRunRecordsHistory(t *testing.T) {
	resetJobStore(t)
	store := withHistory(t)
	id := "77777777-0000-4000-8000-000000000003"
	translator.RegisterHandler(id, apiHandler{
		detect: func(ctx context.Context, caps *translator.Capabilities) (string, error) {
			return "journalArticle", nil
		},
		extract: func(ctx context.Context, caps *translator.Capabilities) ([]item.Item, error) {
			return []item.Item{{"itemType": "journalArticle", "title": caps.Input}}, nil
		},
	})
	withRegistry(t,
		apiTranslator(t, id, "Alpha Press", "^https?://alpha\\.example\\.com/", passingImportFixture),
	)

	rec := postRun(t, `{"translator":"`+id+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var created Job
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}

	job := waitForJob(t, created.ID)
	if job.Status != JobStatusCompleted {
		t.Fatalf("Status = %q, want %q, error %q", job.Status, JobStatusCompleted, job.Error)
	}
	if job.Error != "" {
		t.Errorf("Error = %q, want empty", job.Error)
	}
	if job.Report == nil || job.Report.Status != runner.StatusSuccess {
		t.Fatalf("Report = %+v, want a passing report", job.Report)
	}

	stored, err := store.Get(context.Background(), job.RunID)
	if err != nil {
		t.Fatalf("history Get: %v", err)
	}
	if stored.RunID != job.RunID || len(stored.Results) != 1 {
		t.Errorf("stored report = %+v, want the finished run", stored)
	}
}

func TestHandleRunReportsFailure(t *testing.T) {
	resetJobStore(t)
	// No handler bound for this ID, so the import test fails while the
	// job itself still completes.
	withRegistry(t,
		apiTranslator(t, "77777777-0000-4000-8000-000000000004", "Alpha Press", "^https?://alpha\\.example\\.com/", passingImportFixture),
	)

	rec := postRun(t, `{"translator":"Alpha Press"}`)
	env := decodeEnvelope(t, rec)
	var created Job
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}

	job := waitForJob(t, created.ID)
	if job.Status != JobStatusCompleted {
		t.Fatalf("Status = %q, want %q", job.Status, JobStatusCompleted)
	}
	if job.Report == nil || job.Report.Status != runner.StatusFailure {
		t.Fatalf("Report = %+v, want a failing report", job.Report)
	}
	if !strings.Contains(job.Report.Results[0].Reason, "no execution handler") {
		t.Errorf("Reason = %q, want handler binding failure", job.Report.Results[0].Reason)
	}
}

func TestHandleRunUnreadableFixtures(t *testing.T) {
	resetJobStore(t)
	withRegistry(t,
		apiTranslator(t, "77777777-0000-4000-8000-000000000005", "Alpha Press", "^https?://alpha\\.example\\.com/", `/** BEGIN TEST CASES **/
var testCases = [ { not json } ]
/** END TEST CASES **/`),
	)

	rec := postRun(t, `{"translator":"Alpha Press"}`)
	env := decodeEnvelope(t, rec)
	var created Job
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}

	job := waitForJob(t, created.ID)
	if job.Status != JobStatusFailed {
		t.Fatalf("Status = %q, want %q", job.Status, JobStatusFailed)
	}
	if !strings.Contains(job.Error, "fixture block unreadable") {
		t.Errorf("Error = %q, want the fixture parse failure", job.Error)
	}
	if job.Report != nil {
		t.Errorf("Report = %+v, want none for a failed job", job.Report)
	}
}

func TestHandleJobs(t *testing.T) {
	resetJobStore(t)
	globalJobStore.Create("Alpha Press")
	globalJobStore.Create("Beta Journal")

	rec := httptest.NewRecorder()
	handleJobs(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Meta == nil || env.Meta.Total != 2 {
		t.Fatalf("meta = %+v, want total 2", env.Meta)
	}
	var jobs []Job
	if err := json.Unmarshal(env.Data, &jobs); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("len = %d, want 2", len(jobs))
	}
}

func TestHandleJobsMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	handleJobs(rec, httptest.NewRequest(http.MethodPost, "/api/v1/jobs", nil))
	wantErrorCode(t, rec, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")
}

func TestHandleJobByID(t *testing.T) {
	resetJobStore(t)
	job := globalJobStore.Create("Alpha Press")

	t.Run("found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handleJobByID(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID, nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
		}
		env := decodeEnvelope(t, rec)
		var got Job
		if err := json.Unmarshal(env.Data, &got); err != nil {
			t.Fatalf("unmarshal data: %v", err)
		}
		if got.ID != job.ID {
			t.Errorf("ID = %q, want %q", got.ID, job.ID)
		}
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handleJobByID(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/77777777-0000-4000-8000-00000000dead", nil))
		wantErrorCode(t, rec, http.StatusNotFound, "NOT_FOUND")
	})

	t.Run("invalid characters", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handleJobByID(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/bad.id", nil))
		wantErrorCode(t, rec, http.StatusBadRequest, "INVALID_ID")
	})

	t.Run("empty", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handleJobByID(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/", nil))
		wantErrorCode(t, rec, http.StatusBadRequest, "MISSING_ID")
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handleJobByID(rec, httptest.NewRequest(http.MethodPut, "/api/v1/jobs/"+job.ID, nil))
		wantErrorCode(t, rec, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")
	})
}

func TestCancelJobOverHTTP(t *testing.T) {
	resetJobStore(t)
	job := globalJobStore.Create("Alpha Press")

	rec := httptest.NewRecorder()
	handleJobByID(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/jobs/"+job.ID, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	got, _ := globalJobStore.Get(job.ID)
	if got.Status != JobStatusCancelled {
		t.Errorf("Status = %q, want %q", got.Status, JobStatusCancelled)
	}

	t.Run("already terminal", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handleJobByID(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/jobs/"+job.ID, nil))
		wantErrorCode(t, rec, http.StatusBadRequest, "CANCEL_FAILED")
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handleJobByID(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/jobs/77777777-0000-4000-8000-00000000dead", nil))
		wantErrorCode(t, rec, http.StatusNotFound, "NOT_FOUND")
	})
}
