package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/zotero/translate/core/runner"
	"github.com/zotero/translate/core/translator"
	"github.com/zotero/translate/internal/cache"
	"github.com/zotero/translate/internal/history"
)

// apiTranslator parses a minimal translator module with the given
// identity and fixture block.
func apiTranslator(t *testing.T, id, label, target, fixtures string) *translator.Translator {
	t.Helper()
	src := fmt.Sprintf(`{
	"translatorID": %q,
	"label": %q,
	"creator": "Jane Doe",
	"target": %q,
	"minVersion": "5.0",
	"maxVersion": "",
	"priority": 100,
	"inRepository": true,
	"translatorType": 14,
	"browserSupport": "gcsibv",
	"lastUpdated": "2024-03-02 10:00:00"
}

function detectWeb(doc, url) {}
%s`, id, label, target, fixtures)
	tr, err := translator.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return tr
}

// withRegistry installs an in-memory registry for the duration of the
// test.
func withRegistry(t *testing.T, trs ...*translator.Translator) {
	t.Helper()
	prev := registryCache
	registryCache = cache.NewValue(time.Minute, func() (*translator.Registry, error) {
		return translator.NewRegistry(trs...), nil
	})
	t.Cleanup(func() { registryCache = prev })
}

// withHistory installs a temporary history store for the duration of
// the test and returns it for direct seeding.
func withHistory(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	prev := runHistory
	runHistory = store
	t.Cleanup(func() {
		runHistory = prev
		store.Close()
	})
	return store
}

// resetJobStore swaps in a fresh job store so tests see only their own
// jobs.
func resetJobStore(t *testing.T) {
	t.Helper()
	prev := globalJobStore
	globalJobStore = NewJobStore()
	t.Cleanup(func() { globalJobStore = prev })
}

// envelope mirrors APIResponse with the payload left raw so tests can
// decode it into the type under scrutiny.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal response %q: %v", rec.Body.String(), err)
	}
	return env
}

func wantErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, status, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Success {
		t.Errorf("success = true, want false")
	}
	if env.Error == nil || env.Error.Code != code {
		t.Errorf("error = %+v, want code %q", env.Error, code)
	}
}

func apiReport(runID, createdAt string, results ...runner.TestResult) *runner.Report {
	status := runner.StatusSuccess
	if len(results) == 0 {
		status = runner.StatusNoTests
	}
	for _, res := range results {
		if res.Status != runner.StatusSuccess {
			status = runner.StatusFailure
		}
	}
	return &runner.Report{
		ReportVersion:  runner.ReportVersion,
		RunID:          runID,
		CreatedAt:      createdAt,
		TranslatorID:   "55555555-0000-4000-8000-000000000001",
		Translator:     "Sample Journal",
		TranslatorHash: "deadbeef",
		Status:         status,
		Results:        results,
	}
}

func TestHandleRoot(t *testing.T) {
	rec := httptest.NewRecorder()
	handleRoot(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Errorf("success = false, want true")
	}
	var data struct {
		Name      string   `json:"name"`
		Endpoints []string `json:"endpoints"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.Name != "Translator Test API" {
		t.Errorf("name = %q, want the API name", data.Name)
	}
	if len(data.Endpoints) == 0 {
		t.Errorf("endpoints list is empty")
	}
}

func TestHandleRootUnknownPath(t *testing.T) {
	rec := httptest.NewRecorder()
	handleRoot(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	wantErrorCode(t, rec, http.StatusNotFound, "NOT_FOUND")
}

func TestHandleHealth(t *testing.T) {
	withRegistry(t,
		apiTranslator(t, "66666666-0000-4000-8000-000000000001", "Alpha Press", "^https?://alpha\\.example\\.com/", ""),
	)

	rec := httptest.NewRecorder()
	handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	var info HealthInfo
	if err := json.Unmarshal(env.Data, &info); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if info.Status != "healthy" {
		t.Errorf("status = %q, want healthy", info.Status)
	}
	if info.Translators != 1 {
		t.Errorf("translators = %d, want 1", info.Translators)
	}
	if info.Uptime == "" {
		t.Errorf("uptime is empty")
	}
}

func TestHandleHealthMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	handleHealth(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	wantErrorCode(t, rec, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")
}

func TestHandleTranslatorsList(t *testing.T) {
	withRegistry(t,
		apiTranslator(t, "66666666-0000-4000-8000-000000000002", "Beta Journal", "^https?://beta\\.example\\.com/", ""),
		apiTranslator(t, "66666666-0000-4000-8000-000000000003", "Alpha Press", "^https?://alpha\\.example\\.com/", ""),
	)

	rec := httptest.NewRecorder()
	handleTranslators(rec, httptest.NewRequest(http.MethodGet, "/api/v1/translators", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Meta == nil || env.Meta.Total != 2 {
		t.Fatalf("meta = %+v, want total 2", env.Meta)
	}
	var infos []TranslatorInfo
	if err := json.Unmarshal(env.Data, &infos); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("len = %d, want 2", len(infos))
	}
	if infos[0].Label != "Alpha Press" || infos[1].Label != "Beta Journal" {
		t.Errorf("labels = %q, %q, want sorted by label", infos[0].Label, infos[1].Label)
	}
	if infos[0].TranslatorID == "" || infos[0].Hash == "" {
		t.Errorf("first entry missing identity: %+v", infos[0])
	}
	if len(infos[0].Kinds) == 0 {
		t.Errorf("first entry has no kinds")
	}
}

func TestHandleTranslatorsForURL(t *testing.T) {
	withRegistry(t,
		apiTranslator(t, "66666666-0000-4000-8000-000000000004", "Beta Journal", "^https?://beta\\.example\\.com/", ""),
		apiTranslator(t, "66666666-0000-4000-8000-000000000005", "Alpha Press", "^https?://alpha\\.example\\.com/", ""),
	)

	rec := httptest.NewRecorder()
	handleTranslators(rec, httptest.NewRequest(http.MethodGet, "/api/v1/translators?url=https://beta.example.com/article/7", nil))

	env := decodeEnvelope(t, rec)
	if env.Meta == nil || env.Meta.Total != 1 {
		t.Fatalf("meta = %+v, want total 1", env.Meta)
	}
	var infos []TranslatorInfo
	if err := json.Unmarshal(env.Data, &infos); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if infos[0].Label != "Beta Journal" {
		t.Errorf("label = %q, want the matching translator", infos[0].Label)
	}
}

func TestHandleTranslatorsNotReady(t *testing.T) {
	prev := registryCache
	registryCache = nil
	t.Cleanup(func() { registryCache = prev })

	rec := httptest.NewRecorder()
	handleTranslators(rec, httptest.NewRequest(http.MethodGet, "/api/v1/translators", nil))
	wantErrorCode(t, rec, http.StatusServiceUnavailable, "NOT_READY")
}

func TestHandleTranslatorsMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	handleTranslators(rec, httptest.NewRequest(http.MethodPost, "/api/v1/translators", nil))
	wantErrorCode(t, rec, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")
}

func TestHandleTranslatorByID(t *testing.T) {
	id := "66666666-0000-4000-8000-000000000006"
	withRegistry(t,
		apiTranslator(t, id, "Alpha Press", "^https?://alpha\\.example\\.com/", ""),
	)

	t.Run("found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handleTranslatorByID(rec, httptest.NewRequest(http.MethodGet, "/api/v1/translators/"+id, nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
		}
		env := decodeEnvelope(t, rec)
		var info TranslatorInfo
		if err := json.Unmarshal(env.Data, &info); err != nil {
			t.Fatalf("unmarshal data: %v", err)
		}
		if info.TranslatorID != id || info.Label != "Alpha Press" {
			t.Errorf("info = %+v, want the requested translator", info)
		}
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handleTranslatorByID(rec, httptest.NewRequest(http.MethodGet, "/api/v1/translators/66666666-0000-4000-8000-00000000dead", nil))
		wantErrorCode(t, rec, http.StatusNotFound, "NOT_FOUND")
	})

	t.Run("invalid characters", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handleTranslatorByID(rec, httptest.NewRequest(http.MethodGet, "/api/v1/translators/bad.id", nil))
		wantErrorCode(t, rec, http.StatusBadRequest, "INVALID_ID")
	})

	t.Run("empty", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handleTranslatorByID(rec, httptest.NewRequest(http.MethodGet, "/api/v1/translators/", nil))
		wantErrorCode(t, rec, http.StatusBadRequest, "MISSING_ID")
	})

	t.Run("unknown subresource", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handleTranslatorByID(rec, httptest.NewRequest(http.MethodGet, "/api/v1/translators/"+id+"/bogus", nil))
		wantErrorCode(t, rec, http.StatusNotFound, "NOT_FOUND")
	})
}

const listingFixtures = `/** BEGIN TEST CASES **/
var testCases = [
	{
		"type": "web",
		"url": "https://alpha.example.com/article/1",
		"items": [
			{
				"itemType": "journalArticle",
				"title": "First"
			}
		]
	},
	{
		"type": "import",
		"input": "record",
		"detectedItemType": "book",
		"items": [
			{
				"itemType": "book",
				"title": "Second"
			}
		]
	}
]
/** END TEST CASES **/`

func TestHandleTranslatorTests(t *testing.T) {
	id := "66666666-0000-4000-8000-000000000007"
	withRegistry(t,
		apiTranslator(t, id, "Alpha Press", "^https?://alpha\\.example\\.com/", listingFixtures),
	)

	rec := httptest.NewRecorder()
	handleTranslatorByID(rec, httptest.NewRequest(http.MethodGet, "/api/v1/translators/"+id+"/tests", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Meta == nil || env.Meta.Total != 2 {
		t.Fatalf("meta = %+v, want total 2", env.Meta)
	}
	var infos []TestInfo
	if err := json.Unmarshal(env.Data, &infos); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if infos[0].Type != "web" || infos[0].URL != "https://alpha.example.com/article/1" {
		t.Errorf("first = %+v, want the web test with its URL", infos[0])
	}
	if infos[0].Items != 1 {
		t.Errorf("first items = %d, want 1", infos[0].Items)
	}
	if infos[1].Type != "import" || infos[1].URL != "" {
		t.Errorf("second = %+v, want the import test without a URL", infos[1])
	}
	if infos[1].DetectedItemType != "book" {
		t.Errorf("second detected type = %q, want book", infos[1].DetectedItemType)
	}
}

func TestHandleTranslatorTestsUnreadable(t *testing.T) {
	id := "66666666-0000-4000-8000-000000000008"
	withRegistry(t,
		apiTranslator(t, id, "Alpha Press", "^https?://alpha\\.example\\.com/", `/** BEGIN TEST CASES **/
var testCases = [ { not json } ]
/** END TEST CASES **/`),
	)

	rec := httptest.NewRecorder()
	handleTranslatorByID(rec, httptest.NewRequest(http.MethodGet, "/api/v1/translators/"+id+"/tests", nil))
	wantErrorCode(t, rec, http.StatusUnprocessableEntity, "INVALID_FIXTURES")
}

func TestHandleRunsHistoryDisabled(t *testing.T) {
	prev := runHistory
	runHistory = nil
	t.Cleanup(func() { runHistory = prev })

	rec := httptest.NewRecorder()
	handleRuns(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	wantErrorCode(t, rec, http.StatusServiceUnavailable, "HISTORY_DISABLED")
}

func TestHandleRunsList(t *testing.T) {
	store := withHistory(t)
	ctx := context.Background()
	if err := store.Record(ctx, apiReport("run-a", "2026-08-01T10:00:00Z",
		runner.TestResult{Index: 0, Type: "import", Status: runner.StatusSuccess, DurationMS: 3})); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Record(ctx, apiReport("run-b", "2026-08-02T10:00:00Z",
		runner.TestResult{Index: 0, Type: "web", Status: runner.StatusFailure, Reason: "Data mismatch", DurationMS: 9})); err != nil {
		t.Fatalf("Record: %v", err)
	}

	rec := httptest.NewRecorder()
	handleRuns(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Meta == nil || env.Meta.Total != 2 {
		t.Fatalf("meta = %+v, want total 2", env.Meta)
	}
	var entries []history.Entry
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if entries[0].RunID != "run-b" || entries[1].RunID != "run-a" {
		t.Errorf("order = %q, %q, want newest first", entries[0].RunID, entries[1].RunID)
	}
	if entries[0].Failed != 1 || entries[1].Passed != 1 {
		t.Errorf("counts = %+v / %+v, want per-run tallies", entries[0], entries[1])
	}
}

func TestHandleRunsLimit(t *testing.T) {
	store := withHistory(t)
	ctx := context.Background()
	for i, runID := range []string{"run-a", "run-b", "run-c"} {
		created := fmt.Sprintf("2026-08-0%dT10:00:00Z", i+1)
		if err := store.Record(ctx, apiReport(runID, created)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	rec := httptest.NewRecorder()
	handleRuns(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=1", nil))

	env := decodeEnvelope(t, rec)
	if env.Meta == nil || env.Meta.Total != 1 {
		t.Fatalf("meta = %+v, want total 1", env.Meta)
	}
	var entries []history.Entry
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if entries[0].RunID != "run-c" {
		t.Errorf("run = %q, want the newest", entries[0].RunID)
	}
}

func TestHandleRunsInvalidLimit(t *testing.T) {
	withHistory(t)
	for _, raw := range []string{"abc", "0", "-3"} {
		rec := httptest.NewRecorder()
		handleRuns(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit="+raw, nil))
		wantErrorCode(t, rec, http.StatusBadRequest, "INVALID_LIMIT")
	}
}

func TestHandleRunByID(t *testing.T) {
	store := withHistory(t)
	rep := apiReport("run-fetch", "2026-08-01T10:00:00Z",
		runner.TestResult{Index: 0, Type: "import", Status: runner.StatusSuccess, DurationMS: 3})
	if err := store.Record(context.Background(), rep); err != nil {
		t.Fatalf("Record: %v", err)
	}

	t.Run("found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handleRunByID(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/run-fetch", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
		}
		env := decodeEnvelope(t, rec)
		var got runner.Report
		if err := json.Unmarshal(env.Data, &got); err != nil {
			t.Fatalf("unmarshal data: %v", err)
		}
		if got.RunID != "run-fetch" || len(got.Results) != 1 {
			t.Errorf("report = %+v, want the stored run", got)
		}
	})

	t.Run("served from cache after prune", func(t *testing.T) {
		if _, err := store.Prune(context.Background(), 0); err != nil {
			t.Fatalf("Prune: %v", err)
		}

		rec := httptest.NewRecorder()
		handleRunByID(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/run-fetch", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want the cached report, body %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handleRunByID(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/run-gone", nil))
		wantErrorCode(t, rec, http.StatusNotFound, "NOT_FOUND")
	})

	t.Run("invalid characters", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handleRunByID(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/run%2Fgone", nil))
		wantErrorCode(t, rec, http.StatusBadRequest, "INVALID_ID")
	})

	t.Run("empty", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handleRunByID(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/", nil))
		wantErrorCode(t, rec, http.StatusBadRequest, "MISSING_ID")
	})
}
