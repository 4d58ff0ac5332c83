package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zotero/translate/core/errors"
	"github.com/zotero/translate/core/runner"
	"github.com/zotero/translate/core/testcase"
	"github.com/zotero/translate/core/translator"
	"github.com/zotero/translate/internal/cache"
	"github.com/zotero/translate/internal/server"
)

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// TranslatorInfo summarizes one loaded translator.
type TranslatorInfo struct {
	TranslatorID string   `json:"translator_id"`
	Label        string   `json:"label"`
	Creator      string   `json:"creator,omitempty"`
	Target       string   `json:"target,omitempty"`
	Priority     int      `json:"priority"`
	Kinds        []string `json:"kinds"`
	Hash         string   `json:"hash"`
	TestCount    int      `json:"test_count"`
	LastUpdated  string   `json:"last_updated,omitempty"`
}

// TestInfo summarizes one recorded test without its fixture payload.
type TestInfo struct {
	Index            int    `json:"index"`
	Type             string `json:"type"`
	URL              string `json:"url,omitempty"`
	DetectedItemType string `json:"detected_item_type,omitempty"`
	Items            int    `json:"items"`
	Multiple         bool   `json:"multiple,omitempty"`
	Defer            bool   `json:"defer,omitempty"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Uptime      string `json:"uptime"`
	Translators int    `json:"translators"`
	Clients     int    `json:"clients"`
}

var startTime = time.Now()

func handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"name":    "Translator Test API",
		"version": "0.1.0",
		"endpoints": []string{
			"GET /health",
			"GET /api/v1/translators",
			"GET /api/v1/translators/:id",
			"GET /api/v1/translators/:id/tests",
			"POST /api/v1/run",
			"GET /api/v1/jobs",
			"GET /api/v1/jobs/:id",
			"DELETE /api/v1/jobs/:id",
			"GET /api/v1/runs",
			"GET /api/v1/runs/:id",
			"WS /ws",
		},
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	translators := 0
	if reg, err := currentRegistry(); err == nil {
		translators = reg.Len()
	}
	clients := 0
	if GlobalHub != nil {
		clients = GlobalHub.ClientCount()
	}

	respond(w, http.StatusOK, HealthInfo{
		Status:      "healthy",
		Version:     "0.1.0",
		Uptime:      time.Since(startTime).String(),
		Translators: translators,
		Clients:     clients,
	})
}

// handleTranslators handles GET /api/v1/translators. The optional url
// query parameter restricts the list to web translators whose target
// pattern matches it, ordered by priority.
func handleTranslators(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}
	reg, err := currentRegistry()
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "NOT_READY", "Translator registry is not loaded")
		return
	}

	list := reg.All()
	if target := r.URL.Query().Get("url"); target != "" {
		list = reg.ForURL(target)
	}

	infos := make([]TranslatorInfo, 0, len(list))
	for _, tr := range list {
		infos = append(infos, translatorInfo(tr))
	}

	response := APIResponse{
		Success: true,
		Data:    infos,
		Meta: &APIMeta{
			Total:     len(infos),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleTranslatorByID handles GET /api/v1/translators/{id} and
// GET /api/v1/translators/{id}/tests.
func handleTranslatorByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/translators/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		respondError(w, http.StatusBadRequest, "MISSING_ID", "Translator ID is required")
		return
	}
	if !server.ValidateAlphanumeric(id) {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Translator ID has invalid characters")
		return
	}
	reg, err := currentRegistry()
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "NOT_READY", "Translator registry is not loaded")
		return
	}

	tr, err := reg.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Translator not found: "+id)
		return
	}

	switch sub {
	case "":
		respond(w, http.StatusOK, translatorInfo(tr))
	case "tests":
		listTranslatorTests(w, tr)
	default:
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
	}
}

func listTranslatorTests(w http.ResponseWriter, tr *translator.Translator) {
	tests, err := tr.TestsChecked()
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "INVALID_FIXTURES", "Fixture block unreadable: "+err.Error())
		return
	}

	infos := make([]TestInfo, 0, len(tests))
	for i, tc := range tests {
		infos = append(infos, testInfo(i, tc))
	}

	response := APIResponse{
		Success: true,
		Data:    infos,
		Meta: &APIMeta{
			Total:     len(infos),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func translatorInfo(tr *translator.Translator) TranslatorInfo {
	return TranslatorInfo{
		TranslatorID: tr.TranslatorID,
		Label:        tr.Label,
		Creator:      tr.Creator,
		Target:       tr.Target,
		Priority:     tr.Priority,
		Kinds:        tr.TranslatorType.Names(),
		Hash:         tr.Hash(),
		TestCount:    len(tr.Tests()),
		LastUpdated:  tr.LastUpdated,
	}
}

func testInfo(index int, tc *testcase.Test) TestInfo {
	info := TestInfo{
		Index:    index,
		Type:     string(tc.Type),
		Items:    tc.Items.Count(),
		Multiple: tc.Items.Multiple,
		Defer:    tc.Defer.Set,
	}
	if tc.Type == testcase.TypeWeb {
		info.URL = tc.Input.Text
	}
	if !tc.DetectedItemType.Absent() {
		info.DetectedItemType = tc.DetectedItemType.String()
	}
	return info
}

// handleRuns handles GET /api/v1/runs - list recorded runs, newest first.
func handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}
	if runHistory == nil {
		respondError(w, http.StatusServiceUnavailable, "HISTORY_DISABLED", "Run history is not configured")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := runHistory.List(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL", "Failed to list runs: "+err.Error())
		return
	}

	response := APIResponse{
		Success: true,
		Data:    entries,
		Meta: &APIMeta{
			Total:     len(entries),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// Stored reports never change once recorded, so they cache by run ID.
var reportCache = cache.NewLRU[string, *runner.Report](128, 0)

// handleRunByID handles GET /api/v1/runs/{id} - fetch one stored report.
func handleRunByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	if id == "" {
		respondError(w, http.StatusBadRequest, "MISSING_ID", "Run ID is required")
		return
	}
	if !server.ValidateAlphanumeric(id) {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Run ID has invalid characters")
		return
	}
	if runHistory == nil {
		respondError(w, http.StatusServiceUnavailable, "HISTORY_DISABLED", "Run history is not configured")
		return
	}

	if rep, ok := reportCache.Get(id); ok {
		respond(w, http.StatusOK, rep)
		return
	}

	rep, err := runHistory.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Run not found: "+id)
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL", "Failed to load run: "+err.Error())
		return
	}

	reportCache.Put(id, rep)
	respond(w, http.StatusOK, rep)
}

func respond(w http.ResponseWriter, status int, data any) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
