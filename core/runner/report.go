package runner

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/zotero/translate/core/testcase"
	"github.com/zotero/translate/core/translator"
	"github.com/zotero/translate/internal/logging"
)

// ReportVersion is the report format version.
const ReportVersion = "1.0.0"

// StatusNoTests marks a report for a translator with no recorded tests.
const StatusNoTests Status = "no-tests"

// Report is the output of running a translator's recorded tests.
type Report struct {
	ReportVersion  string       `json:"report_version"`
	RunID          string       `json:"run_id"`
	CreatedAt      string       `json:"created_at"`
	TranslatorID   string       `json:"translator_id"`
	Translator     string       `json:"translator"`
	TranslatorHash string       `json:"translator_hash"`
	Status         Status       `json:"status"`
	Results        []TestResult `json:"results"`
}

// TestResult is the result of a single test. Digest identifies the
// expected test case by its canonical-form BLAKE3 digest, so history
// rows stay matchable to fixtures even after a translator is edited.
type TestResult struct {
	Index      int            `json:"index"`
	Type       string         `json:"type"`
	Digest     string         `json:"digest,omitempty"`
	Status     Status         `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	Diff       string         `json:"diff,omitempty"`
	Expected   *testcase.Test `json:"expected,omitempty"`
	Updated    *testcase.Test `json:"updated,omitempty"`
	DurationMS int64          `json:"duration_ms"`
}

// Progress is one per-test notification emitted while RunAll works
// through a translator's recorded tests.
type Progress struct {
	RunID      string
	Translator *translator.Translator
	Index      int
	Total      int
	Result     TestResult
}

// ToJSON serializes the report to JSON.
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Passed reports whether every test succeeded. A report with no tests
// did not fail, but it did not pass either.
func (r *Report) Passed() bool {
	return r.Status == StatusSuccess
}

// RunAll executes every recorded test of the translator sequentially
// and assembles a report. A fixture block that cannot be parsed yields
// a no-tests report rather than an error: a broken fixture means there
// is nothing to run, not that the run itself faulted.
func (r *Runner) RunAll(ctx context.Context, tr *translator.Translator) *Report {
	runID := logging.GetRunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = logging.WithRunID(ctx, runID)
	}

	report := &Report{
		ReportVersion:  ReportVersion,
		RunID:          runID,
		CreatedAt:      time.Now().UTC().Format(time.RFC3339),
		TranslatorID:   tr.TranslatorID,
		Translator:     tr.Label,
		TranslatorHash: tr.Hash(),
	}

	tests, err := tr.TestsChecked()
	if err != nil {
		logging.Warn("fixture block unreadable", "run_id", runID, "translator_id", tr.TranslatorID, "error", err.Error())
	}
	if len(tests) == 0 {
		report.Status = StatusNoTests
		return report
	}

	status := StatusSuccess
	for i, test := range tests {
		started := time.Now()
		outcome := r.run(ctx, tr, test, i)
		elapsed := time.Since(started)

		result := TestResult{
			Index:      i,
			Type:       string(test.Type),
			Status:     outcome.Status,
			Reason:     outcome.Reason,
			Expected:   test,
			Updated:    outcome.UpdatedTest,
			DurationMS: elapsed.Milliseconds(),
		}
		result.Digest, _ = test.Digest()
		if outcome.Reason == ReasonDataMismatch && outcome.UpdatedTest != nil {
			// Diff comparison forms on both sides, so only real field
			// mismatches show up as changed lines.
			expected := test.WithObserved(test.DetectedItemType, normalizeItems(test.Items))
			result.Diff = expected.DiffWith(outcome.UpdatedTest)
		}
		if !outcome.Succeeded() {
			status = StatusFailure
		}
		report.Results = append(report.Results, result)
		if r.progress != nil {
			r.progress(Progress{RunID: runID, Translator: tr, Index: i, Total: len(tests), Result: result})
		}
	}
	report.Status = status
	return report
}
