// Package history persists run reports in a local SQLite database so
// earlier runs stay inspectable after the process exits.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"

	"github.com/zotero/translate/core/errors"
	"github.com/zotero/translate/core/runner"
	"github.com/zotero/translate/core/sqlite"
)

// schema holds the full report as JSON alongside the columns listings
// and pruning query on, plus a per-test breakdown for result-level
// queries without decoding the report.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id               TEXT PRIMARY KEY,
		translator_id    TEXT NOT NULL,
		translator_label TEXT NOT NULL,
		translator_hash  TEXT NOT NULL,
		created_at       TEXT NOT NULL,
		status           TEXT NOT NULL,
		total            INTEGER NOT NULL,
		passed           INTEGER NOT NULL,
		failed           INTEGER NOT NULL,
		report_json      TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS runs_created ON runs(created_at, id)`,
	`CREATE TABLE IF NOT EXISTS run_results (
		run_id      TEXT NOT NULL,
		test_index  INTEGER NOT NULL,
		test_type   TEXT NOT NULL,
		test_digest TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL,
		reason      TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, test_index)
	)`,
}

// Entry is one recorded run as listings return it. The full report
// stays in the row and is only decoded by Get.
type Entry struct {
	RunID           string        `json:"run_id"`
	TranslatorID    string        `json:"translator_id"`
	TranslatorLabel string        `json:"translator_label"`
	TranslatorHash  string        `json:"translator_hash"`
	CreatedAt       string        `json:"created_at"`
	Status          runner.Status `json:"status"`
	Total           int           `json:"total"`
	Passed          int           `json:"passed"`
	Failed          int           `json:"failed"`
}

// Store is a handle to the history database.
type Store struct {
	db *sql.DB
}

// Open opens the history database at path, creating it and its schema
// as needed.
func Open(path string) (*Store, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, errors.NewIO("open history database", path, err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, errors.NewIO("configure history database", path, err)
	}
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, errors.NewIO("apply history schema", path, err)
		}
	}
	return &Store{db: db}, nil
}

// OpenReadOnly opens an existing history database for inspection
// without touching the schema. Inspection commands must not create an
// empty database as a side effect, so a missing file is an error here.
func OpenReadOnly(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.NewIO("open history database", path, err)
	}
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, errors.NewIO("open history database", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts a finished report. Run IDs are unique; recording the
// same run twice is an error.
func (s *Store) Record(ctx context.Context, rep *runner.Report) error {
	if rep == nil || rep.RunID == "" {
		return errors.NewValidation("report", "missing run ID")
	}
	payload, err := rep.ToJSON()
	if err != nil {
		return errors.Wrap(err, "encoding report")
	}

	total := len(rep.Results)
	passed := 0
	for _, res := range rep.Results {
		if res.Status == runner.StatusSuccess {
			passed++
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning history transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, translator_id, translator_label, translator_hash,
			created_at, status, total, passed, failed, report_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.RunID, rep.TranslatorID, rep.Translator, rep.TranslatorHash,
		rep.CreatedAt, string(rep.Status), total, passed, total-passed,
		string(payload))
	if err != nil {
		return errors.Wrapf(err, "recording run %s", rep.RunID)
	}

	for _, res := range rep.Results {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_results (run_id, test_index, test_type, test_digest, status, reason, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rep.RunID, res.Index, res.Type, res.Digest, string(res.Status), res.Reason, res.DurationMS)
		if err != nil {
			return errors.Wrapf(err, "recording result %d of run %s", res.Index, rep.RunID)
		}
	}

	return tx.Commit()
}

// List returns recorded runs, newest first. A non-positive limit
// returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, translator_id, translator_label, translator_hash,
			created_at, status, total, passed, failed
		FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "listing runs")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var status string
		if err := rows.Scan(&e.RunID, &e.TranslatorID, &e.TranslatorLabel,
			&e.TranslatorHash, &e.CreatedAt, &status, &e.Total, &e.Passed,
			&e.Failed); err != nil {
			return nil, errors.Wrap(err, "scanning run row")
		}
		e.Status = runner.Status(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get returns the full report recorded under runID.
func (s *Store) Get(ctx context.Context, runID string) (*runner.Report, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT report_json FROM runs WHERE id = ?`, runID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("run", runID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "loading run %s", runID)
	}
	var rep runner.Report
	if err := json.Unmarshal([]byte(payload), &rep); err != nil {
		return nil, errors.NewParse("report", runID, err.Error())
	}
	return &rep, nil
}

// Prune deletes all but the newest keep runs and reports how many were
// removed. Negative keep is treated as zero.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "beginning prune transaction")
	}
	defer tx.Rollback()

	// LIMIT -1 OFFSET n selects every run after the newest n.
	const doomed = `SELECT id FROM runs ORDER BY created_at DESC, id DESC LIMIT -1 OFFSET ?`

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM run_results WHERE run_id IN (`+doomed+`)`, keep); err != nil {
		return 0, errors.Wrap(err, "pruning run results")
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM runs WHERE id IN (`+doomed+`)`, keep)
	if err != nil {
		return 0, errors.Wrap(err, "pruning runs")
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting pruned runs")
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(removed), nil
}
