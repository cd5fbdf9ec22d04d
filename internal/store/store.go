// Package store keeps a SQLite ledger of batch conversion runs: one row per
// run and one row per converted document.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/FocuswithJustin/annotconv/core/errors"
	"github.com/FocuswithJustin/annotconv/core/ir"
	"github.com/FocuswithJustin/annotconv/core/sqlite"
	"github.com/FocuswithJustin/annotconv/internal/batch"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS results (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	seq          INTEGER NOT NULL,
	name         TEXT NOT NULL,
	document_id  TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	loss_class   TEXT NOT NULL DEFAULT '',
	fingerprint  TEXT NOT NULL DEFAULT '',
	output_hash  TEXT NOT NULL DEFAULT '',
	annotations  INTEGER NOT NULL DEFAULT 0,
	chains       INTEGER NOT NULL DEFAULT 0,
	mentions     INTEGER NOT NULL DEFAULT 0,
	started_at   TEXT NOT NULL DEFAULT '',
	completed_at TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, seq)
);
CREATE INDEX IF NOT EXISTS results_fingerprint ON results(fingerprint);
`

// fixed width so that stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is an open ledger.
type Store struct {
	db *sql.DB
}

// Run summarizes one recorded batch run.
type Run struct {
	ID        string
	CreatedAt time.Time
	Documents int
	Completed int
	Failed    int
	Cancelled int
}

// Entry is one recorded document result.
type Entry struct {
	RunID       string
	Name        string
	DocumentID  string
	Status      batch.Status
	Error       string
	LossClass   ir.LossClass
	Fingerprint string
	OutputHash  string
	Annotations int
	Chains      int
	Mentions    int
	StartedAt   time.Time
	CompletedAt time.Time
}

// Open opens or creates the ledger at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, errors.NewIO("open ledger", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.NewIO("create ledger schema", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends one result to runID, creating the run on first use.
func (s *Store) Record(ctx context.Context, runID string, res batch.Result) error {
	return s.RecordAll(ctx, runID, []batch.Result{res})
}

// RecordAll appends results to runID in a single transaction.
func (s *Store) RecordAll(ctx context.Context, runID string, results []batch.Result) error {
	if runID == "" {
		return errors.NewValidation("run_id", "run id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO runs (id, created_at) VALUES (?, ?)",
		runID, time.Now().UTC().Format(timeLayout)); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	var seq int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), -1) + 1 FROM results WHERE run_id = ?", runID).Scan(&seq); err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO results
		(run_id, seq, name, document_id, status, error, loss_class, fingerprint, output_hash,
		 annotations, chains, mentions, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, res := range results {
		var errText string
		if res.Err != nil {
			errText = res.Err.Error()
		}
		var loss string
		if res.Loss != nil {
			loss = string(res.Loss.LossClass)
		}
		if _, err := stmt.ExecContext(ctx,
			runID, seq, res.Name, res.DocumentID, string(res.Status), errText, loss,
			res.Fingerprint, res.OutputHash, res.Annotations, res.Chains, res.Mentions,
			formatTime(res.StartedAt), formatTime(res.CompletedAt)); err != nil {
			return fmt.Errorf("insert result %s: %w", res.Name, err)
		}
		seq++
	}
	return tx.Commit()
}

// Runs returns every run with per-status counts, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.created_at,
		       COUNT(x.seq),
		       COALESCE(SUM(x.status = 'completed'), 0),
		       COALESCE(SUM(x.status = 'failed'), 0),
		       COALESCE(SUM(x.status = 'cancelled'), 0)
		FROM runs r LEFT JOIN results x ON x.run_id = r.id
		GROUP BY r.id, r.created_at
		ORDER BY r.created_at DESC, r.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var created string
		if err := rows.Scan(&run.ID, &created, &run.Documents, &run.Completed, &run.Failed, &run.Cancelled); err != nil {
			return nil, err
		}
		run.CreatedAt = parseTime(created)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Results returns the recorded results of runID in recording order.
func (s *Store) Results(ctx context.Context, runID string) ([]Entry, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE id = ?", runID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, errors.NewNotFound("run", runID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, name, document_id, status, error, loss_class, fingerprint, output_hash,
		       annotations, chains, mentions, started_at, completed_at
		FROM results WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var status, loss, started, completed string
		if err := rows.Scan(&e.RunID, &e.Name, &e.DocumentID, &status, &e.Error, &loss,
			&e.Fingerprint, &e.OutputHash, &e.Annotations, &e.Chains, &e.Mentions,
			&started, &completed); err != nil {
			return nil, err
		}
		e.Status = batch.Status(status)
		e.LossClass = ir.LossClass(loss)
		e.StartedAt = parseTime(started)
		e.CompletedAt = parseTime(completed)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// FindFingerprint returns every recorded result whose document fingerprint
// equals fp, across all runs.
func (s *Store) FindFingerprint(ctx context.Context, fp string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, name, document_id, status
		FROM results WHERE fingerprint = ? ORDER BY run_id, seq`, fp)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e := Entry{Fingerprint: fp}
		var status string
		if err := rows.Scan(&e.RunID, &e.Name, &e.DocumentID, &status); err != nil {
			return nil, err
		}
		e.Status = batch.Status(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
