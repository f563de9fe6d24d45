package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ALT-F4-LLC/lp2jira/internal/export"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("not found")

// Run statuses.
const (
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
)

// Run is one invocation of the migrator.
type Run struct {
	ID         string     `json:"id"`
	Mode       string     `json:"mode"`
	Status     string     `json:"status"`
	Summary    string     `json:"summary,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Items      int        `json:"items"`
	Failed     int        `json:"failed"`
}

// Item is the recorded outcome of one entity in a run.
type Item struct {
	Phase      string    `json:"phase"`
	EntityID   string    `json:"entity_id"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// scanner abstracts *sql.Row and *sql.Rows for scanning a single row.
type scanner interface {
	Scan(dest ...any) error
}

// StartRun inserts a new running run and returns it.
func StartRun(db *sql.DB, mode string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Mode:      mode,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC().Truncate(time.Second),
	}
	_, err := db.Exec(
		`INSERT INTO runs (id, mode, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Mode, run.Status, run.StartedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting run: %w", err)
	}
	return run, nil
}

// FinishRun sets the final status and summary of a run.
func FinishRun(db *sql.DB, id, status, summary string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := db.Exec(
		`UPDATE runs SET status = ?, summary = ?, finished_at = ? WHERE id = ?`,
		status, summary, now, id,
	)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const runColumns = `
	r.id, r.mode, r.status, COALESCE(r.summary, ''), r.started_at, r.finished_at,
	(SELECT COUNT(*) FROM run_items i WHERE i.run_id = r.id),
	(SELECT COUNT(*) FROM run_items i WHERE i.run_id = r.id AND i.outcome = 'failed')`

func scanRun(s scanner) (*Run, error) {
	var (
		run        Run
		startedAt  string
		finishedAt sql.NullString
	)
	if err := s.Scan(&run.ID, &run.Mode, &run.Status, &run.Summary, &startedAt, &finishedAt, &run.Items, &run.Failed); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, startedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	run.StartedAt = t
	if finishedAt.Valid {
		f, err := time.Parse(time.RFC3339, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing finished_at: %w", err)
		}
		run.FinishedAt = &f
	}
	return &run, nil
}

// GetRun returns the run whose id is id or starts with id.
func GetRun(db *sql.DB, id string) (*Run, error) {
	rows, err := db.Query(`SELECT `+runColumns+` FROM runs r WHERE r.id LIKE ? || '%' ORDER BY r.started_at DESC LIMIT 2`, id)
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	defer rows.Close()

	var found []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func ListRuns(db *sql.DB, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs r ORDER BY r.started_at DESC, r.rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunItems lists the items of a run in recording order. An empty outcome
// lists every item.
func RunItems(db *sql.DB, runID, outcome string) ([]Item, error) {
	rows, err := db.Query(
		`SELECT phase, entity_id, outcome, COALESCE(reason, ''), recorded_at
		 FROM run_items WHERE run_id = ? AND (? = '' OR outcome = ?) ORDER BY id`,
		runID, outcome, outcome,
	)
	if err != nil {
		return nil, fmt.Errorf("listing run items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			it         Item
			recordedAt string
		)
		if err := rows.Scan(&it.Phase, &it.EntityID, &it.Outcome, &it.Reason, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning run item: %w", err)
		}
		t, err := time.Parse(time.RFC3339, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing recorded_at: %w", err)
		}
		it.RecordedAt = t
		items = append(items, it)
	}
	return items, rows.Err()
}

// Recorder writes item outcomes of one run to the ledger.
type Recorder struct {
	db    *sql.DB
	runID string
}

var _ export.Recorder = (*Recorder)(nil)

// NewRecorder returns a recorder for run runID.
func NewRecorder(db *sql.DB, runID string) *Recorder {
	return &Recorder{db: db, runID: runID}
}

// Record stores the outcome of one entity.
func (r *Recorder) Record(ctx context.Context, phase, entityID string, outcome export.Outcome, reason string) error {
	var reasonVal any
	if reason != "" {
		reasonVal = reason
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO run_items (run_id, phase, entity_id, outcome, reason, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.runID, phase, entityID, string(outcome), reasonVal, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording %s %s: %w", phase, entityID, err)
	}
	return nil
}
