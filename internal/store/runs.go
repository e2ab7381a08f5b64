package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/model"
)

// Runs persists run summaries in migrate_runs.
type Runs struct {
	db  *sql.DB
	now func() time.Time
}

// NewRuns returns a run store over db.
func NewRuns(db *sql.DB) *Runs {
	return &Runs{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Save inserts or replaces a run with its current summary.
func (r *Runs) Save(ctx context.Context, s model.RunSummary) error {
	summaryJSON, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "encode run summary")
	}
	now := r.now()
	created := s.StartedAt
	if created.IsZero() {
		created = now
	}
	var errMsg interface{}
	if s.Error != "" {
		errMsg = s.Error
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO migrate_runs
		(id, migration_id, operation, status, summary, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			summary = excluded.summary,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at`,
		s.RunID, s.MigrationID, s.Operation, s.Status, string(summaryJSON), errMsg, created.UTC(), now)
	if err != nil {
		return errors.Wrapf(err, "save run %s", s.RunID)
	}
	return nil
}

// UpdateStatus updates the status of a run.
func (r *Runs) UpdateStatus(ctx context.Context, runID, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE migrate_runs SET status = ?, summary = json_set(summary, '$.status', ?), updated_at = ?
		 WHERE id = ?`, status, status, r.now(), runID)
	if err != nil {
		return errors.Wrapf(err, "update run %s", runID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(errors.ErrNotFound, "run %s", runID)
	}
	return nil
}

// Get fetches one run.
func (r *Runs) Get(ctx context.Context, runID string) (model.RunSummary, error) {
	var summaryJSON string
	err := r.db.QueryRowContext(ctx, `SELECT summary FROM migrate_runs WHERE id = ?`, runID).Scan(&summaryJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RunSummary{}, errors.Wrapf(errors.ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return model.RunSummary{}, errors.Wrapf(err, "get run %s", runID)
	}
	return decodeSummary(summaryJSON)
}

// List returns the runs of a migration, newest first. An empty migrationID
// lists every run.
func (r *Runs) List(ctx context.Context, migrationID string, limit int) ([]model.RunSummary, error) {
	q := `SELECT summary FROM migrate_runs`
	var args []interface{}
	if migrationID != "" {
		q += ` WHERE migration_id = ?`
		args = append(args, migrationID)
	}
	q += ` ORDER BY created_at DESC, updated_at DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	var runs []model.RunSummary
	for rows.Next() {
		var summaryJSON string
		if err := rows.Scan(&summaryJSON); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		s, err := decodeSummary(summaryJSON)
		if err != nil {
			return nil, err
		}
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

// Last returns the most recent run of a migration, or nil.
func (r *Runs) Last(ctx context.Context, migrationID string) (*model.RunSummary, error) {
	runs, err := r.List(ctx, migrationID, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

func decodeSummary(raw string) (model.RunSummary, error) {
	var s model.RunSummary
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return s, errors.Wrap(err, "decode run summary")
	}
	return s, nil
}
