package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/hubsync/internal/models"
	"github.com/desertthunder/hubsync/internal/shared"
)

const runColumns = `id, sequence, status, dry_run, source_count, destination_count,
	created_count, updated_count, skipped_count, failed_count, error_message, started_at, finished_at`

// SyncRunRepository persists [models.SyncRun] history and per-record outcomes.
type SyncRunRepository struct {
	db *sql.DB
}

// NewSyncRunRepository creates a new SyncRunRepository with the given database connection
func NewSyncRunRepository(db *sql.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// Create inserts a run with the next sequence number, generating an ID when the run has none.
func (r *SyncRunRepository) Create(ctx context.Context, run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(ctx, r.db, "sync_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	if run.ID == "" {
		run.ID = shared.GenerateID()
	}
	run.Sequence = sequence

	query := `INSERT INTO sync_runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.Sequence,
		run.Status,
		run.DryRun,
		run.SourceCount,
		run.DestinationCount,
		run.Result.Created,
		run.Result.Updated,
		run.Result.Skipped,
		run.Result.Failed,
		nullString(run.ErrorMessage),
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}

	return nil
}

// Update writes the status, counters and finish time of an existing run.
func (r *SyncRunRepository) Update(ctx context.Context, run *models.SyncRun) error {
	return r.update(ctx, r.db, run)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *SyncRunRepository) update(ctx context.Context, db execer, run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE sync_runs
		SET status = ?, source_count = ?, destination_count = ?, created_count = ?, updated_count = ?,
			skipped_count = ?, failed_count = ?, error_message = ?, finished_at = ?
		WHERE id = ?
	`

	result, err := db.ExecContext(ctx, query,
		run.Status,
		run.SourceCount,
		run.DestinationCount,
		run.Result.Created,
		run.Result.Updated,
		run.Result.Skipped,
		run.Result.Failed,
		nullString(run.ErrorMessage),
		run.FinishedAt,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update sync run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, run.ID)
	}

	return nil
}

// SaveOutcomes replaces the stored outcomes of a run.
func (r *SyncRunRepository) SaveOutcomes(ctx context.Context, runID string, outcomes []models.RecordOutcome) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := saveOutcomes(ctx, tx, runID, outcomes); err != nil {
		return err
	}
	return tx.Commit()
}

func saveOutcomes(ctx context.Context, tx *sql.Tx, runID string, outcomes []models.RecordOutcome) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM sync_outcomes WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to clear outcomes: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sync_outcomes (run_id, position, source_id, email, action, destination_id, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare outcome insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range outcomes {
		_, err := stmt.ExecContext(ctx, runID, i, o.SourceID, nullString(o.Email), o.Action,
			nullString(o.DestinationID), nullString(o.Error))
		if err != nil {
			return fmt.Errorf("failed to insert outcome %d: %w", i, err)
		}
	}
	return nil
}

// StartRun records a new run.
func (r *SyncRunRepository) StartRun(ctx context.Context, run *models.SyncRun) error {
	return r.Create(ctx, run)
}

// FinishRun stores the final state and outcomes of a run in one transaction.
// A run that was never started is created first.
func (r *SyncRunRepository) FinishRun(ctx context.Context, run *models.SyncRun) error {
	if run.Sequence == 0 {
		if err := r.Create(ctx, run); err != nil {
			return err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.update(ctx, tx, run); err != nil {
		return err
	}
	if err := saveOutcomes(ctx, tx, run.ID, run.Result.Outcomes); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// Get retrieves a run by ID, without outcomes.
func (r *SyncRunRepository) Get(ctx context.Context, id string) (*models.SyncRun, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM sync_runs WHERE id = ?`, id)
	return r.scanOne(row, id)
}

// GetBySequence retrieves a run by its sequence number, without outcomes.
func (r *SyncRunRepository) GetBySequence(ctx context.Context, sequence int) (*models.SyncRun, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM sync_runs WHERE sequence = ?`, sequence)
	return r.scanOne(row, fmt.Sprintf("#%d", sequence))
}

// Outcomes returns the stored outcomes of a run in reconciliation order.
func (r *SyncRunRepository) Outcomes(ctx context.Context, runID string) ([]models.RecordOutcome, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT source_id, email, action, destination_id, error_message
		FROM sync_outcomes
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []models.RecordOutcome
	for rows.Next() {
		var o models.RecordOutcome
		var email, destID, errMsg sql.NullString
		if err := rows.Scan(&o.SourceID, &email, &o.Action, &destID, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.Email, o.DestinationID, o.Error = email.String, destID.String, errMsg.String
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcomes: %w", err)
	}

	return outcomes, nil
}

// ListFilter narrows [SyncRunRepository.List].
type ListFilter struct {
	Status models.RunStatus // empty for any
	DryRun *bool            // nil for any
	Limit  int              // 0 for no limit
}

// List retrieves runs newest first.
func (r *SyncRunRepository) List(ctx context.Context, filter ListFilter) ([]*models.SyncRun, error) {
	var where []string
	var args []any

	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.DryRun != nil {
		where = append(where, "dry_run = ?")
		args = append(args, *filter.DryRun)
	}

	query := `SELECT ` + runColumns + ` FROM sync_runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY sequence DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync runs: %w", err)
	}

	return runs, nil
}

func (r *SyncRunRepository) scanOne(row *sql.Row, ref string) (*models.SyncRun, error) {
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync run: %w", err)
	}
	return run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*models.SyncRun, error) {
	var run models.SyncRun
	var errMsg sql.NullString
	var finishedAt sql.NullTime

	err := s.Scan(
		&run.ID,
		&run.Sequence,
		&run.Status,
		&run.DryRun,
		&run.SourceCount,
		&run.DestinationCount,
		&run.Result.Created,
		&run.Result.Updated,
		&run.Result.Skipped,
		&run.Result.Failed,
		&errMsg,
		&run.StartedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	run.ErrorMessage = errMsg.String
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
