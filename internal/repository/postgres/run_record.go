package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fieldops/replanner/internal/entity"
	"github.com/fieldops/replanner/internal/repository"
)

// RunRecordRepository implements repository.RunRecordRepository for PostgreSQL.
type RunRecordRepository struct {
	db sqlExecutor
}

// NewRunRecordRepository creates a new RunRecordRepository.
func NewRunRecordRepository(db sqlExecutor) *RunRecordRepository {
	return &RunRecordRepository{db: db}
}

const runRecordColumns = `id, status, started_at, completed_at, passes_executed, jobs_scheduled, jobs_pending_review, error_message`

// Create inserts a new run record, typically right after NewRunRecord.
func (r *RunRecordRepository) Create(ctx context.Context, record *entity.RunRecord) error {
	query := `
		INSERT INTO run_records (` + runRecordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		record.ID, string(record.Status), record.StartedAt, record.CompletedAt,
		record.PassesExecuted, record.JobsScheduled, record.JobsPendingReview, record.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to create run record: %w", err)
	}
	return nil
}

// Update persists the latest state of a run record (called after
// MarkCompleted/MarkFailed or to bump PassesExecuted mid-run).
func (r *RunRecordRepository) Update(ctx context.Context, record *entity.RunRecord) error {
	query := `
		UPDATE run_records
		SET status = $2, completed_at = $3, passes_executed = $4,
		    jobs_scheduled = $5, jobs_pending_review = $6, error_message = $7
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		record.ID, string(record.Status), record.CompletedAt, record.PassesExecuted,
		record.JobsScheduled, record.JobsPendingReview, record.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to update run record: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &repository.NotFoundError{ResourceType: "RunRecord", ResourceID: record.ID.String()}
	}
	return nil
}

func scanRunRecord(scanner interface {
	Scan(dest ...interface{}) error
}) (*entity.RunRecord, error) {
	record := &entity.RunRecord{}
	var status string
	err := scanner.Scan(
		&record.ID, &status, &record.StartedAt, &record.CompletedAt,
		&record.PassesExecuted, &record.JobsScheduled, &record.JobsPendingReview, &record.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	record.Status = entity.RunStatus(status)
	return record, nil
}

// GetByID retrieves a single run record.
func (r *RunRecordRepository) GetByID(ctx context.Context, id entity.RunID) (*entity.RunRecord, error) {
	query := `SELECT ` + runRecordColumns + ` FROM run_records WHERE id = $1`
	record, err := scanRunRecord(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "RunRecord", ResourceID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run record: %w", err)
	}
	return record, nil
}

// ListRecent returns the most recently started run records, newest first.
func (r *RunRecordRepository) ListRecent(ctx context.Context, limit int) ([]*entity.RunRecord, error) {
	query := `SELECT ` + runRecordColumns + ` FROM run_records ORDER BY started_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent run records: %w", err)
	}
	defer rows.Close()

	var records []*entity.RunRecord
	for rows.Next() {
		record, err := scanRunRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run record row: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Count returns the total number of run records.
func (r *RunRecordRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM run_records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count run records: %w", err)
	}
	return count, nil
}
