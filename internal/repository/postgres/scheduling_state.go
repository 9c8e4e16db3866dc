package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/fieldops/replanner/internal/entity"
	"github.com/fieldops/replanner/internal/repository"
)

// JobSchedulingStateRepository implements repository.JobSchedulingStateRepository
// for PostgreSQL.
type JobSchedulingStateRepository struct {
	db sqlExecutor
}

// NewJobSchedulingStateRepository creates a new JobSchedulingStateRepository.
func NewJobSchedulingStateRepository(db sqlExecutor) *JobSchedulingStateRepository {
	return &JobSchedulingStateRepository{db: db}
}

// GetByJobID retrieves the attempt history for a job.
func (r *JobSchedulingStateRepository) GetByJobID(ctx context.Context, jobID entity.JobID) (*entity.JobSchedulingState, error) {
	state := &entity.JobSchedulingState{JobID: jobID}
	var attemptsJSON []byte
	var status string

	query := `SELECT attempts, last_status FROM job_scheduling_states WHERE job_id = $1`
	err := r.db.QueryRowContext(ctx, query, jobID).Scan(&attemptsJSON, &status)
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "JobSchedulingState", ResourceID: jobID.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job scheduling state: %w", err)
	}

	state.LastStatus = entity.SchedulingStatus(status)
	if len(attemptsJSON) > 0 {
		if err := json.Unmarshal(attemptsJSON, &state.Attempts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attempts: %w", err)
		}
	}
	return state, nil
}

// Upsert persists the latest attempt history and status for a job.
func (r *JobSchedulingStateRepository) Upsert(ctx context.Context, state *entity.JobSchedulingState) error {
	attemptsJSON, err := json.Marshal(state.Attempts)
	if err != nil {
		return fmt.Errorf("failed to marshal attempts: %w", err)
	}

	query := `
		INSERT INTO job_scheduling_states (job_id, attempts, last_status)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id) DO UPDATE
		SET attempts = EXCLUDED.attempts, last_status = EXCLUDED.last_status
	`
	_, err = r.db.ExecContext(ctx, query, state.JobID, attemptsJSON, string(state.LastStatus))
	if err != nil {
		return fmt.Errorf("failed to upsert job scheduling state: %w", err)
	}
	return nil
}

// Count returns the number of jobs with recorded scheduling attempts.
func (r *JobSchedulingStateRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM job_scheduling_states`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count job scheduling states: %w", err)
	}
	return count, nil
}
