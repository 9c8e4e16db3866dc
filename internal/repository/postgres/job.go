package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldops/replanner/internal/entity"
	"github.com/fieldops/replanner/internal/repository"
)

// JobRepository implements repository.JobRepository for PostgreSQL.
type JobRepository struct {
	db sqlExecutor
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db sqlExecutor) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, order_id, service_id, duration_minutes, priority, status,
	assigned_technician_id, fixed_schedule_time, estimated_sched_time`

func scanJob(scanner interface {
	Scan(dest ...interface{}) error
}) (*entity.Job, error) {
	job := &entity.Job{}
	var status string
	err := scanner.Scan(
		&job.ID, &job.OrderID, &job.ServiceID, &job.DurationMinutes, &job.Priority,
		&status, &job.AssignedTechnicianID, &job.FixedScheduleTime, &job.EstimatedSchedTime,
	)
	if err != nil {
		return nil, err
	}
	job.Status = entity.JobStatus(status)
	return job, nil
}

// GetByID retrieves a single job.
func (r *JobRepository) GetByID(ctx context.Context, id entity.JobID) (*entity.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &repository.NotFoundError{ResourceType: "Job", ResourceID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListSchedulableForDate returns every job eligible to be placed on the
// given date: not already in a terminal pending_review state, and not
// fixed to a different day.
func (r *JobRepository) ListSchedulableForDate(ctx context.Context, date time.Time) ([]*entity.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status != 'pending_review'
		  AND (fixed_schedule_time IS NULL OR fixed_schedule_time::date = $1::date)
		  AND (estimated_sched_time IS NULL OR estimated_sched_time::date <= $1::date)
		ORDER BY priority DESC, id
	`
	return r.queryJobs(ctx, query, date)
}

// ListLockedForDate returns every job already committed to a
// technician's route on the given date (en_route, in_progress or
// fixed_time), which bounds technician availability rather than
// competing for a new slot.
func (r *JobRepository) ListLockedForDate(ctx context.Context, date time.Time) ([]*entity.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status IN ('en_route', 'in_progress', 'fixed_time')
		  AND assigned_technician_id IS NOT NULL
		  AND estimated_sched_time::date = $1::date
		ORDER BY estimated_sched_time
	`
	return r.queryJobs(ctx, query, date)
}

// ListFixedTime returns every fixed_time job regardless of date,
// independent of any per-date filter, so a fixed-time job scheduled
// days out is still visible for cross-day confirmation.
func (r *JobRepository) ListFixedTime(ctx context.Context) ([]*entity.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status = 'fixed_time' ORDER BY fixed_schedule_time`
	return r.queryJobs(ctx, query)
}

func (r *JobRepository) queryJobs(ctx context.Context, query string, args ...interface{}) ([]*entity.Job, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*entity.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateSchedule commits a job to a technician at a scheduled time.
func (r *JobRepository) UpdateSchedule(ctx context.Context, jobID entity.JobID, technicianID entity.TechnicianID, scheduledTime time.Time) error {
	query := `
		UPDATE jobs
		SET assigned_technician_id = $2, estimated_sched_time = $3, status = 'queued'
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, jobID, technicianID, scheduledTime)
	if err != nil {
		return fmt.Errorf("failed to update job schedule: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &repository.NotFoundError{ResourceType: "Job", ResourceID: jobID.String()}
	}
	return nil
}

// MarkPendingReview records that a job could not be placed and is
// withheld from all further automatic replanning.
func (r *JobRepository) MarkPendingReview(ctx context.Context, jobID entity.JobID, reason entity.FailureReason) error {
	query := `
		UPDATE jobs
		SET status = 'pending_review', pending_review_reason = $2
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, jobID, string(reason))
	if err != nil {
		return fmt.Errorf("failed to mark job pending review: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &repository.NotFoundError{ResourceType: "Job", ResourceID: jobID.String()}
	}
	return nil
}

// Count returns the total number of jobs on file.
func (r *JobRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return count, nil
}
