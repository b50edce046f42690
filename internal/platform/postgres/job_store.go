package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/talentforge/talentforge-api/internal/domain"
	"github.com/talentforge/talentforge-api/internal/platform/logger"
	"github.com/talentforge/talentforge-api/internal/store"
)

// jobColumns is the column list shared by every query that scans a full
// job row. Keep in sync with scanJob.
const jobColumns = `id, user_id, job_type, priority, status, progress_percentage,
	current_step, total_steps, input_data, output_data, error_message,
	retry_count, max_retries, scheduled_at, started_at, completed_at,
	created_at, updated_at`

// PostgresJobStore implements the store.JobStore interface using PostgreSQL.
type PostgresJobStore struct {
	db store.DBTX
}

// NewPostgresJobStore creates a new PostgresJobStore.
func NewPostgresJobStore(db store.DBTX) *PostgresJobStore {
	return &PostgresJobStore{db: db}
}

// WithTx returns a new JobStore bound to the provided transaction.
func (s *PostgresJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return &PostgresJobStore{db: tx}
}

// Create inserts a job in pending status.
func (s *PostgresJobStore) Create(ctx context.Context, job *domain.Job) error {
	log := logger.FromContext(ctx)

	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	inputData, err := json.Marshal(job.InputData)
	if err != nil {
		return fmt.Errorf("failed to marshal input data: %w", err)
	}

	query := `
		INSERT INTO job_queue (id, user_id, job_type, priority, status,
			progress_percentage, total_steps, input_data, retry_count,
			max_retries, scheduled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = s.db.ExecContext(ctx, query,
		job.ID,
		job.UserID,
		job.JobType,
		job.Priority,
		job.Status,
		job.ProgressPercentage,
		job.TotalSteps,
		inputData,
		job.RetryCount,
		job.MaxRetries,
		job.ScheduledAt,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create job",
			"job_id", job.ID,
			"job_type", job.JobType,
			"error", err)
		return MapError(err)
	}

	return nil
}

// ClaimNext atomically claims the highest-priority eligible pending job.
// The inner SELECT takes a row lock with SKIP LOCKED so concurrent
// claimers never block on, or receive, the same row.
func (s *PostgresJobStore) ClaimNext(ctx context.Context) (*domain.Job, error) {
	query := fmt.Sprintf(`
		UPDATE job_queue
		SET status = $1, started_at = NOW(), updated_at = NOW()
		WHERE id = (
			SELECT id
			FROM job_queue
			WHERE status = $2 AND scheduled_at <= NOW()
			ORDER BY priority DESC, scheduled_at ASC, created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s`, jobColumns)

	row := s.db.QueryRowContext(ctx, query, domain.JobStatusProcessing, domain.JobStatusPending)
	job, err := scanJob(row)
	if err != nil {
		if mapped := MapError(err); store.IsNotFoundError(mapped) {
			return nil, store.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to claim next job: %w", err)
	}

	return job, nil
}

// Update merges the permitted fields into the stored job. A status change
// is guarded in the WHERE clause by the set of statuses that may legally
// transition to the target, so an illegal transition never modifies the
// row even under concurrent writers.
func (s *PostgresJobStore) Update(
	ctx context.Context,
	jobID uuid.UUID,
	update store.JobUpdate,
) (*domain.Job, error) {
	log := logger.FromContext(ctx)

	set := []string{"updated_at = NOW()"}
	args := []any{}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if update.Status != nil {
		set = append(set, "status = "+next(*update.Status))
	}
	if update.ProgressPercentage != nil {
		if *update.ProgressPercentage < 0 || *update.ProgressPercentage > 100 {
			return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrInvalidProgress)
		}
		set = append(set, "progress_percentage = "+next(*update.ProgressPercentage))
	}
	if update.CurrentStep != nil {
		set = append(set, "current_step = NULLIF("+next(*update.CurrentStep)+", '')")
	}
	if update.OutputData != nil {
		outputData, err := json.Marshal(update.OutputData)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal output data: %w", err)
		}
		set = append(set, "output_data = "+next(outputData))
	}
	if update.ErrorMessage != nil {
		set = append(set, "error_message = NULLIF("+next(*update.ErrorMessage)+", '')")
	}
	if update.RetryCount != nil {
		set = append(set, "retry_count = "+next(*update.RetryCount))
	}
	if update.Priority != nil {
		if *update.Priority < domain.MinPriority || *update.Priority > domain.MaxPriority {
			return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrInvalidPriority)
		}
		set = append(set, "priority = "+next(*update.Priority))
	}
	if update.ScheduledAt != nil {
		set = append(set, "scheduled_at = "+next(*update.ScheduledAt))
	}
	if update.StartedAt != nil {
		set = append(set, "started_at = "+next(*update.StartedAt))
	}
	if update.CompletedAt != nil {
		set = append(set, "completed_at = "+next(*update.CompletedAt))
	}
	if update.ClearTimestamps {
		set = append(set, "started_at = NULL", "completed_at = NULL")
	}

	where := "id = " + next(jobID)
	if update.Status != nil {
		// Restrict to statuses allowed to move to the target status.
		preds := allowedPredecessors(*update.Status)
		if len(preds) == 0 {
			return nil, domain.ErrInvalidTransition
		}
		placeholders := make([]string, len(preds))
		for i, p := range preds {
			placeholders[i] = next(p)
		}
		where += " AND status IN (" + strings.Join(placeholders, ", ") + ")"
	}

	query := fmt.Sprintf(
		"UPDATE job_queue SET %s WHERE %s RETURNING %s",
		strings.Join(set, ", "), where, jobColumns,
	)

	row := s.db.QueryRowContext(ctx, query, args...)
	job, err := scanJob(row)
	if err == nil {
		return job, nil
	}

	if mapped := MapError(err); !store.IsNotFoundError(mapped) {
		log.Error("failed to update job", "job_id", jobID, "error", err)
		return nil, fmt.Errorf("failed to update job: %w", err)
	}

	// No row matched: either the job does not exist or the status guard
	// rejected the transition. Distinguish the two for the caller.
	var current domain.JobStatus
	checkErr := s.db.QueryRowContext(ctx,
		"SELECT status FROM job_queue WHERE id = $1", jobID).Scan(&current)
	if checkErr != nil {
		if mapped := MapError(checkErr); store.IsNotFoundError(mapped) {
			return nil, store.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to check job status: %w", checkErr)
	}

	log.Warn("rejected illegal job status transition",
		"job_id", jobID,
		"from", current,
		"to", *update.Status)
	return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current, *update.Status)
}

// GetForUser retrieves a job by ID scoped to its owner.
func (s *PostgresJobStore) GetForUser(ctx context.Context, jobID, userID uuid.UUID) (*domain.Job, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM job_queue WHERE id = $1 AND user_id = $2", jobColumns)

	job, err := scanJob(s.db.QueryRowContext(ctx, query, jobID, userID))
	if err != nil {
		if mapped := MapError(err); store.IsNotFoundError(mapped) {
			return nil, store.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// ListForUser retrieves the user's jobs matching the filters, newest first.
func (s *PostgresJobStore) ListForUser(
	ctx context.Context,
	userID uuid.UUID,
	filters store.JobFilters,
) ([]*domain.Job, error) {
	log := logger.FromContext(ctx)

	args := []any{userID}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	where := []string{"user_id = $1"}
	if filters.JobType != "" {
		where = append(where, "job_type = "+next(filters.JobType))
	}
	if filters.Status != "" {
		where = append(where, "status = "+next(filters.Status))
	}
	if !filters.DateFrom.IsZero() {
		where = append(where, "created_at >= "+next(filters.DateFrom))
	}
	if !filters.DateTo.IsZero() {
		where = append(where, "created_at <= "+next(filters.DateTo))
	}
	if filters.PriorityMin > 0 {
		where = append(where, "priority >= "+next(filters.PriorityMin))
	}
	if filters.PriorityMax > 0 {
		where = append(where, "priority <= "+next(filters.PriorityMax))
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(
		"SELECT %s FROM job_queue WHERE %s ORDER BY created_at DESC LIMIT %s OFFSET %s",
		jobColumns, strings.Join(where, " AND "), next(limit), next(filters.Offset),
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list jobs", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}

	return jobs, nil
}

// Delete removes a job unless it is currently processing. Step and log
// rows cascade via the schema's ON DELETE CASCADE constraints.
func (s *PostgresJobStore) Delete(ctx context.Context, jobID, userID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM job_queue WHERE id = $1 AND user_id = $2 AND status <> $3",
		jobID, userID, domain.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", MapError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Nothing deleted: report conflict for a processing job, not-found
	// otherwise.
	var status domain.JobStatus
	err = s.db.QueryRowContext(ctx,
		"SELECT status FROM job_queue WHERE id = $1 AND user_id = $2",
		jobID, userID).Scan(&status)
	if err != nil {
		if mapped := MapError(err); store.IsNotFoundError(mapped) {
			return store.ErrJobNotFound
		}
		return fmt.Errorf("failed to check job status: %w", err)
	}

	return fmt.Errorf("%w: job is processing", store.ErrConflict)
}

// ReleaseStale handles orphaned processing rows left behind by crashed
// workers. Jobs past the timeout are treated as one failed attempt: those
// with retry budget left go back to pending, the rest are failed.
func (s *PostgresJobStore) ReleaseStale(ctx context.Context, olderThan time.Duration) (int, error) {
	log := logger.FromContext(ctx)
	cutoff := time.Now().UTC().Add(-olderThan)

	failResult, err := s.db.ExecContext(ctx, `
		UPDATE job_queue
		SET status = $1, error_message = 'job processing timed out',
			completed_at = NOW(), updated_at = NOW()
		WHERE status = $2 AND started_at < $3 AND retry_count >= max_retries`,
		domain.JobStatusFailed, domain.JobStatusProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale jobs: %w", MapError(err))
	}
	failed, _ := failResult.RowsAffected()

	releaseResult, err := s.db.ExecContext(ctx, `
		UPDATE job_queue
		SET status = $1, retry_count = retry_count + 1,
			started_at = NULL, updated_at = NOW()
		WHERE status = $2 AND started_at < $3 AND retry_count < max_retries`,
		domain.JobStatusPending, domain.JobStatusProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to release stale jobs: %w", MapError(err))
	}
	released, _ := releaseResult.RowsAffected()

	if failed > 0 || released > 0 {
		log.Info("released stale processing jobs",
			"requeued", released,
			"failed", failed,
			"older_than", olderThan.String())
	}

	return int(released), nil
}

// allowedPredecessors returns the statuses that may legally transition to
// the given target status.
func allowedPredecessors(target domain.JobStatus) []domain.JobStatus {
	all := []domain.JobStatus{
		domain.JobStatusPending,
		domain.JobStatusProcessing,
		domain.JobStatusCompleted,
		domain.JobStatusFailed,
		domain.JobStatusCancelled,
	}

	var preds []domain.JobStatus
	for _, from := range all {
		if from.CanTransition(target) {
			preds = append(preds, from)
		}
	}
	return preds
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanJob.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanJob reads one full job row in jobColumns order.
func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job          domain.Job
		currentStep  sql.NullString
		errorMessage sql.NullString
		inputData    []byte
		outputData   []byte
		startedAt    sql.NullTime
		completedAt  sql.NullTime
	)

	err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.JobType,
		&job.Priority,
		&job.Status,
		&job.ProgressPercentage,
		&currentStep,
		&job.TotalSteps,
		&inputData,
		&outputData,
		&errorMessage,
		&job.RetryCount,
		&job.MaxRetries,
		&job.ScheduledAt,
		&startedAt,
		&completedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.CurrentStep = currentStep.String
	job.ErrorMessage = errorMessage.String
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}

	if len(inputData) > 0 {
		if err := json.Unmarshal(inputData, &job.InputData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal input data: %w", err)
		}
	}
	if len(outputData) > 0 {
		if err := json.Unmarshal(outputData, &job.OutputData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal output data: %w", err)
		}
	}

	return &job, nil
}
