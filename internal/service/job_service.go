package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/talentforge/talentforge-api/internal/domain"
	"github.com/talentforge/talentforge-api/internal/store"
	"github.com/talentforge/talentforge-api/internal/task"
)

// recentJobsLimit caps the recent jobs section of the dashboard.
const recentJobsLimit = 5

// CreateJobParams are the caller-supplied fields of a new job.
// Zero values fall back to the domain defaults.
type CreateJobParams struct {
	JobType     domain.JobType
	Priority    int
	InputData   map[string]any
	MaxRetries  *int
	ScheduledAt time.Time
}

// UpdateJobParams are the metadata fields a user may change after
// creation. Only pending jobs can be updated.
type UpdateJobParams struct {
	Priority    *int
	ScheduledAt *time.Time
}

// RetryParams tune a manual retry of a failed or cancelled job.
type RetryParams struct {
	// ResetRetryCount starts the retry budget over instead of resuming
	// with the attempts already consumed.
	ResetRetryCount bool
	// NewPriority optionally reprioritizes the retried job.
	NewPriority *int
	// ScheduledAt optionally delays the retried job.
	ScheduledAt *time.Time
}

// JobDetails is a job with its full pipeline and log history.
type JobDetails struct {
	Job   *domain.Job
	Steps []*domain.Step
	Logs  []*domain.LogEntry
}

// BulkItemResult is the per-entry outcome of a bulk create. Exactly one
// of Job and Err is set.
type BulkItemResult struct {
	Index int
	Job   *domain.Job
	Err   error
}

// JobService provides job queue operations scoped to the calling user.
type JobService interface {
	// CreateJob validates and enqueues a new job with its pipeline steps.
	CreateJob(ctx context.Context, userID uuid.UUID, params CreateJobParams) (*domain.Job, error)

	// EnqueueJob persists an already-built job with its steps. Used by
	// CreateJob and by the bulk pipeline for child jobs.
	EnqueueJob(ctx context.Context, job *domain.Job) error

	// GetJob returns the job with its steps and log history.
	GetJob(ctx context.Context, userID, jobID uuid.UUID) (*JobDetails, error)

	// ListJobs returns the user's jobs, newest first, honoring filters.
	ListJobs(ctx context.Context, userID uuid.UUID, filters store.JobFilters) ([]*domain.Job, error)

	// UpdateJob changes a pending job's scheduling metadata.
	UpdateJob(ctx context.Context, userID, jobID uuid.UUID, params UpdateJobParams) (*domain.Job, error)

	// DeleteJob removes a job that is not currently processing.
	DeleteJob(ctx context.Context, userID, jobID uuid.UUID) error

	// CancelJob cancels a pending or processing job.
	CancelJob(ctx context.Context, userID, jobID uuid.UUID, reason string) (*domain.Job, error)

	// RetryJob requeues a failed or cancelled job with reset steps.
	RetryJob(ctx context.Context, userID, jobID uuid.UUID, params RetryParams) (*domain.Job, error)

	// CreateBulk enqueues up to task.MaxBulkJobs jobs, reporting success
	// or failure per entry.
	CreateBulk(ctx context.Context, userID uuid.UUID, batch []CreateJobParams) ([]BulkItemResult, error)

	// DashboardStats aggregates the user's queue for the dashboard.
	DashboardStats(ctx context.Context, userID uuid.UUID) (*domain.DashboardStats, error)
}

// jobService implements JobService on the store interfaces.
type jobService struct {
	db     *sql.DB
	jobs   store.JobStore
	steps  store.StepStore
	logs   store.JobLogStore
	stats  store.StatsStore
	logger *slog.Logger
}

// Compile-time check: the service feeds the bulk pipeline's child jobs.
var _ task.JobCreator = (JobService)(nil)

// NewJobService creates a JobService.
func NewJobService(
	db *sql.DB,
	jobs store.JobStore,
	steps store.StepStore,
	logs store.JobLogStore,
	stats store.StatsStore,
	logger *slog.Logger,
) (JobService, error) {
	if jobs == nil || steps == nil || logs == nil || stats == nil {
		return nil, &JobServiceError{
			Operation: "create_service",
			Message:   "store dependencies cannot be nil",
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &jobService{
		db:     db,
		jobs:   jobs,
		steps:  steps,
		logs:   logs,
		stats:  stats,
		logger: logger.With("component", "job_service"),
	}, nil
}

// inTransaction runs fn inside a database transaction. With no database
// handle (in-memory stores in tests) fn runs directly.
func (s *jobService) inTransaction(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	if s.db == nil {
		return fn(ctx, nil)
	}
	return store.RunInTransaction(ctx, s.db, fn)
}

// txStores resolves the stores for the given transaction.
func (s *jobService) txStores(tx *sql.Tx) (store.JobStore, store.StepStore, store.JobLogStore) {
	if tx == nil {
		return s.jobs, s.steps, s.logs
	}
	return s.jobs.WithTx(tx), s.steps.WithTx(tx), s.logs.WithTx(tx)
}

// CreateJob validates and enqueues a new job with its pipeline steps.
func (s *jobService) CreateJob(
	ctx context.Context,
	userID uuid.UUID,
	params CreateJobParams,
) (*domain.Job, error) {
	maxRetries := domain.DefaultMaxRetries
	if params.MaxRetries != nil {
		maxRetries = *params.MaxRetries
	}

	job, err := domain.NewJob(
		userID, params.JobType, params.Priority,
		params.InputData, maxRetries, params.ScheduledAt)
	if err != nil {
		return nil, newJobServiceError("create_job", "invalid job parameters", err)
	}

	if err := s.EnqueueJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// EnqueueJob persists the job, its step rows, and a creation log entry
// in one transaction.
func (s *jobService) EnqueueJob(ctx context.Context, job *domain.Job) error {
	err := s.inTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		jobs, steps, logs := s.txStores(tx)

		if err := jobs.Create(ctx, job); err != nil {
			return newJobServiceError("create_job", "failed to save job", err)
		}
		if err := steps.CreateForJob(ctx, domain.NewStepsForJob(job.ID, job.JobType)); err != nil {
			return newJobServiceError("create_job", "failed to save job steps", err)
		}
		entry := domain.NewLogEntry(job.ID, domain.LogLevelInfo, "job created", map[string]any{
			"job_type": string(job.JobType),
			"priority": job.Priority,
		})
		if err := logs.Append(ctx, entry); err != nil {
			return newJobServiceError("create_job", "failed to record job creation", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to enqueue job",
			"job_id", job.ID,
			"job_type", job.JobType,
			"user_id", job.UserID,
			"error", err)
		return err
	}

	s.logger.Info("job enqueued",
		"job_id", job.ID,
		"job_type", job.JobType,
		"user_id", job.UserID,
		"priority", job.Priority,
		"total_steps", job.TotalSteps)
	return nil
}

// GetJob returns the job with its steps and log history.
func (s *jobService) GetJob(ctx context.Context, userID, jobID uuid.UUID) (*JobDetails, error) {
	job, err := s.jobs.GetForUser(ctx, jobID, userID)
	if err != nil {
		return nil, s.mapStoreError("get_job", "failed to retrieve job", err)
	}

	steps, err := s.steps.ListForJob(ctx, jobID)
	if err != nil {
		return nil, newJobServiceError("get_job", "failed to retrieve job steps", err)
	}

	logs, err := s.logs.ListForJob(ctx, jobID)
	if err != nil {
		return nil, newJobServiceError("get_job", "failed to retrieve job logs", err)
	}

	return &JobDetails{Job: job, Steps: steps, Logs: logs}, nil
}

// ListJobs returns the user's jobs, newest first, honoring filters.
func (s *jobService) ListJobs(
	ctx context.Context,
	userID uuid.UUID,
	filters store.JobFilters,
) ([]*domain.Job, error) {
	jobs, err := s.jobs.ListForUser(ctx, userID, filters)
	if err != nil {
		return nil, newJobServiceError("list_jobs", "failed to list jobs", err)
	}
	return jobs, nil
}

// UpdateJob changes a pending job's scheduling metadata.
func (s *jobService) UpdateJob(
	ctx context.Context,
	userID, jobID uuid.UUID,
	params UpdateJobParams,
) (*domain.Job, error) {
	job, err := s.jobs.GetForUser(ctx, jobID, userID)
	if err != nil {
		return nil, s.mapStoreError("update_job", "failed to retrieve job", err)
	}
	if job.Status != domain.JobStatusPending {
		return nil, ErrInvalidJobState
	}
	if params.Priority == nil && params.ScheduledAt == nil {
		return job, nil
	}

	updated, err := s.jobs.Update(ctx, jobID, store.JobUpdate{
		Priority:    params.Priority,
		ScheduledAt: params.ScheduledAt,
	})
	if err != nil {
		return nil, s.mapStoreError("update_job", "failed to update job", err)
	}

	s.logger.Info("job updated",
		"job_id", jobID,
		"user_id", userID,
		"priority", updated.Priority,
		"scheduled_at", updated.ScheduledAt)
	return updated, nil
}

// DeleteJob removes a job that is not currently processing.
func (s *jobService) DeleteJob(ctx context.Context, userID, jobID uuid.UUID) error {
	if err := s.jobs.Delete(ctx, jobID, userID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return ErrJobProcessing
		}
		return s.mapStoreError("delete_job", "failed to delete job", err)
	}

	s.logger.Info("job deleted", "job_id", jobID, "user_id", userID)
	return nil
}

// CancelJob cancels a pending or processing job. A processing job stops
// at its next step boundary; its current step is allowed to finish.
func (s *jobService) CancelJob(
	ctx context.Context,
	userID, jobID uuid.UUID,
	reason string,
) (*domain.Job, error) {
	if _, err := s.jobs.GetForUser(ctx, jobID, userID); err != nil {
		return nil, s.mapStoreError("cancel_job", "failed to retrieve job", err)
	}

	message := reason
	if message == "" {
		message = "cancelled by user"
	}

	var cancelled *domain.Job
	err := s.inTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		jobs, _, logs := s.txStores(tx)

		status := domain.JobStatusCancelled
		completedAt := time.Now().UTC()
		job, err := jobs.Update(ctx, jobID, store.JobUpdate{
			Status:       &status,
			ErrorMessage: &message,
			CompletedAt:  &completedAt,
		})
		if err != nil {
			return s.mapStoreError("cancel_job", "failed to cancel job", err)
		}
		cancelled = job

		entry := domain.NewLogEntry(jobID, domain.LogLevelInfo, "job cancelled",
			map[string]any{"reason": message})
		if err := logs.Append(ctx, entry); err != nil {
			return newJobServiceError("cancel_job", "failed to record cancellation", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("job cancelled", "job_id", jobID, "user_id", userID, "reason", message)
	return cancelled, nil
}

// RetryJob requeues a failed or cancelled job with its pipeline reset.
func (s *jobService) RetryJob(
	ctx context.Context,
	userID, jobID uuid.UUID,
	params RetryParams,
) (*domain.Job, error) {
	job, err := s.jobs.GetForUser(ctx, jobID, userID)
	if err != nil {
		return nil, s.mapStoreError("retry_job", "failed to retrieve job", err)
	}

	var retried *domain.Job
	err = s.inTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		jobs, steps, logs := s.txStores(tx)

		status := domain.JobStatusPending
		progress := 0
		currentStep := ""
		errorMessage := ""
		update := store.JobUpdate{
			Status:             &status,
			ProgressPercentage: &progress,
			CurrentStep:        &currentStep,
			ErrorMessage:       &errorMessage,
			Priority:           params.NewPriority,
			ScheduledAt:        params.ScheduledAt,
			ClearTimestamps:    true,
		}
		if params.ResetRetryCount {
			zero := 0
			update.RetryCount = &zero
		}

		updated, err := jobs.Update(ctx, jobID, update)
		if err != nil {
			return s.mapStoreError("retry_job", "failed to requeue job", err)
		}
		retried = updated

		if err := steps.ResetForJob(ctx, jobID); err != nil {
			return newJobServiceError("retry_job", "failed to reset job steps", err)
		}

		entry := domain.NewLogEntry(jobID, domain.LogLevelInfo, "job retried", map[string]any{
			"previous_status":   string(job.Status),
			"reset_retry_count": params.ResetRetryCount,
		})
		if err := logs.Append(ctx, entry); err != nil {
			return newJobServiceError("retry_job", "failed to record retry", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("job requeued for retry",
		"job_id", jobID,
		"user_id", userID,
		"previous_status", job.Status)
	return retried, nil
}

// CreateBulk enqueues up to task.MaxBulkJobs jobs, reporting success or
// failure per entry. Entries fail independently; one bad entry does not
// reject the batch.
func (s *jobService) CreateBulk(
	ctx context.Context,
	userID uuid.UUID,
	batch []CreateJobParams,
) ([]BulkItemResult, error) {
	if len(batch) < task.MinBulkJobs || len(batch) > task.MaxBulkJobs {
		return nil, ErrInvalidBatch
	}

	results := make([]BulkItemResult, 0, len(batch))
	for i, params := range batch {
		job, err := s.CreateJob(ctx, userID, params)
		if err != nil {
			results = append(results, BulkItemResult{Index: i, Err: err})
			continue
		}
		results = append(results, BulkItemResult{Index: i, Job: job})
	}

	s.logger.Info("bulk job batch processed",
		"user_id", userID,
		"requested", len(batch))
	return results, nil
}

// DashboardStats aggregates the user's queue for the dashboard.
func (s *jobService) DashboardStats(ctx context.Context, userID uuid.UUID) (*domain.DashboardStats, error) {
	stats, err := s.stats.DashboardStats(ctx, userID, recentJobsLimit)
	if err != nil {
		return nil, newJobServiceError("dashboard_stats", "failed to aggregate stats", err)
	}
	return stats, nil
}

// mapStoreError translates store sentinels to service sentinels and
// wraps everything else.
func (s *jobService) mapStoreError(operation, message string, err error) error {
	switch {
	case errors.Is(err, store.ErrJobNotFound):
		return ErrJobNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		return ErrInvalidJobState
	default:
		return newJobServiceError(operation, message, err)
	}
}
