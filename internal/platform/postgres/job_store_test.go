package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talentforge/talentforge-api/internal/domain"
	"github.com/talentforge/talentforge-api/internal/platform/postgres"
	"github.com/talentforge/talentforge-api/internal/store"
)

var jobColumns = []string{
	"id", "user_id", "job_type", "priority", "status", "progress_percentage",
	"current_step", "total_steps", "input_data", "output_data", "error_message",
	"retry_count", "max_retries", "scheduled_at", "started_at", "completed_at",
	"created_at", "updated_at",
}

func jobRow(job *domain.Job) *sqlmock.Rows {
	return sqlmock.NewRows(jobColumns).AddRow(
		job.ID, job.UserID, job.JobType, job.Priority, job.Status,
		job.ProgressPercentage, nil, job.TotalSteps,
		[]byte(`{}`), nil, nil,
		job.RetryCount, job.MaxRetries, job.ScheduledAt, nil, nil,
		job.CreatedAt, job.UpdatedAt,
	)
}

func newTestJob(t *testing.T) *domain.Job {
	t.Helper()
	job, err := domain.NewJob(
		uuid.New(), domain.JobTypeCVGeneration,
		domain.DefaultPriority, nil, domain.DefaultMaxRetries, time.Time{})
	require.NoError(t, err)
	return job
}

func TestJobStoreCreate(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	jobStore := postgres.NewPostgresJobStore(db)
	job := newTestJob(t)

	mock.ExpectExec("INSERT INTO job_queue").
		WithArgs(
			job.ID, job.UserID, job.JobType, job.Priority, job.Status,
			job.ProgressPercentage, job.TotalSteps, sqlmock.AnyArg(),
			job.RetryCount, job.MaxRetries, job.ScheduledAt,
			job.CreatedAt, job.UpdatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, jobStore.Create(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreCreateRejectsInvalidJob(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	jobStore := postgres.NewPostgresJobStore(db)
	job := newTestJob(t)
	job.Priority = 0 // out of range

	err = jobStore.Create(context.Background(), job)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestJobStoreClaimNext(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	jobStore := postgres.NewPostgresJobStore(db)

	t.Run("claims an eligible job", func(t *testing.T) {
		job := newTestJob(t)
		job.Status = domain.JobStatusProcessing

		mock.ExpectQuery("UPDATE job_queue").
			WithArgs(domain.JobStatusProcessing, domain.JobStatusPending).
			WillReturnRows(jobRow(job))

		claimed, err := jobStore.ClaimNext(context.Background())
		require.NoError(t, err)
		assert.Equal(t, job.ID, claimed.ID)
		assert.Equal(t, domain.JobStatusProcessing, claimed.Status)
	})

	t.Run("returns ErrJobNotFound when queue is empty", func(t *testing.T) {
		mock.ExpectQuery("UPDATE job_queue").
			WithArgs(domain.JobStatusProcessing, domain.JobStatusPending).
			WillReturnRows(sqlmock.NewRows(jobColumns))

		_, err := jobStore.ClaimNext(context.Background())
		assert.ErrorIs(t, err, store.ErrJobNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreUpdateStatusGuard(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	jobStore := postgres.NewPostgresJobStore(db)
	jobID := uuid.New()

	t.Run("illegal transition is rejected and reported", func(t *testing.T) {
		// The guarded UPDATE matches no row, then the status check shows
		// the job exists in a state that cannot move to processing.
		mock.ExpectQuery("UPDATE job_queue").
			WillReturnRows(sqlmock.NewRows(jobColumns))
		mock.ExpectQuery("SELECT status FROM job_queue").
			WithArgs(jobID).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(domain.JobStatusCompleted))

		status := domain.JobStatusProcessing
		_, err := jobStore.Update(context.Background(), jobID, store.JobUpdate{Status: &status})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("missing job reports not found", func(t *testing.T) {
		mock.ExpectQuery("UPDATE job_queue").
			WillReturnRows(sqlmock.NewRows(jobColumns))
		mock.ExpectQuery("SELECT status FROM job_queue").
			WithArgs(jobID).
			WillReturnRows(sqlmock.NewRows([]string{"status"}))

		status := domain.JobStatusCancelled
		_, err := jobStore.Update(context.Background(), jobID, store.JobUpdate{Status: &status})
		assert.ErrorIs(t, err, store.ErrJobNotFound)
	})

	t.Run("progress out of range is rejected before touching the store", func(t *testing.T) {
		progress := 101
		_, err := jobStore.Update(context.Background(), jobID, store.JobUpdate{ProgressPercentage: &progress})
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreDelete(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	jobStore := postgres.NewPostgresJobStore(db)
	jobID := uuid.New()
	userID := uuid.New()

	t.Run("deletes a non-processing job", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM job_queue").
			WithArgs(jobID, userID, domain.JobStatusProcessing).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, jobStore.Delete(context.Background(), jobID, userID))
	})

	t.Run("reports conflict for a processing job", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM job_queue").
			WithArgs(jobID, userID, domain.JobStatusProcessing).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT status FROM job_queue").
			WithArgs(jobID, userID).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(domain.JobStatusProcessing))

		err := jobStore.Delete(context.Background(), jobID, userID)
		assert.ErrorIs(t, err, store.ErrConflict)
	})

	t.Run("reports not found for an unknown job", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM job_queue").
			WithArgs(jobID, userID, domain.JobStatusProcessing).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT status FROM job_queue").
			WithArgs(jobID, userID).
			WillReturnRows(sqlmock.NewRows([]string{"status"}))

		err := jobStore.Delete(context.Background(), jobID, userID)
		assert.ErrorIs(t, err, store.ErrJobNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreReleaseStale(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	jobStore := postgres.NewPostgresJobStore(db)

	// Exhausted jobs are failed first, the rest are requeued with one
	// retry consumed.
	mock.ExpectExec("UPDATE job_queue").
		WithArgs(domain.JobStatusFailed, domain.JobStatusProcessing, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE job_queue").
		WithArgs(domain.JobStatusPending, domain.JobStatusProcessing, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	released, err := jobStore.ReleaseStale(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, released)
	require.NoError(t, mock.ExpectationsWereMet())
}
