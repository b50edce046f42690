package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/talentforge/talentforge-api/internal/domain"
)

// JobUpdate carries the fields a caller may merge into an existing job.
// Nil pointers leave the stored value unchanged. Status changes are
// checked against the job state machine; an illegal transition returns
// domain.ErrInvalidTransition and leaves the record untouched.
type JobUpdate struct {
	Status             *domain.JobStatus
	ProgressPercentage *int
	CurrentStep        *string
	OutputData         map[string]any
	ErrorMessage       *string
	RetryCount         *int
	Priority           *int
	ScheduledAt        *time.Time
	StartedAt          *time.Time
	CompletedAt        *time.Time
	ClearTimestamps    bool // retry support: null out started_at/completed_at
}

// JobFilters narrows ListForUser results. Zero values mean "no filter".
type JobFilters struct {
	JobType     domain.JobType
	Status      domain.JobStatus
	DateFrom    time.Time
	DateTo      time.Time
	PriorityMin int
	PriorityMax int
	Limit       int
	Offset      int
}

// JobStore defines the interface for job queue persistence. It owns the
// status state machine and the atomic claim operation.
// Version: 1.0
type JobStore interface {
	// Create inserts a job in pending status. The caller is responsible
	// for inserting the job's step rows in the same transaction (see
	// StepStore.CreateForJob and WithTx).
	// Returns ErrInvalidEntity wrapping the domain validation error if
	// the job fails validation.
	Create(ctx context.Context, job *domain.Job) error

	// ClaimNext atomically selects one eligible job (pending, scheduled_at
	// in the past) ordered by priority descending then scheduled_at and
	// created_at ascending, transitions it to processing, stamps
	// started_at, and returns it. Two concurrent callers can never receive
	// the same job: the selection and update happen as one conditional,
	// row-locked statement.
	// Returns ErrJobNotFound when no eligible job exists.
	ClaimNext(ctx context.Context) (*domain.Job, error)

	// Update merges the permitted fields into the stored job. Status
	// changes that violate the state machine return
	// domain.ErrInvalidTransition without modifying the record.
	// Returns ErrJobNotFound if the job does not exist.
	Update(ctx context.Context, jobID uuid.UUID, update JobUpdate) (*domain.Job, error)

	// GetForUser retrieves a job by ID scoped to its owner.
	// Returns ErrJobNotFound if the job does not exist or belongs to a
	// different user.
	GetForUser(ctx context.Context, jobID, userID uuid.UUID) (*domain.Job, error)

	// ListForUser retrieves the user's jobs matching the filters, newest
	// first, paginated by Limit/Offset.
	ListForUser(ctx context.Context, userID uuid.UUID, filters JobFilters) ([]*domain.Job, error)

	// Delete removes a job (steps and logs cascade at the schema level).
	// Returns ErrConflict if the job is currently processing and
	// ErrJobNotFound if it does not exist for the user.
	Delete(ctx context.Context, jobID, userID uuid.UUID) error

	// ReleaseStale resets processing jobs whose started_at is older than
	// the given age back to pending so another worker can reclaim them,
	// or fails them when their retry budget is exhausted. Returns the
	// number of jobs released.
	ReleaseStale(ctx context.Context, olderThan time.Duration) (int, error)

	// WithTx returns a new JobStore bound to the provided transaction.
	// The transaction is created and managed by the caller, typically via
	// store.RunInTransaction.
	WithTx(tx *sql.Tx) JobStore
}

// StepStore defines the interface for step tracker persistence.
// Version: 1.0
type StepStore interface {
	// CreateForJob inserts the job's pending step rows, fixed from the
	// job type's template. Must run in the same transaction as
	// JobStore.Create.
	CreateForJob(ctx context.Context, steps []*domain.Step) error

	// SetStatus updates one step's status and progress. Processing stamps
	// started_at; completed/failed/skipped stamp completed_at. An error
	// message may be recorded for failed steps.
	// Returns ErrStepNotFound if the step does not exist for the job.
	SetStatus(
		ctx context.Context,
		jobID uuid.UUID,
		stepName string,
		status domain.StepStatus,
		progress int,
		errorMessage string,
	) error

	// ResetForJob returns all of the job's steps to pending with cleared
	// progress, timestamps, and error messages. Used by manual retry.
	ResetForJob(ctx context.Context, jobID uuid.UUID) error

	// ListForJob returns the job's steps ordered by step_order.
	ListForJob(ctx context.Context, jobID uuid.UUID) ([]*domain.Step, error)

	// WithTx returns a new StepStore bound to the provided transaction.
	WithTx(tx *sql.Tx) StepStore
}

// JobLogStore defines the interface for the append-only job event log.
// Entries are immutable: there is no update or delete operation.
// Version: 1.0
type JobLogStore interface {
	// Append writes one log entry.
	Append(ctx context.Context, entry *domain.LogEntry) error

	// ListForJob returns the job's log entries ordered by created_at.
	ListForJob(ctx context.Context, jobID uuid.UUID) ([]*domain.LogEntry, error)

	// WithTx returns a new JobLogStore bound to the provided transaction.
	WithTx(tx *sql.Tx) JobLogStore
}

// StatsStore computes read-only dashboard rollups. Implementations must
// never mutate the store.
// Version: 1.0
type StatsStore interface {
	// DashboardStats aggregates the user's queue: counts per status and
	// type, success rate, average processing and queue-wait durations,
	// and the most recent jobs (up to recentLimit).
	DashboardStats(ctx context.Context, userID uuid.UUID, recentLimit int) (*domain.DashboardStats, error)
}
