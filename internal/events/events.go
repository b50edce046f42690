package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/talentforge/talentforge-api/internal/domain"
)

// JobEvent describes a job lifecycle transition observed by a worker.
type JobEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// JobID is the job the event refers to
	JobID uuid.UUID `json:"job_id"`

	// UserID is the owner of the job
	UserID uuid.UUID `json:"user_id"`

	// JobType is the job's pipeline type
	JobType domain.JobType `json:"job_type"`

	// Status is the status the job transitioned to
	Status domain.JobStatus `json:"status"`

	// Message carries a human-readable note, e.g. the failure reason
	Message string `json:"message,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewJobEvent creates a JobEvent for the job's current status.
func NewJobEvent(job *domain.Job, message string) *JobEvent {
	return &JobEvent{
		ID:        uuid.New(),
		JobID:     job.ID,
		UserID:    job.UserID,
		JobType:   job.JobType,
		Status:    job.Status,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}

// Handler processes job lifecycle events.
type Handler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *JobEvent) error
}

// Emitter publishes job lifecycle events to registered handlers.
type Emitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *JobEvent) error
}
