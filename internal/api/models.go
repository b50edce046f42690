package api

import (
	"time"

	"github.com/talentforge/talentforge-api/internal/domain"
)

// CreateJobRequest represents the request body for creating a new job.
// Zero values for priority and max retries fall back to the queue
// defaults.
type CreateJobRequest struct {
	JobType    string         `json:"job_type"    validate:"required"`
	Priority   int            `json:"priority"    validate:"omitempty,min=1,max=10"`
	InputData  map[string]any `json:"input_data"`
	MaxRetries *int           `json:"max_retries" validate:"omitempty,min=0,max=10"`
	// ScheduledAt delays eligibility; omitted means eligible now.
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// UpdateJobRequest represents the request body for updating a pending job.
type UpdateJobRequest struct {
	Priority    *int       `json:"priority"     validate:"omitempty,min=1,max=10"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// CancelJobRequest represents the request body for cancelling a job.
type CancelJobRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// RetryJobRequest represents the request body for manually retrying a
// failed or cancelled job.
type RetryJobRequest struct {
	ResetRetryCount bool       `json:"reset_retry_count"`
	NewPriority     *int       `json:"new_priority" validate:"omitempty,min=1,max=10"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
}

// BulkCreateRequest represents the request body for creating a batch of
// jobs in one call.
type BulkCreateRequest struct {
	Jobs []CreateJobRequest `json:"jobs" validate:"required,min=1,max=50,dive"`
}

// JobDetailResponse is a job with its pipeline steps and log history.
type JobDetailResponse struct {
	Job   *domain.Job        `json:"job"`
	Steps []*domain.Step     `json:"steps"`
	Logs  []*domain.LogEntry `json:"logs"`
}

// JobListResponse is a page of the user's jobs.
type JobListResponse struct {
	Jobs   []*domain.Job `json:"jobs"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// BulkItemResponse is the per-entry outcome of a bulk create.
type BulkItemResponse struct {
	Index int         `json:"index"`
	Job   *domain.Job `json:"job,omitempty"`
	Error string      `json:"error,omitempty"`
}

// BulkCreateResponse summarizes a bulk create: every entry gets a result,
// successes and failures alike. BatchID is synthetic, minted per request
// for client-side correlation.
type BulkCreateResponse struct {
	BatchID string             `json:"batch_id"`
	Results []BulkItemResponse `json:"results"`
	Created int                `json:"created"`
	Failed  int                `json:"failed"`
}

// ProgressUpdate is one frame of the job progress stream.
type ProgressUpdate struct {
	JobID              string    `json:"job_id"`
	Status             string    `json:"status"`
	ProgressPercentage int       `json:"progress_percentage"`
	CurrentStep        string    `json:"current_step,omitempty"`
	ErrorMessage       string    `json:"error_message,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}
