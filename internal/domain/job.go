package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobType identifies the kind of work a job performs.
type JobType string

// Supported job types. Each type has a registered handler and a fixed
// step template (see step_templates.go).
const (
	JobTypeCVGeneration          JobType = "cv_generation"
	JobTypeCoverLetterGeneration JobType = "cover_letter_generation"
	JobTypeJobAnalysis           JobType = "job_analysis"
	JobTypeBulkGeneration        JobType = "bulk_generation"
)

// JobStatus represents the processing state of a job.
type JobStatus string

// Possible job status values
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Priority and retry bounds enforced at creation time.
const (
	MinPriority   = 1
	MaxPriority   = 10
	MaxMaxRetries = 10

	DefaultPriority   = 5
	DefaultMaxRetries = 3
)

// Job represents one unit of asynchronous, multi-step work tracked
// through the status state machine. Jobs are created pending, claimed
// by exactly one worker at a time, and finished in a terminal status.
// OutputData accumulates step results while the job runs so a retried
// attempt can resume from it; it is final only once the status is
// completed.
type Job struct {
	ID                 uuid.UUID      `json:"id"`
	UserID             uuid.UUID      `json:"user_id"`
	JobType            JobType        `json:"job_type"`
	Priority           int            `json:"priority"`
	Status             JobStatus      `json:"status"`
	ProgressPercentage int            `json:"progress_percentage"`
	CurrentStep        string         `json:"current_step,omitempty"`
	TotalSteps         int            `json:"total_steps"`
	InputData          map[string]any `json:"input_data"`
	OutputData         map[string]any `json:"output_data,omitempty"`
	ErrorMessage       string         `json:"error_message,omitempty"`
	RetryCount         int            `json:"retry_count"`
	MaxRetries         int            `json:"max_retries"`
	ScheduledAt        time.Time      `json:"scheduled_at"`
	StartedAt          *time.Time     `json:"started_at,omitempty"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// NewJob creates a new Job in the pending state with its step count taken
// from the type's step template. A zero priority means DefaultPriority;
// a zero scheduledAt means eligible now.
// Returns an error if validation fails.
func NewJob(
	userID uuid.UUID,
	jobType JobType,
	priority int,
	inputData map[string]any,
	maxRetries int,
	scheduledAt time.Time,
) (*Job, error) {
	now := time.Now().UTC()
	if priority == 0 {
		priority = DefaultPriority
	}
	if scheduledAt.IsZero() {
		scheduledAt = now
	}
	if inputData == nil {
		inputData = map[string]any{}
	}

	job := &Job{
		ID:          uuid.New(),
		UserID:      userID,
		JobType:     jobType,
		Priority:    priority,
		Status:      JobStatusPending,
		TotalSteps:  len(StepTemplate(jobType)),
		InputData:   inputData,
		MaxRetries:  maxRetries,
		ScheduledAt: scheduledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the Job has valid data.
// Returns an error if any field fails validation.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}

	if j.UserID == uuid.Nil {
		return ErrEmptyJobUserID
	}

	if !IsValidJobType(j.JobType) {
		return ErrInvalidJobType
	}

	if j.Priority < MinPriority || j.Priority > MaxPriority {
		return ErrInvalidPriority
	}

	if j.MaxRetries < 0 || j.MaxRetries > MaxMaxRetries {
		return ErrInvalidMaxRetries
	}

	if !isValidJobStatus(j.Status) {
		return ErrInvalidJobStatus
	}

	return nil
}

// IsTerminal reports whether the status admits no further automatic
// transition. Terminal jobs only move again via an explicit retry request.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to target is a legal
// state machine transition:
//
//	pending    -> processing            (claim)
//	processing -> completed             (handler succeeded)
//	processing -> pending               (handler failed, retries remain)
//	processing -> failed                (handler failed, retries exhausted)
//	pending|processing -> cancelled     (explicit cancel)
//	failed|cancelled   -> pending       (explicit retry)
func (s JobStatus) CanTransition(target JobStatus) bool {
	switch s {
	case JobStatusPending:
		return target == JobStatusProcessing || target == JobStatusCancelled
	case JobStatusProcessing:
		return target == JobStatusCompleted ||
			target == JobStatusPending ||
			target == JobStatusFailed ||
			target == JobStatusCancelled
	case JobStatusFailed, JobStatusCancelled:
		return target == JobStatusPending
	default:
		return false
	}
}

// IsValidJobType checks if the given type is a known JobType.
func IsValidJobType(t JobType) bool {
	switch t {
	case JobTypeCVGeneration, JobTypeCoverLetterGeneration,
		JobTypeJobAnalysis, JobTypeBulkGeneration:
		return true
	default:
		return false
	}
}

// isValidJobStatus checks if the given status is a valid JobStatus.
func isValidJobStatus(status JobStatus) bool {
	switch status {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted,
		JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}
