package domain

import (
	"time"

	"github.com/google/uuid"
)

// StepStatus represents the processing state of a single pipeline step.
type StepStatus string

// Possible step status values
const (
	StepStatusPending    StepStatus = "pending"
	StepStatusProcessing StepStatus = "processing"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusFailed     StepStatus = "failed"
	StepStatusSkipped    StepStatus = "skipped"
)

// Step is one ordered, independently tracked stage of a job's pipeline.
// The set of steps and their order is fixed at job creation from the
// type's step template and is never reordered afterwards.
type Step struct {
	ID                 uuid.UUID      `json:"id"`
	JobID              uuid.UUID      `json:"job_id"`
	StepName           string         `json:"step_name"`
	StepOrder          int            `json:"step_order"`
	Status             StepStatus     `json:"status"`
	ProgressPercentage int            `json:"progress_percentage"`
	StepData           map[string]any `json:"step_data,omitempty"`
	ErrorMessage       string         `json:"error_message,omitempty"`
	StartedAt          *time.Time     `json:"started_at,omitempty"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// NewStepsForJob instantiates the pending Step rows for a job from its
// type's template. Returns nil for an unknown type; callers validate the
// type before reaching this point.
func NewStepsForJob(jobID uuid.UUID, jobType JobType) []*Step {
	template := StepTemplate(jobType)
	if len(template) == 0 {
		return nil
	}

	now := time.Now().UTC()
	steps := make([]*Step, 0, len(template))
	for _, def := range template {
		steps = append(steps, &Step{
			ID:        uuid.New(),
			JobID:     jobID,
			StepName:  def.Name,
			StepOrder: def.Order,
			Status:    StepStatusPending,
			StepData:  map[string]any{"description": def.Description},
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return steps
}

// isValidStepStatus checks if the given status is a valid StepStatus.
func isValidStepStatus(status StepStatus) bool {
	switch status {
	case StepStatusPending, StepStatusProcessing, StepStatusCompleted,
		StepStatusFailed, StepStatusSkipped:
		return true
	default:
		return false
	}
}

// EffectiveProgress returns the progress readers should report for the
// step: completed steps always read as 100 regardless of the last value
// written while they were in flight.
func (s *Step) EffectiveProgress() int {
	if s.Status == StepStatusCompleted {
		return 100
	}
	return s.ProgressPercentage
}
