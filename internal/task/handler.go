package task

import (
	"context"
	"errors"

	"github.com/talentforge/talentforge-api/internal/domain"
)

// ErrSkipStep is returned by a step implementation to mark the step
// skipped rather than executed. The processor records the step as
// skipped and continues with the next one.
var ErrSkipStep = errors.New("step skipped")

// JobRunner processes one claimed job through its pipeline. Implemented
// by the Processor; handlers that spawn child jobs use it to run them on
// the current worker when no other worker picks them up.
type JobRunner interface {
	Process(ctx context.Context, job *domain.Job) error
}

// Execution carries the mutable state of one job run. Output accumulates
// the data produced by completed steps and becomes the job's output_data.
// Runner is set by the processor before the first step runs.
type Execution struct {
	Job    *domain.Job
	Output map[string]any
	Runner JobRunner
}

// NewExecution prepares the run state for a claimed job, seeding the
// output with whatever a previous attempt already produced.
func NewExecution(job *domain.Job) *Execution {
	output := map[string]any{}
	for k, v := range job.OutputData {
		output[k] = v
	}
	return &Execution{Job: job, Output: output}
}

// Handler executes the steps of one job type's pipeline.
// Version: 1.0
type Handler interface {
	// JobType returns the pipeline type this handler serves.
	JobType() domain.JobType

	// RunStep executes a single step and returns data to merge into the
	// job's output. Returning ErrSkipStep (possibly wrapped) marks the
	// step skipped. Any other error fails the attempt; whether the job
	// retries depends on the error's transience and the retry budget.
	RunStep(ctx context.Context, exec *Execution, step *domain.Step) (map[string]any, error)
}
