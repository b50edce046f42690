package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/talentforge/talentforge-api/internal/domain"
	"github.com/talentforge/talentforge-api/internal/events"
	"github.com/talentforge/talentforge-api/internal/generation"
	"github.com/talentforge/talentforge-api/internal/store"
)

// Processor drives one claimed job through its step pipeline and owns
// all bookkeeping around the run: step status updates, job progress,
// the append-only event log, and the terminal status transition.
type Processor struct {
	jobs     store.JobStore
	steps    store.StepStore
	logs     store.JobLogStore
	registry *Registry
	emitter  events.Emitter
	logger   *slog.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(
	jobs store.JobStore,
	steps store.StepStore,
	logs store.JobLogStore,
	registry *Registry,
	emitter events.Emitter,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		jobs:     jobs,
		steps:    steps,
		logs:     logs,
		registry: registry,
		emitter:  emitter,
		logger:   logger.With("component", "job_processor"),
	}
}

// Process executes a job that was just claimed (status processing).
// Handled job failures are not returned as errors: the job's own status
// and log record them. An error return means bookkeeping itself failed
// and the job may be left in processing for the stale sweep to recover.
func (p *Processor) Process(ctx context.Context, job *domain.Job) error {
	log := p.logger.With(
		"job_id", job.ID,
		"job_type", job.JobType,
		"user_id", job.UserID,
	)

	handler, err := p.registry.Resolve(job.JobType)
	if err != nil {
		// No handler can ever succeed for this job, so retrying is pointless.
		return p.failJob(ctx, log, job, err.Error())
	}

	steps, err := p.steps.ListForJob(ctx, job.ID)
	if err != nil {
		return p.failAttempt(ctx, log, job, "", fmt.Errorf("%w: %v", generation.ErrTransientFailure, err))
	}
	if len(steps) == 0 {
		return p.failJob(ctx, log, job, "job has no pipeline steps")
	}

	p.appendLog(ctx, job.ID, domain.LogLevelInfo, "job processing started", map[string]any{
		"attempt":     job.RetryCount + 1,
		"max_retries": job.MaxRetries,
	})

	exec := NewExecution(job)
	exec.Runner = p
	total := len(steps)
	done := 0

	for _, step := range steps {
		// Steps finished by an earlier attempt stay finished.
		if step.Status == domain.StepStatusCompleted || step.Status == domain.StepStatusSkipped {
			done++
			continue
		}

		if err := ctx.Err(); err != nil {
			return p.failAttempt(ctx, log, job, step.StepName, err)
		}

		stop, err := p.cancelled(ctx, job)
		if err != nil {
			return p.failAttempt(ctx, log, job, step.StepName, fmt.Errorf("%w: %v", generation.ErrTransientFailure, err))
		}
		if stop {
			log.Info("job cancelled, stopping pipeline", "step", step.StepName)
			p.appendLog(ctx, job.ID, domain.LogLevelInfo, "job cancelled, pipeline stopped",
				map[string]any{"step": step.StepName})
			return nil
		}

		if err := p.beginStep(ctx, job, step.StepName); err != nil {
			return p.failAttempt(ctx, log, job, step.StepName, fmt.Errorf("%w: %v", generation.ErrTransientFailure, err))
		}

		output, err := handler.RunStep(ctx, exec, step)
		switch {
		case errors.Is(err, ErrSkipStep):
			if err := p.steps.SetStatus(ctx, job.ID, step.StepName, domain.StepStatusSkipped, 100, ""); err != nil {
				return p.failAttempt(ctx, log, job, step.StepName, fmt.Errorf("%w: %v", generation.ErrTransientFailure, err))
			}
			p.appendLog(ctx, job.ID, domain.LogLevelInfo, "step skipped",
				map[string]any{"step": step.StepName})

		case err != nil:
			if setErr := p.steps.SetStatus(ctx, job.ID, step.StepName, domain.StepStatusFailed, step.ProgressPercentage, err.Error()); setErr != nil {
				log.Error("failed to mark step failed", "step", step.StepName, "error", setErr)
			}
			return p.failAttempt(ctx, log, job, step.StepName, err)

		default:
			for k, v := range output {
				exec.Output[k] = v
			}
			if err := p.steps.SetStatus(ctx, job.ID, step.StepName, domain.StepStatusCompleted, 100, ""); err != nil {
				return p.failAttempt(ctx, log, job, step.StepName, fmt.Errorf("%w: %v", generation.ErrTransientFailure, err))
			}
		}

		done++
		progress := (100 * done) / total
		if _, err := p.jobs.Update(ctx, job.ID, store.JobUpdate{
			ProgressPercentage: &progress,
			OutputData:         exec.Output,
		}); err != nil {
			if errors.Is(err, store.ErrJobNotFound) {
				log.Warn("job disappeared mid-run, stopping")
				return nil
			}
			return p.failAttempt(ctx, log, job, step.StepName, fmt.Errorf("%w: %v", generation.ErrTransientFailure, err))
		}
	}

	return p.completeJob(ctx, log, job, exec.Output)
}

// beginStep marks the step processing and points the job at it.
func (p *Processor) beginStep(ctx context.Context, job *domain.Job, stepName string) error {
	if err := p.steps.SetStatus(ctx, job.ID, stepName, domain.StepStatusProcessing, 0, ""); err != nil {
		return err
	}
	if _, err := p.jobs.Update(ctx, job.ID, store.JobUpdate{CurrentStep: &stepName}); err != nil {
		return err
	}
	p.appendLog(ctx, job.ID, domain.LogLevelDebug, "step started",
		map[string]any{"step": stepName})
	return nil
}

// cancelled reports whether the job was cancelled since it was claimed.
func (p *Processor) cancelled(ctx context.Context, job *domain.Job) (bool, error) {
	current, err := p.jobs.GetForUser(ctx, job.ID, job.UserID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return true, nil
		}
		return false, err
	}
	return current.Status == domain.JobStatusCancelled, nil
}

// completeJob performs the terminal processing -> completed transition.
func (p *Processor) completeJob(
	ctx context.Context,
	log *slog.Logger,
	job *domain.Job,
	output map[string]any,
) error {
	status := domain.JobStatusCompleted
	progress := 100
	completedAt := time.Now().UTC()

	updated, err := p.jobs.Update(ctx, job.ID, store.JobUpdate{
		Status:             &status,
		ProgressPercentage: &progress,
		OutputData:         output,
		CompletedAt:        &completedAt,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// Cancelled between the last step and the final transition.
			log.Info("job no longer processing, completion skipped")
			return nil
		}
		if errors.Is(err, store.ErrJobNotFound) {
			return nil
		}
		return fmt.Errorf("failed to complete job: %w", err)
	}

	log.Info("job completed")
	p.appendLog(ctx, job.ID, domain.LogLevelInfo, "job completed", nil)
	p.emit(ctx, log, updated, "")
	return nil
}

// failAttempt handles one failed execution attempt. Transient failures
// with retry budget left requeue the job with one retry consumed;
// everything else fails the job terminally.
func (p *Processor) failAttempt(
	ctx context.Context,
	log *slog.Logger,
	job *domain.Job,
	stepName string,
	cause error,
) error {
	// Bookkeeping must still run when the attempt died on ctx cancellation
	// or timeout.
	detached := context.WithoutCancel(ctx)

	if errors.Is(cause, context.Canceled) {
		return p.release(detached, log, job, stepName)
	}

	message := cause.Error()
	if stepName != "" {
		message = fmt.Sprintf("step %s: %s", stepName, message)
	}

	retryable := generation.IsTransient(cause) || errors.Is(cause, context.DeadlineExceeded)
	if retryable && job.RetryCount < job.MaxRetries {
		status := domain.JobStatusPending
		retryCount := job.RetryCount + 1

		updated, err := p.jobs.Update(detached, job.ID, store.JobUpdate{
			Status:          &status,
			RetryCount:      &retryCount,
			ErrorMessage:    &message,
			ClearTimestamps: true,
		})
		if err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, store.ErrJobNotFound) {
				log.Info("job no longer processing, retry skipped")
				return nil
			}
			return fmt.Errorf("failed to requeue job for retry: %w", err)
		}

		log.Warn("job attempt failed, retry scheduled",
			"step", stepName,
			"retry", retryCount,
			"max_retries", job.MaxRetries,
			"error", cause)
		p.appendLog(detached, job.ID, domain.LogLevelWarning, "retry scheduled", map[string]any{
			"step":        stepName,
			"retry":       retryCount,
			"max_retries": job.MaxRetries,
			"error":       cause.Error(),
		})
		p.emit(detached, log, updated, "retry scheduled")
		return nil
	}

	return p.failJobWith(detached, log, job, message, cause)
}

// release hands a job claimed by a shutting-down worker back to the
// queue without consuming its retry budget.
func (p *Processor) release(ctx context.Context, log *slog.Logger, job *domain.Job, stepName string) error {
	status := domain.JobStatusPending
	_, err := p.jobs.Update(ctx, job.ID, store.JobUpdate{
		Status:          &status,
		ClearTimestamps: true,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, store.ErrJobNotFound) {
			return nil
		}
		return fmt.Errorf("failed to release job on shutdown: %w", err)
	}

	log.Info("worker shutting down, job released back to queue", "step", stepName)
	p.appendLog(ctx, job.ID, domain.LogLevelInfo, "job released during shutdown",
		map[string]any{"step": stepName})
	return nil
}

// failJob fails the job terminally for a reason unrelated to any step.
func (p *Processor) failJob(ctx context.Context, log *slog.Logger, job *domain.Job, message string) error {
	return p.failJobWith(context.WithoutCancel(ctx), log, job, message, errors.New(message))
}

func (p *Processor) failJobWith(
	ctx context.Context,
	log *slog.Logger,
	job *domain.Job,
	message string,
	cause error,
) error {
	status := domain.JobStatusFailed
	completedAt := time.Now().UTC()

	updated, err := p.jobs.Update(ctx, job.ID, store.JobUpdate{
		Status:       &status,
		ErrorMessage: &message,
		CompletedAt:  &completedAt,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, store.ErrJobNotFound) {
			log.Info("job no longer processing, failure skipped")
			return nil
		}
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	log.Error("job failed", "error", cause, "retries_used", job.RetryCount)
	p.appendLog(ctx, job.ID, domain.LogLevelError, "job failed", map[string]any{
		"error":        message,
		"retries_used": job.RetryCount,
	})
	p.emit(ctx, log, updated, message)
	return nil
}

// appendLog writes to the job's append-only log. Log writes are
// best-effort and never fail the run.
func (p *Processor) appendLog(
	ctx context.Context,
	jobID uuid.UUID,
	level domain.LogLevel,
	message string,
	metadata map[string]any,
) {
	entry := domain.NewLogEntry(jobID, level, message, metadata)
	if err := p.logs.Append(ctx, entry); err != nil {
		p.logger.Error("failed to append job log entry",
			"job_id", jobID,
			"message", message,
			"error", err)
	}
}

// emit publishes a lifecycle event. Emission failures are logged only.
func (p *Processor) emit(ctx context.Context, log *slog.Logger, job *domain.Job, message string) {
	if p.emitter == nil {
		return
	}
	if err := p.emitter.EmitEvent(ctx, events.NewJobEvent(job, message)); err != nil {
		log.Error("failed to emit job event", "error", err)
	}
}
