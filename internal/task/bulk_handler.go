package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/talentforge/talentforge-api/internal/domain"
	"github.com/talentforge/talentforge-api/internal/store"
)

// Bulk batch bounds.
const (
	MinBulkJobs = 1
	MaxBulkJobs = 50
)

// childPollInterval is how often batch_processing re-checks child jobs.
const childPollInterval = 2 * time.Second

// JobCreator persists a new job together with its pipeline steps.
// Implemented by the job service so child job creation goes through the
// same transactional path as API-created jobs.
type JobCreator interface {
	EnqueueJob(ctx context.Context, job *domain.Job) error
}

// bulkHandler implements the bulk_generation pipeline: it fans the
// batch out into individual child jobs, waits for them, and compiles
// their results.
type bulkHandler struct {
	pipeline pipelineHandler
	creator  JobCreator
	jobs     store.JobStore
}

// NewBulkGenerationHandler builds the bulk_generation pipeline.
func NewBulkGenerationHandler(creator JobCreator, jobs store.JobStore) Handler {
	h := &bulkHandler{creator: creator, jobs: jobs}
	h.pipeline = pipelineHandler{
		jobType: domain.JobTypeBulkGeneration,
		steps: map[string]stepFunc{
			"job_validation":     h.validateBatch,
			"queue_preparation":  h.prepareQueue,
			"batch_processing":   h.awaitChildren,
			"result_compilation": h.compileResults,
			"notification":       h.recordNotification,
		},
	}
	return h
}

func (h *bulkHandler) JobType() domain.JobType { return domain.JobTypeBulkGeneration }

func (h *bulkHandler) RunStep(
	ctx context.Context,
	exec *Execution,
	step *domain.Step,
) (map[string]any, error) {
	return h.pipeline.RunStep(ctx, exec, step)
}

// bulkEntry is one requested job inside a batch.
type bulkEntry struct {
	jobType  domain.JobType
	priority int
	input    map[string]any
}

// parseBatch decodes and bounds-checks the batch from the job's input.
func parseBatch(input map[string]any) ([]bulkEntry, error) {
	raw, ok := input["jobs"].([]any)
	if !ok {
		return nil, errors.New(`bulk input must contain a "jobs" array`)
	}
	if len(raw) < MinBulkJobs || len(raw) > MaxBulkJobs {
		return nil, fmt.Errorf("bulk batch must contain between %d and %d jobs, got %d",
			MinBulkJobs, MaxBulkJobs, len(raw))
	}

	entries := make([]bulkEntry, 0, len(raw))
	for i, item := range raw {
		spec, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("job %d: entry must be an object", i)
		}

		jobType, _ := spec["job_type"].(string)
		if !domain.IsValidJobType(domain.JobType(jobType)) {
			return nil, fmt.Errorf("job %d: invalid job type %q", i, jobType)
		}
		if domain.JobType(jobType) == domain.JobTypeBulkGeneration {
			return nil, fmt.Errorf("job %d: bulk batches cannot nest bulk jobs", i)
		}

		priority := domain.DefaultPriority
		if v, ok := spec["priority"].(float64); ok {
			priority = int(v)
		}

		childInput, _ := spec["input_data"].(map[string]any)

		entries = append(entries, bulkEntry{
			jobType:  domain.JobType(jobType),
			priority: priority,
			input:    childInput,
		})
	}
	return entries, nil
}

// validateBatch checks every entry before any child job is created.
func (h *bulkHandler) validateBatch(_ context.Context, exec *Execution, _ *domain.Step) (map[string]any, error) {
	entries, err := parseBatch(exec.Job.InputData)
	if err != nil {
		return nil, err
	}
	return map[string]any{"validated_count": len(entries)}, nil
}

// prepareQueue creates one child job per entry. Child IDs go into the
// output so a retried attempt resumes with the same children instead of
// enqueueing duplicates.
func (h *bulkHandler) prepareQueue(ctx context.Context, exec *Execution, _ *domain.Step) (map[string]any, error) {
	if ids := childIDs(exec.Output); len(ids) > 0 {
		return nil, ErrSkipStep
	}

	entries, err := parseBatch(exec.Job.InputData)
	if err != nil {
		return nil, err
	}

	created := make([]any, 0, len(entries))
	for i, entry := range entries {
		child, err := domain.NewJob(
			exec.Job.UserID, entry.jobType, entry.priority,
			entry.input, exec.Job.MaxRetries, time.Time{})
		if err != nil {
			return nil, fmt.Errorf("job %d: %w", i, err)
		}
		if err := h.creator.EnqueueJob(ctx, child); err != nil {
			return nil, fmt.Errorf("job %d: failed to enqueue: %w", i, err)
		}
		created = append(created, child.ID.String())
	}

	return map[string]any{"child_job_ids": created}, nil
}

// awaitChildren drives the batch to completion. Children still pending
// run inline on this worker: the parent occupies a worker slot for the
// whole wait, so a pool with a single worker would otherwise deadlock
// on its own batch. Children claimed by other workers are polled until
// they reach a terminal status or the job context expires.
func (h *bulkHandler) awaitChildren(ctx context.Context, exec *Execution, _ *domain.Step) (map[string]any, error) {
	ids := childIDs(exec.Output)
	if len(ids) == 0 {
		return nil, errors.New("queue_preparation produced no child jobs")
	}

	ticker := time.NewTicker(childPollInterval)
	defer ticker.Stop()

	for {
		running := 0
		var unclaimed []*domain.Job
		for _, id := range ids {
			child, err := h.jobs.GetForUser(ctx, id, exec.Job.UserID)
			if err != nil {
				if errors.Is(err, store.ErrJobNotFound) {
					continue
				}
				return nil, fmt.Errorf("failed to check child job %s: %w", id, err)
			}
			if child.Status.IsTerminal() {
				continue
			}
			running++
			if child.Status == domain.JobStatusPending && !child.ScheduledAt.After(time.Now().UTC()) {
				unclaimed = append(unclaimed, child)
			}
		}
		if running == 0 {
			return map[string]any{"processed_count": len(ids)}, nil
		}

		progressed := false
		for _, child := range unclaimed {
			ran, err := h.runChild(ctx, exec, child)
			if err != nil {
				return nil, err
			}
			progressed = progressed || ran
		}
		if progressed {
			continue
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// runChild claims one pending child and processes it on the current
// worker. The status-guarded update makes the claim race-free: a false
// return means another worker got there first.
func (h *bulkHandler) runChild(ctx context.Context, exec *Execution, child *domain.Job) (bool, error) {
	if exec.Runner == nil {
		return false, nil
	}

	status := domain.JobStatusProcessing
	now := time.Now().UTC()
	claimed, err := h.jobs.Update(ctx, child.ID, store.JobUpdate{
		Status:    &status,
		StartedAt: &now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, store.ErrJobNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to claim child job %s: %w", child.ID, err)
	}

	if err := exec.Runner.Process(ctx, claimed); err != nil {
		return false, fmt.Errorf("failed to process child job %s: %w", claimed.ID, err)
	}
	return true, nil
}

// compileResults summarizes every child's outcome.
func (h *bulkHandler) compileResults(ctx context.Context, exec *Execution, _ *domain.Step) (map[string]any, error) {
	ids := childIDs(exec.Output)

	results := make([]any, 0, len(ids))
	completed, failed := 0, 0
	for _, id := range ids {
		child, err := h.jobs.GetForUser(ctx, id, exec.Job.UserID)
		if err != nil {
			if errors.Is(err, store.ErrJobNotFound) {
				results = append(results, map[string]any{
					"job_id": id.String(),
					"status": "deleted",
				})
				continue
			}
			return nil, fmt.Errorf("failed to load child job %s: %w", id, err)
		}

		result := map[string]any{
			"job_id":   child.ID.String(),
			"job_type": string(child.JobType),
			"status":   string(child.Status),
		}
		if child.ErrorMessage != "" {
			result["error"] = child.ErrorMessage
		}
		results = append(results, result)

		switch child.Status {
		case domain.JobStatusCompleted:
			completed++
		case domain.JobStatusFailed:
			failed++
		}
	}

	return map[string]any{
		"results": map[string]any{
			"jobs":      results,
			"completed": completed,
			"failed":    failed,
		},
	}, nil
}

// recordNotification marks the batch ready for pickup. Actual delivery
// happens through the lifecycle event emitted on completion.
func (h *bulkHandler) recordNotification(_ context.Context, _ *Execution, _ *domain.Step) (map[string]any, error) {
	return map[string]any{
		"notification": map[string]any{
			"notified_at": time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

// childIDs reads the child job IDs recorded by queue_preparation.
func childIDs(output map[string]any) []uuid.UUID {
	raw, _ := output["child_job_ids"].([]any)
	ids := make([]uuid.UUID, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		id, err := uuid.Parse(s)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
