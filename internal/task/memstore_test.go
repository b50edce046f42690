package task_test

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/talentforge/talentforge-api/internal/domain"
	"github.com/talentforge/talentforge-api/internal/store"
)

// memStore is an in-memory implementation of the job, step, and log
// store interfaces with the same claim and transition semantics as the
// PostgreSQL stores. Tests share one instance across all three roles.
type memStore struct {
	mu    sync.Mutex
	jobs  map[uuid.UUID]*domain.Job
	steps map[uuid.UUID][]*domain.Step
	logs  map[uuid.UUID][]*domain.LogEntry
}

func newMemStore() *memStore {
	return &memStore{
		jobs:  make(map[uuid.UUID]*domain.Job),
		steps: make(map[uuid.UUID][]*domain.Step),
		logs:  make(map[uuid.UUID][]*domain.LogEntry),
	}
}

func cloneJob(job *domain.Job) *domain.Job {
	clone := *job
	return &clone
}

// --- store.JobStore ---

func (m *memStore) Create(_ context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[job.ID]; exists {
		return store.ErrDuplicate
	}
	m.jobs[job.ID] = cloneJob(job)
	return nil
}

func (m *memStore) ClaimNext(_ context.Context) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	var eligible []*domain.Job
	for _, job := range m.jobs {
		if job.Status == domain.JobStatusPending && !job.ScheduledAt.After(now) {
			eligible = append(eligible, job)
		}
	}
	if len(eligible) == 0 {
		return nil, store.ErrJobNotFound
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Priority != eligible[j].Priority {
			return eligible[i].Priority > eligible[j].Priority
		}
		if !eligible[i].ScheduledAt.Equal(eligible[j].ScheduledAt) {
			return eligible[i].ScheduledAt.Before(eligible[j].ScheduledAt)
		}
		return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
	})

	claimed := eligible[0]
	claimed.Status = domain.JobStatusProcessing
	started := now
	claimed.StartedAt = &started
	claimed.UpdatedAt = now
	return cloneJob(claimed), nil
}

func (m *memStore) Update(_ context.Context, jobID uuid.UUID, update store.JobUpdate) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return nil, store.ErrJobNotFound
	}

	if update.Status != nil {
		if !job.Status.CanTransition(*update.Status) {
			return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, job.Status, *update.Status)
		}
		job.Status = *update.Status
	}
	if update.ProgressPercentage != nil {
		if *update.ProgressPercentage < 0 || *update.ProgressPercentage > 100 {
			return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrInvalidProgress)
		}
		job.ProgressPercentage = *update.ProgressPercentage
	}
	if update.CurrentStep != nil {
		job.CurrentStep = *update.CurrentStep
	}
	if update.OutputData != nil {
		job.OutputData = update.OutputData
	}
	if update.ErrorMessage != nil {
		job.ErrorMessage = *update.ErrorMessage
	}
	if update.RetryCount != nil {
		job.RetryCount = *update.RetryCount
	}
	if update.Priority != nil {
		job.Priority = *update.Priority
	}
	if update.ScheduledAt != nil {
		job.ScheduledAt = *update.ScheduledAt
	}
	if update.StartedAt != nil {
		job.StartedAt = update.StartedAt
	}
	if update.CompletedAt != nil {
		job.CompletedAt = update.CompletedAt
	}
	if update.ClearTimestamps {
		job.StartedAt = nil
		job.CompletedAt = nil
	}
	job.UpdatedAt = time.Now().UTC()

	return cloneJob(job), nil
}

func (m *memStore) GetForUser(_ context.Context, jobID, userID uuid.UUID) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok || job.UserID != userID {
		return nil, store.ErrJobNotFound
	}
	return cloneJob(job), nil
}

func (m *memStore) ListForUser(_ context.Context, userID uuid.UUID, filters store.JobFilters) ([]*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var jobs []*domain.Job
	for _, job := range m.jobs {
		if job.UserID != userID {
			continue
		}
		if filters.JobType != "" && job.JobType != filters.JobType {
			continue
		}
		if filters.Status != "" && job.Status != filters.Status {
			continue
		}
		jobs = append(jobs, cloneJob(job))
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func (m *memStore) Delete(_ context.Context, jobID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok || job.UserID != userID {
		return store.ErrJobNotFound
	}
	if job.Status == domain.JobStatusProcessing {
		return fmt.Errorf("%w: job is processing", store.ErrConflict)
	}
	delete(m.jobs, jobID)
	delete(m.steps, jobID)
	delete(m.logs, jobID)
	return nil
}

func (m *memStore) ReleaseStale(_ context.Context, olderThan time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	released := 0
	for _, job := range m.jobs {
		if job.Status != domain.JobStatusProcessing || job.StartedAt == nil || !job.StartedAt.Before(cutoff) {
			continue
		}
		if job.RetryCount >= job.MaxRetries {
			job.Status = domain.JobStatusFailed
			job.ErrorMessage = "job processing timed out"
			now := time.Now().UTC()
			job.CompletedAt = &now
			continue
		}
		job.Status = domain.JobStatusPending
		job.RetryCount++
		job.StartedAt = nil
		released++
	}
	return released, nil
}

func (m *memStore) WithTx(*sql.Tx) store.JobStore { return m }

// --- store.StepStore ---

func (m *memStore) CreateForJob(_ context.Context, steps []*domain.Step) error {
	if len(steps) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, step := range steps {
		clone := *step
		m.steps[step.JobID] = append(m.steps[step.JobID], &clone)
	}
	return nil
}

func (m *memStore) SetStatus(
	_ context.Context,
	jobID uuid.UUID,
	stepName string,
	status domain.StepStatus,
	progress int,
	errorMessage string,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, step := range m.steps[jobID] {
		if step.StepName != stepName {
			continue
		}
		now := time.Now().UTC()
		step.Status = status
		step.ProgressPercentage = progress
		step.ErrorMessage = errorMessage
		step.UpdatedAt = now
		switch status {
		case domain.StepStatusProcessing:
			step.StartedAt = &now
		case domain.StepStatusCompleted, domain.StepStatusFailed, domain.StepStatusSkipped:
			step.CompletedAt = &now
		}
		return nil
	}
	return store.ErrStepNotFound
}

func (m *memStore) ResetForJob(_ context.Context, jobID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, step := range m.steps[jobID] {
		step.Status = domain.StepStatusPending
		step.ProgressPercentage = 0
		step.ErrorMessage = ""
		step.StartedAt = nil
		step.CompletedAt = nil
	}
	return nil
}

func (m *memStore) ListForJob(_ context.Context, jobID uuid.UUID) ([]*domain.Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	steps := make([]*domain.Step, 0, len(m.steps[jobID]))
	for _, step := range m.steps[jobID] {
		clone := *step
		steps = append(steps, &clone)
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].StepOrder < steps[j].StepOrder })
	return steps, nil
}

// stepStoreView adapts memStore to store.StepStore. The WithTx return
// types differ between the store interfaces, so the shared struct cannot
// satisfy both directly.
type stepStoreView struct{ *memStore }

func (v stepStoreView) WithTx(*sql.Tx) store.StepStore { return v }

// --- store.JobLogStore ---

func (m *memStore) Append(_ context.Context, entry *domain.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *entry
	m.logs[entry.JobID] = append(m.logs[entry.JobID], &clone)
	return nil
}

type logStoreView struct{ *memStore }

func (v logStoreView) WithTx(*sql.Tx) store.JobLogStore { return v }

func (v logStoreView) ListForJob(_ context.Context, jobID uuid.UUID) ([]*domain.LogEntry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	entries := make([]*domain.LogEntry, 0, len(v.logs[jobID]))
	for _, entry := range v.logs[jobID] {
		clone := *entry
		entries = append(entries, &clone)
	}
	return entries, nil
}
