package task_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talentforge/talentforge-api/internal/domain"
	"github.com/talentforge/talentforge-api/internal/events"
	"github.com/talentforge/talentforge-api/internal/generation"
	"github.com/talentforge/talentforge-api/internal/store"
	"github.com/talentforge/talentforge-api/internal/task"
)

// fakeGenerator records calls and delegates to an optional hook.
type fakeGenerator struct {
	mu    sync.Mutex
	calls []string
	hook  func(req generation.Request) (map[string]any, error)
}

func (g *fakeGenerator) Generate(_ context.Context, req generation.Request) (map[string]any, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req.Task)
	g.mu.Unlock()

	if g.hook != nil {
		return g.hook(req)
	}
	return map[string]any{"content": "generated " + req.Task}, nil
}

func (g *fakeGenerator) callCount(taskName string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	count := 0
	for _, call := range g.calls {
		if call == taskName {
			count++
		}
	}
	return count
}

// eventRecorder captures emitted lifecycle events.
type eventRecorder struct {
	mu     sync.Mutex
	events []*events.JobEvent
}

func (r *eventRecorder) HandleEvent(_ context.Context, event *events.JobEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) statuses() []domain.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	statuses := make([]domain.JobStatus, 0, len(r.events))
	for _, e := range r.events {
		statuses = append(statuses, e.Status)
	}
	return statuses
}

// memCreator enqueues child jobs straight into the in-memory store.
type memCreator struct{ m *memStore }

func (c memCreator) EnqueueJob(ctx context.Context, job *domain.Job) error {
	if err := c.m.Create(ctx, job); err != nil {
		return err
	}
	return c.m.CreateForJob(ctx, domain.NewStepsForJob(job.ID, job.JobType))
}

type testEnv struct {
	store    *memStore
	gen      *fakeGenerator
	proc     *task.Processor
	recorder *eventRecorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	m := newMemStore()
	gen := &fakeGenerator{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry := task.NewRegistry()
	require.NoError(t, registry.Register(task.NewCVGenerationHandler(gen)))
	require.NoError(t, registry.Register(task.NewCoverLetterGenerationHandler(gen)))
	require.NoError(t, registry.Register(task.NewJobAnalysisHandler(gen)))
	require.NoError(t, registry.Register(task.NewBulkGenerationHandler(memCreator{m}, m)))

	recorder := &eventRecorder{}
	emitter := events.NewInMemoryEmitter(logger)
	emitter.RegisterHandler(recorder)

	proc := task.NewProcessor(m, stepStoreView{m}, logStoreView{m}, registry, emitter, logger)
	return &testEnv{store: m, gen: gen, proc: proc, recorder: recorder}
}

func (e *testEnv) createJob(
	t *testing.T,
	jobType domain.JobType,
	input map[string]any,
	maxRetries int,
) *domain.Job {
	t.Helper()

	job, err := domain.NewJob(uuid.New(), jobType, domain.DefaultPriority, input, maxRetries, time.Time{})
	require.NoError(t, err)
	require.NoError(t, e.store.Create(context.Background(), job))
	require.NoError(t, e.store.CreateForJob(context.Background(), domain.NewStepsForJob(job.ID, jobType)))
	return job
}

func (e *testEnv) claim(t *testing.T) *domain.Job {
	t.Helper()
	job, err := e.store.ClaimNext(context.Background())
	require.NoError(t, err)
	return job
}

func (e *testEnv) job(t *testing.T, id, userID uuid.UUID) *domain.Job {
	t.Helper()
	job, err := e.store.GetForUser(context.Background(), id, userID)
	require.NoError(t, err)
	return job
}

func TestProcessorCompletesCVPipeline(t *testing.T) {
	env := newTestEnv(t)
	created := env.createJob(t, domain.JobTypeCVGeneration,
		map[string]any{"profile": "10y Go", "job_description": "Backend role"}, domain.DefaultMaxRetries)

	claimed := env.claim(t)
	require.NoError(t, env.proc.Process(context.Background(), claimed))

	job := env.job(t, created.ID, created.UserID)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.ProgressPercentage)
	assert.NotNil(t, job.CompletedAt)
	assert.Contains(t, job.OutputData, "cv_draft")
	assert.Contains(t, job.OutputData, "document")

	steps, err := env.store.ListForJob(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, steps, 7)
	for _, step := range steps {
		assert.Equal(t, domain.StepStatusCompleted, step.Status, "step %s", step.StepName)
	}

	logs, err := logStoreView{env.store}.ListForJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, logs)

	assert.Equal(t, []domain.JobStatus{domain.JobStatusCompleted}, env.recorder.statuses())
}

func TestProcessorSkipsJobAnalysisWithoutJobReference(t *testing.T) {
	env := newTestEnv(t)
	created := env.createJob(t, domain.JobTypeCVGeneration,
		map[string]any{"profile": "10y Go"}, domain.DefaultMaxRetries)

	require.NoError(t, env.proc.Process(context.Background(), env.claim(t)))

	job := env.job(t, created.ID, created.UserID)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.ProgressPercentage)

	steps, err := env.store.ListForJob(context.Background(), job.ID)
	require.NoError(t, err)
	for _, step := range steps {
		if step.StepName == "job_analysis" {
			assert.Equal(t, domain.StepStatusSkipped, step.Status)
		} else {
			assert.Equal(t, domain.StepStatusCompleted, step.Status, "step %s", step.StepName)
		}
	}
	assert.Zero(t, env.gen.callCount("job_analysis"))
}

func TestProcessorRetriesTransientFailure(t *testing.T) {
	env := newTestEnv(t)

	failures := 0
	env.gen.hook = func(req generation.Request) (map[string]any, error) {
		if req.Task == "cv_draft" && failures == 0 {
			failures++
			return nil, fmt.Errorf("%w: upstream 503", generation.ErrTransientFailure)
		}
		return map[string]any{"content": "ok"}, nil
	}

	created := env.createJob(t, domain.JobTypeCVGeneration,
		map[string]any{"job_description": "role"}, domain.DefaultMaxRetries)

	// First attempt fails on content_generation and requeues the job.
	require.NoError(t, env.proc.Process(context.Background(), env.claim(t)))

	job := env.job(t, created.ID, created.UserID)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	assert.Contains(t, job.ErrorMessage, "content_generation")
	assert.Nil(t, job.StartedAt)

	// Second attempt resumes after the completed steps and succeeds.
	require.NoError(t, env.proc.Process(context.Background(), env.claim(t)))

	job = env.job(t, created.ID, created.UserID)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	assert.Equal(t, 1, env.gen.callCount("profile_analysis"), "completed steps must not rerun")
	assert.Equal(t, 2, env.gen.callCount("cv_draft"))

	assert.Equal(t, []domain.JobStatus{domain.JobStatusPending, domain.JobStatusCompleted}, env.recorder.statuses())
}

func TestProcessorFailsWhenRetriesExhausted(t *testing.T) {
	env := newTestEnv(t)
	env.gen.hook = func(generation.Request) (map[string]any, error) {
		return nil, fmt.Errorf("%w: upstream down", generation.ErrTransientFailure)
	}

	created := env.createJob(t, domain.JobTypeJobAnalysis, map[string]any{"posting": "x"}, 1)

	require.NoError(t, env.proc.Process(context.Background(), env.claim(t)))
	assert.Equal(t, domain.JobStatusPending, env.job(t, created.ID, created.UserID).Status)

	require.NoError(t, env.proc.Process(context.Background(), env.claim(t)))

	job := env.job(t, created.ID, created.UserID)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	assert.NotEmpty(t, job.ErrorMessage)
	assert.NotNil(t, job.CompletedAt)
}

func TestProcessorDoesNotRetryPermanentFailure(t *testing.T) {
	env := newTestEnv(t)
	env.gen.hook = func(generation.Request) (map[string]any, error) {
		return nil, fmt.Errorf("%w: policy", generation.ErrContentBlocked)
	}

	created := env.createJob(t, domain.JobTypeCoverLetterGeneration,
		map[string]any{"company": "Acme"}, domain.DefaultMaxRetries)

	require.NoError(t, env.proc.Process(context.Background(), env.claim(t)))

	job := env.job(t, created.ID, created.UserID)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, 0, job.RetryCount, "permanent failures must not consume retries")
}

func TestProcessorStopsWhenJobCancelledMidRun(t *testing.T) {
	env := newTestEnv(t)
	created := env.createJob(t, domain.JobTypeJobAnalysis,
		map[string]any{"posting": "x"}, domain.DefaultMaxRetries)

	cancelled := domain.JobStatusCancelled
	env.gen.hook = func(req generation.Request) (map[string]any, error) {
		if req.Task == "job_parsing" {
			_, err := env.store.Update(context.Background(), created.ID, store.JobUpdate{Status: &cancelled})
			require.NoError(t, err)
		}
		return map[string]any{"content": "ok"}, nil
	}

	require.NoError(t, env.proc.Process(context.Background(), env.claim(t)))

	job := env.job(t, created.ID, created.UserID)
	assert.Equal(t, domain.JobStatusCancelled, job.Status)
	assert.Zero(t, env.gen.callCount("job_analysis"), "pipeline must stop after cancellation")

	steps, err := env.store.ListForJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StepStatusPending, steps[2].Status)
}

func TestProcessorFailsJobWithoutHandler(t *testing.T) {
	env := newTestEnv(t)

	// A registry missing the claimed job's type.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := task.NewRegistry()
	require.NoError(t, registry.Register(task.NewCVGenerationHandler(env.gen)))
	proc := task.NewProcessor(env.store, stepStoreView{env.store}, logStoreView{env.store}, registry, nil, logger)

	created := env.createJob(t, domain.JobTypeJobAnalysis,
		map[string]any{"posting": "x"}, domain.DefaultMaxRetries)

	require.NoError(t, proc.Process(context.Background(), env.claim(t)))

	job := env.job(t, created.ID, created.UserID)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "no handler registered")
}

func TestProcessorProgressIsMonotonic(t *testing.T) {
	env := newTestEnv(t)
	created := env.createJob(t, domain.JobTypeJobAnalysis,
		map[string]any{"posting": "x"}, domain.DefaultMaxRetries)

	last := -1
	env.gen.hook = func(generation.Request) (map[string]any, error) {
		job := env.job(t, created.ID, created.UserID)
		require.GreaterOrEqual(t, job.ProgressPercentage, last)
		last = job.ProgressPercentage
		return map[string]any{"content": "ok", "match_score": float64(80)}, nil
	}

	require.NoError(t, env.proc.Process(context.Background(), env.claim(t)))
	assert.Equal(t, 100, env.job(t, created.ID, created.UserID).ProgressPercentage)
}

func TestClaimNextDeliversJobToExactlyOneClaimer(t *testing.T) {
	env := newTestEnv(t)
	env.createJob(t, domain.JobTypeCVGeneration, map[string]any{"p": "x"}, 0)

	const claimers = 16
	var wg sync.WaitGroup
	results := make(chan error, claimers)

	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.store.ClaimNext(context.Background())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, store.ErrJobNotFound)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestClaimNextOrdersByPriorityThenAge(t *testing.T) {
	env := newTestEnv(t)

	low := env.createJob(t, domain.JobTypeCVGeneration, map[string]any{"p": "low"}, 0)
	high, err := domain.NewJob(low.UserID, domain.JobTypeCVGeneration, domain.MaxPriority,
		map[string]any{"p": "high"}, 0, time.Time{})
	require.NoError(t, err)
	require.NoError(t, env.store.Create(context.Background(), high))

	first := env.claim(t)
	assert.Equal(t, high.ID, first.ID)

	second := env.claim(t)
	assert.Equal(t, low.ID, second.ID)
}

func TestClaimNextSkipsFutureScheduledJobs(t *testing.T) {
	env := newTestEnv(t)

	future, err := domain.NewJob(uuid.New(), domain.JobTypeCVGeneration, domain.MaxPriority,
		nil, 0, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, env.store.Create(context.Background(), future))

	_, err = env.store.ClaimNext(context.Background())
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}
