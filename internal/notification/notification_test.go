package notification_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talentforge/talentforge-api/internal/domain"
	"github.com/talentforge/talentforge-api/internal/events"
	"github.com/talentforge/talentforge-api/internal/notification"
)

type recordingNotifier struct {
	completed []uuid.UUID
	failed    []uuid.UUID
	err       error
}

func (r *recordingNotifier) NotifyJobCompleted(_ context.Context, job *domain.Job) error {
	r.completed = append(r.completed, job.ID)
	return r.err
}

func (r *recordingNotifier) NotifyJobFailed(_ context.Context, job *domain.Job) error {
	r.failed = append(r.failed, job.ID)
	return r.err
}

func testEvent(status domain.JobStatus, message string) *events.JobEvent {
	return &events.JobEvent{
		ID:        uuid.New(),
		JobID:     uuid.New(),
		UserID:    uuid.New(),
		JobType:   domain.JobTypeCVGeneration,
		Status:    status,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}

func TestEventHandler(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("completed event notifies completion", func(t *testing.T) {
		t.Parallel()
		notifier := &recordingNotifier{}
		handler := notification.NewEventHandler(notifier, logger)

		event := testEvent(domain.JobStatusCompleted, "")
		require.NoError(t, handler.HandleEvent(context.Background(), event))
		assert.Equal(t, []uuid.UUID{event.JobID}, notifier.completed)
		assert.Empty(t, notifier.failed)
	})

	t.Run("failed event notifies failure", func(t *testing.T) {
		t.Parallel()
		notifier := &recordingNotifier{}
		handler := notification.NewEventHandler(notifier, logger)

		event := testEvent(domain.JobStatusFailed, "step content_generation: boom")
		require.NoError(t, handler.HandleEvent(context.Background(), event))
		assert.Equal(t, []uuid.UUID{event.JobID}, notifier.failed)
	})

	t.Run("non-terminal transitions are ignored", func(t *testing.T) {
		t.Parallel()
		notifier := &recordingNotifier{}
		handler := notification.NewEventHandler(notifier, logger)

		for _, status := range []domain.JobStatus{
			domain.JobStatusPending,
			domain.JobStatusProcessing,
			domain.JobStatusCancelled,
		} {
			require.NoError(t, handler.HandleEvent(context.Background(), testEvent(status, "")))
		}
		assert.Empty(t, notifier.completed)
		assert.Empty(t, notifier.failed)
	})

	t.Run("delivery failure is swallowed", func(t *testing.T) {
		t.Parallel()
		notifier := &recordingNotifier{err: errors.New("smtp down")}
		handler := notification.NewEventHandler(notifier, logger)

		assert.NoError(t, handler.HandleEvent(context.Background(),
			testEvent(domain.JobStatusCompleted, "")))
	})
}

func TestLogNotifier(t *testing.T) {
	t.Parallel()

	notifier := notification.NewLogNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
	job := &domain.Job{ID: uuid.New(), UserID: uuid.New(), JobType: domain.JobTypeJobAnalysis}

	assert.NoError(t, notifier.NotifyJobCompleted(context.Background(), job))
	assert.NoError(t, notifier.NotifyJobFailed(context.Background(), job))
}
