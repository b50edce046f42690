package notification

import (
	"context"
	"log/slog"

	"github.com/talentforge/talentforge-api/internal/domain"
	"github.com/talentforge/talentforge-api/internal/events"
)

// EventHandler bridges job lifecycle events to the Notifier. Only
// terminal transitions produce notices; notification failures are logged
// and swallowed so they can never fail the job.
type EventHandler struct {
	notifier Notifier
	logger   *slog.Logger
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(notifier Notifier, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		notifier: notifier,
		logger:   logger.With(slog.String("component", "notification_events")),
	}
}

// HandleEvent implements events.Handler.
func (h *EventHandler) HandleEvent(ctx context.Context, event *events.JobEvent) error {
	job := &domain.Job{
		ID:           event.JobID,
		UserID:       event.UserID,
		JobType:      event.JobType,
		Status:       event.Status,
		ErrorMessage: event.Message,
	}

	var err error
	switch event.Status {
	case domain.JobStatusCompleted:
		err = h.notifier.NotifyJobCompleted(ctx, job)
	case domain.JobStatusFailed:
		err = h.notifier.NotifyJobFailed(ctx, job)
	default:
		return nil
	}

	if err != nil {
		h.logger.WarnContext(ctx, "notification delivery failed",
			"job_id", event.JobID,
			"status", event.Status,
			"error", err)
	}
	return nil
}
