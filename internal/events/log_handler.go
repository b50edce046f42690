package events

import (
	"context"
	"log/slog"

	"github.com/talentforge/talentforge-api/internal/domain"
)

// LogHandler is the default notification handler. It records terminal
// job transitions to the structured log, which is where user-facing
// notification delivery (email, push) would hook in.
type LogHandler struct {
	logger *slog.Logger
}

// NewLogHandler creates a LogHandler.
func NewLogHandler(logger *slog.Logger) *LogHandler {
	return &LogHandler{logger: logger.With("component", "job_event_log_handler")}
}

// HandleEvent logs the event. Failures log at error level, everything
// else at info.
func (h *LogHandler) HandleEvent(ctx context.Context, event *JobEvent) error {
	attrs := []any{
		"job_id", event.JobID,
		"user_id", event.UserID,
		"job_type", event.JobType,
		"status", event.Status,
	}
	if event.Message != "" {
		attrs = append(attrs, "message", event.Message)
	}

	if event.Status == domain.JobStatusFailed {
		h.logger.ErrorContext(ctx, "job finished", attrs...)
	} else {
		h.logger.InfoContext(ctx, "job finished", attrs...)
	}

	return nil
}
