// Package notification delivers terminal-status notices for jobs.
// Delivery is fire and forget: a failed notification is logged and never
// affects the job's own outcome.
package notification

import (
	"context"
	"log/slog"

	"github.com/talentforge/talentforge-api/internal/domain"
)

// Notifier is the delivery channel for job outcome notices.
type Notifier interface {
	// NotifyJobCompleted reports a successful job to its owner.
	NotifyJobCompleted(ctx context.Context, job *domain.Job) error

	// NotifyJobFailed reports a permanently failed job to its owner.
	NotifyJobFailed(ctx context.Context, job *domain.Job) error
}

// LogNotifier writes notices to the structured log. It stands in for a
// real channel (email, webhook) in deployments that have none configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{
		logger: logger.With(slog.String("component", "notifier")),
	}
}

// NotifyJobCompleted implements Notifier.
func (n *LogNotifier) NotifyJobCompleted(ctx context.Context, job *domain.Job) error {
	n.logger.InfoContext(ctx, "job completed notification",
		"job_id", job.ID,
		"user_id", job.UserID,
		"job_type", job.JobType)
	return nil
}

// NotifyJobFailed implements Notifier.
func (n *LogNotifier) NotifyJobFailed(ctx context.Context, job *domain.Job) error {
	n.logger.WarnContext(ctx, "job failed notification",
		"job_id", job.ID,
		"user_id", job.UserID,
		"job_type", job.JobType,
		"error_message", job.ErrorMessage)
	return nil
}
