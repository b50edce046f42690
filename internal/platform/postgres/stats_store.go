package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/talentforge/talentforge-api/internal/domain"
	"github.com/talentforge/talentforge-api/internal/platform/logger"
	"github.com/talentforge/talentforge-api/internal/store"
)

// PostgresStatsStore implements the store.StatsStore interface using
// PostgreSQL. All queries are read-only.
type PostgresStatsStore struct {
	db store.DBTX
}

// NewPostgresStatsStore creates a new PostgresStatsStore.
func NewPostgresStatsStore(db store.DBTX) *PostgresStatsStore {
	return &PostgresStatsStore{db: db}
}

// DashboardStats aggregates the user's queue in three read-only queries:
// status/type counts, timing averages, and the most recent jobs.
func (s *PostgresStatsStore) DashboardStats(
	ctx context.Context,
	userID uuid.UUID,
	recentLimit int,
) (*domain.DashboardStats, error) {
	log := logger.FromContext(ctx)

	stats := &domain.DashboardStats{
		JobsByType: map[string]int{},
		RecentJobs: []*domain.Job{},
	}

	// Counts per (status, job_type) in one pass.
	countRows, err := s.db.QueryContext(ctx, `
		SELECT status, job_type, COUNT(*)
		FROM job_queue
		WHERE user_id = $1
		GROUP BY status, job_type`, userID)
	if err != nil {
		log.Error("failed to query job counts", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to query job counts: %w", err)
	}
	defer func() { _ = countRows.Close() }()

	for countRows.Next() {
		var (
			status  domain.JobStatus
			jobType string
			count   int
		)
		if err := countRows.Scan(&status, &jobType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}

		stats.TotalJobs += count
		stats.JobsByType[jobType] += count
		switch status {
		case domain.JobStatusPending:
			stats.PendingJobs += count
		case domain.JobStatusProcessing:
			stats.ProcessingJobs += count
		case domain.JobStatusCompleted:
			stats.CompletedJobs += count
		case domain.JobStatusFailed:
			stats.FailedJobs += count
		case domain.JobStatusCancelled:
			stats.CancelledJobs += count
		}
	}
	if err := countRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating count rows: %w", err)
	}

	// Success rate over finished jobs only: completed / (completed + failed).
	if finished := stats.CompletedJobs + stats.FailedJobs; finished > 0 {
		stats.SuccessRate = float64(stats.CompletedJobs) / float64(finished)
	}

	// Timing averages from timestamp deltas of finished jobs.
	var avgProcessingMs, avgQueueWaitMs sql.NullFloat64
	err = s.db.QueryRowContext(ctx, `
		SELECT
			AVG(EXTRACT(EPOCH FROM (completed_at - started_at)) * 1000),
			AVG(EXTRACT(EPOCH FROM (started_at - scheduled_at)) * 1000)
		FROM job_queue
		WHERE user_id = $1
			AND started_at IS NOT NULL
			AND completed_at IS NOT NULL`, userID).
		Scan(&avgProcessingMs, &avgQueueWaitMs)
	if err != nil {
		log.Error("failed to query timing averages", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to query timing averages: %w", err)
	}
	if avgProcessingMs.Valid {
		stats.AvgProcessingTimeMs = &avgProcessingMs.Float64
	}
	if avgQueueWaitMs.Valid {
		stats.AvgQueueWaitTimeMs = &avgQueueWaitMs.Float64
	}

	if recentLimit <= 0 {
		recentLimit = 5
	}

	recent, err := NewPostgresJobStore(s.db).ListForUser(ctx, userID, store.JobFilters{Limit: recentLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to query recent jobs: %w", err)
	}
	stats.RecentJobs = recent

	return stats, nil
}
