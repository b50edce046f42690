package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/talentforge/talentforge-api/internal/domain"
	"github.com/talentforge/talentforge-api/internal/platform/logger"
	"github.com/talentforge/talentforge-api/internal/store"
)

// PostgresJobLogStore implements the store.JobLogStore interface using
// PostgreSQL. The job_logs table is append-only; this store exposes no
// update or delete operations.
type PostgresJobLogStore struct {
	db store.DBTX
}

// NewPostgresJobLogStore creates a new PostgresJobLogStore.
func NewPostgresJobLogStore(db store.DBTX) *PostgresJobLogStore {
	return &PostgresJobLogStore{db: db}
}

// WithTx returns a new JobLogStore bound to the provided transaction.
func (s *PostgresJobLogStore) WithTx(tx *sql.Tx) store.JobLogStore {
	return &PostgresJobLogStore{db: tx}
}

// Append writes one log entry.
func (s *PostgresJobLogStore) Append(ctx context.Context, entry *domain.LogEntry) error {
	log := logger.FromContext(ctx)

	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal log metadata: %w", err)
	}

	query := `
		INSERT INTO job_logs (id, job_id, log_level, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = s.db.ExecContext(ctx, query,
		entry.ID, entry.JobID, entry.Level, entry.Message, metadata, entry.CreatedAt)
	if err != nil {
		log.Error("failed to append job log entry",
			"job_id", entry.JobID,
			"level", entry.Level,
			"error", err)
		return MapError(err)
	}

	return nil
}

// ListForJob returns the job's log entries ordered by created_at.
func (s *PostgresJobLogStore) ListForJob(ctx context.Context, jobID uuid.UUID) ([]*domain.LogEntry, error) {
	query := `
		SELECT id, job_id, log_level, message, metadata, created_at
		FROM job_logs
		WHERE job_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query job logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*domain.LogEntry
	for rows.Next() {
		var (
			entry    domain.LogEntry
			metadata []byte
		)

		err := rows.Scan(&entry.ID, &entry.JobID, &entry.Level, &entry.Message, &metadata, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log row: %w", err)
		}

		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal log metadata: %w", err)
			}
		}

		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log rows: %w", err)
	}

	return entries, nil
}
