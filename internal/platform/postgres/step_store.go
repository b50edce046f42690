package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/talentforge/talentforge-api/internal/domain"
	"github.com/talentforge/talentforge-api/internal/platform/logger"
	"github.com/talentforge/talentforge-api/internal/store"
)

// PostgresStepStore implements the store.StepStore interface using PostgreSQL.
type PostgresStepStore struct {
	db store.DBTX
}

// NewPostgresStepStore creates a new PostgresStepStore.
func NewPostgresStepStore(db store.DBTX) *PostgresStepStore {
	return &PostgresStepStore{db: db}
}

// WithTx returns a new StepStore bound to the provided transaction.
func (s *PostgresStepStore) WithTx(tx *sql.Tx) store.StepStore {
	return &PostgresStepStore{db: tx}
}

// CreateForJob inserts the job's pending step rows in one statement.
func (s *PostgresStepStore) CreateForJob(ctx context.Context, steps []*domain.Step) error {
	if len(steps) == 0 {
		return nil
	}

	log := logger.FromContext(ctx)

	const fieldsPerStep = 8
	placeholders := make([]string, 0, len(steps))
	args := make([]any, 0, len(steps)*fieldsPerStep)

	for i, step := range steps {
		stepData, err := json.Marshal(step.StepData)
		if err != nil {
			return fmt.Errorf("failed to marshal step data: %w", err)
		}

		base := i * fieldsPerStep
		placeholders = append(placeholders, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8))
		args = append(args,
			step.ID, step.JobID, step.StepName, step.StepOrder,
			step.Status, stepData, step.CreatedAt, step.UpdatedAt)
	}

	query := `
		INSERT INTO job_steps (id, job_id, step_name, step_order, status,
			step_data, created_at, updated_at)
		VALUES ` + strings.Join(placeholders, ", ")

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		log.Error("failed to create job steps",
			"job_id", steps[0].JobID,
			"step_count", len(steps),
			"error", err)
		return MapError(err)
	}

	return nil
}

// SetStatus updates one step's status and progress. Entering processing
// stamps started_at; any exit status stamps completed_at.
func (s *PostgresStepStore) SetStatus(
	ctx context.Context,
	jobID uuid.UUID,
	stepName string,
	status domain.StepStatus,
	progress int,
	errorMessage string,
) error {
	if progress < 0 || progress > 100 {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrInvalidProgress)
	}

	set := []string{
		"status = $1",
		"progress_percentage = $2",
		"error_message = NULLIF($3, '')",
		"updated_at = NOW()",
	}
	switch status {
	case domain.StepStatusProcessing:
		set = append(set, "started_at = NOW()")
	case domain.StepStatusCompleted, domain.StepStatusFailed, domain.StepStatusSkipped:
		set = append(set, "completed_at = NOW()")
	}

	query := fmt.Sprintf(
		"UPDATE job_steps SET %s WHERE job_id = $4 AND step_name = $5",
		strings.Join(set, ", "))

	result, err := s.db.ExecContext(ctx, query, status, progress, errorMessage, jobID, stepName)
	if err != nil {
		return fmt.Errorf("failed to update step status: %w", MapError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrStepNotFound
	}

	return nil
}

// ResetForJob returns all of the job's steps to pending for a retry.
func (s *PostgresStepStore) ResetForJob(ctx context.Context, jobID uuid.UUID) error {
	query := `
		UPDATE job_steps
		SET status = $1, progress_percentage = 0, error_message = NULL,
			started_at = NULL, completed_at = NULL, updated_at = NOW()
		WHERE job_id = $2
	`

	if _, err := s.db.ExecContext(ctx, query, domain.StepStatusPending, jobID); err != nil {
		return fmt.Errorf("failed to reset steps: %w", MapError(err))
	}

	return nil
}

// ListForJob returns the job's steps ordered by step_order.
func (s *PostgresStepStore) ListForJob(ctx context.Context, jobID uuid.UUID) ([]*domain.Step, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, job_id, step_name, step_order, status, progress_percentage,
			step_data, error_message, started_at, completed_at, created_at, updated_at
		FROM job_steps
		WHERE job_id = $1
		ORDER BY step_order ASC
	`

	rows, err := s.db.QueryContext(ctx, query, jobID)
	if err != nil {
		log.Error("failed to query job steps", "job_id", jobID, "error", err)
		return nil, fmt.Errorf("failed to query job steps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var steps []*domain.Step
	for rows.Next() {
		var (
			step         domain.Step
			stepData     []byte
			errorMessage sql.NullString
			startedAt    sql.NullTime
			completedAt  sql.NullTime
		)

		err := rows.Scan(
			&step.ID, &step.JobID, &step.StepName, &step.StepOrder,
			&step.Status, &step.ProgressPercentage, &stepData, &errorMessage,
			&startedAt, &completedAt, &step.CreatedAt, &step.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step row: %w", err)
		}

		step.ErrorMessage = errorMessage.String
		if startedAt.Valid {
			step.StartedAt = &startedAt.Time
		}
		if completedAt.Valid {
			step.CompletedAt = &completedAt.Time
		}
		if len(stepData) > 0 {
			if err := json.Unmarshal(stepData, &step.StepData); err != nil {
				return nil, fmt.Errorf("failed to unmarshal step data: %w", err)
			}
		}

		steps = append(steps, &step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating step rows: %w", err)
	}

	return steps, nil
}
