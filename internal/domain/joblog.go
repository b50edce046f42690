package domain

import (
	"time"

	"github.com/google/uuid"
)

// LogLevel classifies a job log entry.
type LogLevel string

// Possible log levels
const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// LogEntry is one immutable, append-only diagnostic record for a job.
// Entries are never updated or deleted and are not used for control flow.
type LogEntry struct {
	ID        uuid.UUID      `json:"id"`
	JobID     uuid.UUID      `json:"job_id"`
	Level     LogLevel       `json:"level"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewLogEntry creates a log entry for the given job.
func NewLogEntry(jobID uuid.UUID, level LogLevel, message string, metadata map[string]any) *LogEntry {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &LogEntry{
		ID:        uuid.New(),
		JobID:     jobID,
		Level:     level,
		Message:   message,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
}
