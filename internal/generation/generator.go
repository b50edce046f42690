package generation

import (
	"context"

	"github.com/google/uuid"
)

// Request describes one unit of content generation performed on behalf
// of a pipeline step.
type Request struct {
	// Task names the kind of content to produce, e.g. "profile_analysis"
	// or "cv_draft". Providers use it to select the prompt.
	Task string

	// UserID identifies the owner of the job the request belongs to.
	UserID uuid.UUID

	// JobID identifies the job the request belongs to.
	JobID uuid.UUID

	// Input carries the job's input data plus any output accumulated by
	// earlier steps in the pipeline.
	Input map[string]any
}

// Generator produces structured content for a pipeline step.
// Implementations must honor context cancellation and classify failures
// with the sentinel errors in this package (see errors.go) so callers
// can decide whether an attempt is worth retrying.
type Generator interface {
	// Generate returns the generated content as a JSON-compatible map,
	// or an error wrapping one of the package sentinels.
	Generate(ctx context.Context, req Request) (map[string]any, error)
}
