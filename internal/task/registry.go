package task

import (
	"fmt"

	"github.com/talentforge/talentforge-api/internal/domain"
)

// Registry maps job types to their handlers. It is populated once at
// startup and read-only afterwards, so lookups need no locking.
type Registry struct {
	handlers map[domain.JobType]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[domain.JobType]Handler)}
}

// Register adds a handler. Registering a second handler for the same
// job type is a wiring mistake and returns an error.
func (r *Registry) Register(handler Handler) error {
	jobType := handler.JobType()
	if !domain.IsValidJobType(jobType) {
		return fmt.Errorf("cannot register handler for unknown job type %q", jobType)
	}
	if _, exists := r.handlers[jobType]; exists {
		return fmt.Errorf("handler for job type %q already registered", jobType)
	}
	r.handlers[jobType] = handler
	return nil
}

// Resolve returns the handler for the given job type.
func (r *Registry) Resolve(jobType domain.JobType) (Handler, error) {
	handler, ok := r.handlers[jobType]
	if !ok {
		return nil, fmt.Errorf("no handler registered for job type %q", jobType)
	}
	return handler, nil
}
