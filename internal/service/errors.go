package service

import (
	"errors"
	"fmt"
)

// Common service errors - sentinel errors used across service implementations.
// Callers check these with errors.Is(); the API layer maps them to HTTP
// status codes.
var (
	// ErrJobNotFound indicates the job does not exist or belongs to
	// another user. API layer should map this to HTTP 404 Not Found.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobProcessing indicates the operation is not allowed while the
	// job is being processed. API layer should map this to HTTP 409 Conflict.
	ErrJobProcessing = errors.New("job is currently processing")

	// ErrInvalidJobState indicates the job's current status does not
	// allow the requested operation. API layer should map this to HTTP
	// 409 Conflict.
	ErrInvalidJobState = errors.New("job state does not allow this operation")

	// ErrInvalidBatch indicates a bulk request that is empty, too large,
	// or structurally invalid. API layer should map this to HTTP 400.
	ErrInvalidBatch = errors.New("invalid bulk job batch")
)

// JobServiceError wraps unexpected errors from the job service with
// operation context.
type JobServiceError struct {
	// Operation is the operation that failed (e.g., "create_job", "retry_job")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for JobServiceError.
func (e *JobServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("job service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("job service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *JobServiceError) Unwrap() error {
	return e.Err
}

// newJobServiceError wraps err with operation context. Service sentinels
// pass through unchanged so callers can still match them.
func newJobServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrJobNotFound, ErrJobProcessing, ErrInvalidJobState, ErrInvalidBatch} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return &JobServiceError{Operation: operation, Message: message, Err: err}
}
