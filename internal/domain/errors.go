// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrEmptyJobID is returned when a job ID is missing.
	ErrEmptyJobID = fmt.Errorf("%w: job ID cannot be empty", ErrValidation)

	// ErrEmptyJobUserID is returned when a job has no owner.
	ErrEmptyJobUserID = fmt.Errorf("%w: job user ID cannot be empty", ErrValidation)

	// ErrInvalidJobType is returned when a job type is not one of the
	// supported types.
	ErrInvalidJobType = fmt.Errorf("%w: unknown job type", ErrValidation)

	// ErrInvalidJobStatus is returned when a job status is not valid.
	ErrInvalidJobStatus = fmt.Errorf("%w: invalid job status", ErrValidation)

	// ErrInvalidStepStatus is returned when a step status is not valid.
	ErrInvalidStepStatus = fmt.Errorf("%w: invalid step status", ErrValidation)

	// ErrInvalidPriority is returned when a priority is outside 1..10.
	ErrInvalidPriority = fmt.Errorf(
		"%w: priority must be between %d and %d", ErrValidation, MinPriority, MaxPriority)

	// ErrInvalidMaxRetries is returned when max retries is outside 0..10.
	ErrInvalidMaxRetries = fmt.Errorf(
		"%w: max retries must be between 0 and %d", ErrValidation, MaxMaxRetries)

	// ErrInvalidProgress is returned when a progress percentage is
	// outside 0..100.
	ErrInvalidProgress = fmt.Errorf(
		"%w: progress must be between 0 and 100", ErrValidation)

	// ErrInvalidTransition is returned when a requested status change is
	// not allowed by the job state machine. The record is left unchanged.
	ErrInvalidTransition = errors.New("illegal job status transition")
)
