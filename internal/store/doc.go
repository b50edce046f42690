// Package store defines the persistence interfaces for the job queue:
// job records, pipeline steps, event logs, and dashboard statistics.
// Implementations live under internal/platform; callers depend only on
// these interfaces and the sentinel errors declared here.
package store
