// Package domain holds the core job queue entities: jobs, their pipeline
// steps, event log entries, and dashboard aggregates, together with the
// status state machines and validation rules they must obey. It has no
// dependency on storage, transport, or any other infrastructure.
package domain
