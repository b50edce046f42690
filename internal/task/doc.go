// Package task contains the background processing engine: the worker
// pool that claims jobs from the queue, the processor that drives a
// claimed job through its step pipeline, and the per-type step handlers.
//
// Workers poll the job store rather than sharing an in-memory queue, so
// any number of processes can run workers against the same database.
// The claim operation is atomic at the store level; a job is executed by
// at most one worker at a time.
package task
