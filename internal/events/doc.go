// Package events provides types and interfaces for job lifecycle events.
//
// Workers emit an event whenever a job reaches a terminal status or goes
// back to pending for a retry. Handlers subscribe without the emitter
// knowing who they are, which keeps the processing pipeline decoupled
// from notification concerns.
package events
