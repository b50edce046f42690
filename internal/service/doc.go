// Package service provides application-level services for managing jobs.
// Services own the business rules around the queue (what may be
// cancelled, retried, updated, or deleted, and by whom) and compose the
// store operations into transactions; persistence details stay in the
// store implementations and processing details in the task package.
package service
