// Package api exposes the job queue over HTTP: request decoding and
// validation, routing, error-to-status mapping, and the websocket progress
// stream. It adapts transport concerns to the internal services and never
// contains business logic of its own.
package api
