package sched

import "errors"

// Sentinel errors returned by the scheduling core. Callers match them with
// errors.Is; the concrete messages wrap these with context.
var (
	// ErrValidation marks a request rejected before entering the system:
	// priority or resource request outside the configured bounds.
	ErrValidation = errors.New("validation failed")

	// ErrQueueFull is returned by Enqueue when the queue is at MaxQueueSize.
	// The deployment is not created and the condition surfaces to the caller.
	ErrQueueFull = errors.New("queue full")

	// ErrAlreadyQueued is returned when a deployment that already holds a
	// queue entry is enqueued again. A deployment appears in at most one
	// entry at a time.
	ErrAlreadyQueued = errors.New("deployment already queued")

	// ErrInsufficientResources is returned by Reserve when the cluster can no
	// longer admit the request. Scheduler-internal and transient: the entry
	// stays queued and is retried on subsequent ticks.
	ErrInsufficientResources = errors.New("insufficient resources")

	// ErrNotFound is returned when an operation references an id that is not
	// in the expected collection or state.
	ErrNotFound = errors.New("not found")

	// ErrClusterExists is returned when registering a cluster id twice.
	ErrClusterExists = errors.New("cluster already registered")

	// ErrClusterBusy is returned when deregistering a cluster that still
	// holds active reservations.
	ErrClusterBusy = errors.New("cluster has active deployments")

	// ErrInvalidTransition marks an illegal deployment state change, such as
	// cancelling a completed deployment.
	ErrInvalidTransition = errors.New("invalid state transition")
)
