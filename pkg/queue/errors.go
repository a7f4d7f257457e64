package queue

import "errors"

// Common errors
var (
	// ErrRepositoryNil is returned when a nil repository is provided
	ErrRepositoryNil = errors.New("repository cannot be nil")

	// ErrPayloadNil is returned when attempting to enqueue a nil payload
	ErrPayloadNil = errors.New("payload cannot be nil")

	// ErrPayloadMarshal is returned when payload marshaling fails
	ErrPayloadMarshal = errors.New("failed to marshal payload to JSON")

	// ErrResultMarshal is returned when a handler result cannot be stored
	ErrResultMarshal = errors.New("failed to marshal job result to JSON")

	// ErrHandlerNotFound is returned when no handler is registered for a job
	ErrHandlerNotFound = errors.New("no handler registered for job")

	// ErrNoHandlers is returned when worker has no handlers registered
	ErrNoHandlers = errors.New("no job handlers registered")

	// ErrNoJobToClaim is returned by storage when nothing is ready to run
	ErrNoJobToClaim = errors.New("no job to claim")

	// ErrJobNotFound is returned when a job id is unknown or already pruned
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotProcessing is returned when completing or failing a job the caller does not hold
	ErrJobNotProcessing = errors.New("job is not in processing state")

	// ErrJobNotOwned is returned when a worker reports on a job whose lock it lost
	ErrJobNotOwned = errors.New("job is locked by another worker")

	// ErrLockExpired is recorded on jobs whose last attempt outlived its lock
	ErrLockExpired = errors.New("lock expired")

	// ErrWorkerAlreadyStarted is returned by Start on a running worker
	ErrWorkerAlreadyStarted = errors.New("worker already started")

	// ErrWorkerNotStarted is returned by Stop on an idle worker
	ErrWorkerNotStarted = errors.New("worker not started")
)
