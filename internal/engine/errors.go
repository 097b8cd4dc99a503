package engine

import "errors"

var (
	// ErrTaskNotFound is returned for task ids the engine never accepted.
	ErrTaskNotFound = errors.New("task not found")

	// ErrShutdown is returned for submissions after Shutdown was called.
	ErrShutdown = errors.New("engine is shut down")

	// ErrInvalidRequest is returned for requests that cannot be accepted.
	ErrInvalidRequest = errors.New("invalid task request")
)
