package store

import "errors"

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when a task is not in a state that
	// allows the requested change.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrTaskNotRunning is returned by UpdateHeartbeat once a task has left
	// In Progress, typically because a user cancelled it.
	ErrTaskNotRunning = errors.New("task is no longer in progress")
	// ErrInvalidReference is returned when a referenced row is missing or
	// belongs to another project.
	ErrInvalidReference = errors.New("invalid reference")
	// ErrInvalidOrder is returned when a reorder request is not a permutation
	// of the shot's rows.
	ErrInvalidOrder = errors.New("order must list every shot generation exactly once")
)
