package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrJobPanicked wraps a panic recovered from a connection job
	ErrJobPanicked = errors.New("sync job panicked")

	// ErrSyncAlreadyInProgress is returned when a triggered run overlaps the
	// previous one
	ErrSyncAlreadyInProgress = errors.New("periodic sync already in progress")
)
