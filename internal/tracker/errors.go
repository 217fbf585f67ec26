package tracker

import "errors"

var (
	// ErrBlankQuery is returned by Intake.Submit for whitespace-only input.
	// Callers treat it as a no-op.
	ErrBlankQuery = errors.New("research query is blank")

	ErrDuplicateID  = errors.New("duplicate job id")
	ErrNotFound     = errors.New("job not found")
	ErrJobCompleted = errors.New("job already completed")
	ErrLoopStopped  = errors.New("event loop stopped")
)
