package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrMaxSubscribers indicates the bus subscriber cap was reached.
	// Surfaced to callers of Subscribe; never silently ignored.
	ErrMaxSubscribers = errors.New("maximum subscribers reached")

	// ErrWatchPath indicates a watch path is missing or not a directory.
	// Fatal at startup.
	ErrWatchPath = errors.New("invalid watch path")

	// ErrInvalidFrontmatter indicates frontmatter validation failed.
	ErrInvalidFrontmatter = errors.New("invalid frontmatter")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")
)
