package engine

import "errors"

var (
	// ErrInvalidPath indicates a malformed or non-existent scan root.
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidConfig indicates a bad threshold or option.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConcurrency indicates index corruption or a lock failure. The
	// in-flight scan aborts; silent data loss is worse than failure.
	ErrConcurrency = errors.New("concurrency fault")

	// ErrPersistence indicates a snapshot write failure. The scan result
	// is discarded and the failure surfaced, never swallowed.
	ErrPersistence = errors.New("persistence failure")
)
