package eventpipe

import "errors"

// Sentinel errors for the pipeline lifecycle.
var (
	// ErrClosed indicates the pipeline has been closed.
	ErrClosed = errors.New("pipeline closed")

	// ErrAlreadyInitialized indicates Initialize was called twice.
	ErrAlreadyInitialized = errors.New("pipeline already initialized")
)
