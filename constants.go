package equeue

import "github.com/chazlever/equeue/internal/constants"

// Re-exported defaults; see internal/constants for rationale.
const (
	DefaultCapacity   = constants.DefaultCapacity
	DefaultBufferSize = constants.DefaultBufferSize
	MinEventSize      = constants.MinEventSize

	// Version is major<<16|minor, mirroring original_source/equeue.h's
	// EQUEUE_VERSION compatibility constant.
	Version = constants.Version
)
