// Package interfaces provides internal interface definitions for equeue.
// These are separate from the public API to avoid circular imports
// between the root package and the internal engine.
package interfaces

import "time"

// Ticker is the host's millisecond tick source. It must be wrapping:
// the returned value is expected to overflow back to 0 after 2^32-1,
// and callers compare ticks with signed difference, never raw ordering.
type Ticker interface {
	Tick() uint32
}

// Signal is a binary signalling primitive. Signal is safe to call from
// an interrupt or signal-handler context; Wait is not. A negative
// timeout waits indefinitely. Spurious wakeups are permitted.
type Signal interface {
	Signal()
	Wait(timeout time.Duration) bool
	Close() error
}

// Locker is a non-recursive mutual-exclusion primitive. On platforms
// where producers run in interrupt context, implementations must be
// interrupt-safe (e.g. by masking interrupts or using a spinlock).
type Locker interface {
	Lock()
	Unlock()
}

// Logger is the narrow logging surface the engine depends on.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Observer receives engine metrics. Implementations must be safe to
// call from the dispatch loop and from allocator critical sections.
type Observer interface {
	ObserveAlloc(size uint32, reused bool)
	ObserveDealloc(size uint32)
	ObserveDispatch(selected int, latencyNs uint64)
	ObserveQueueDepth(depth uint32)
	ObservePost(delayMs int32)
	ObserveCancel(ok bool)
}

