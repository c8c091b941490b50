// Package tick implements the wrapping 32-bit millisecond arithmetic
// that the event queue uses for all deadline comparisons. A tick
// source is expected to overflow silently back to 0; Diff and Clamp
// are the only safe ways to compare two ticks.
package tick

import (
	"sync/atomic"
	"time"
)

// Diff returns the signed difference a-b, interpreted as a wrapping
// 32-bit quantity. A positive result means a is ahead of b (a is in
// the future relative to b); negative means a is behind b. This gives
// a usable forward range of 2^31-1 ms (~24.8 days) before ambiguity.
func Diff(a, b uint32) int32 {
	return int32(a - b)
}

// Clamp returns max(0, Diff(a, b)). Used wherever a negative delay
// would be nonsensical (e.g. scheduling relative to "now").
func Clamp(a, b uint32) int32 {
	d := Diff(a, b)
	if d < 0 {
		return 0
	}
	return d
}

// RealTicker is the default host tick source: milliseconds elapsed
// since the ticker was first read, truncated to uint32 so it wraps on
// the same 32-bit boundary Diff and Clamp assume. The start instant is
// initialised lazily and idempotently on first use — the only global
// state here is that shared start point.
type RealTicker struct {
	start atomic.Int64 // UnixNano of first Tick() call, 0 until set
}

// Tick returns the current wrapping millisecond count.
func (t *RealTicker) Tick() uint32 {
	now := time.Now().UnixNano()
	start := t.start.Load()
	if start == 0 {
		if t.start.CompareAndSwap(0, now) {
			start = now
		} else {
			start = t.start.Load()
		}
	}
	elapsedMs := (now - start) / int64(time.Millisecond)
	return uint32(elapsedMs)
}
