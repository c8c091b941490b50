// Package equeuetest exports a small test harness for code built on
// equeue: a manually-steppable Ticker and a real, blockable Signal,
// standing in for the host-contract fakes this domain needs in tests.
package equeuetest

import (
	"sync"
	"sync/atomic"
	"time"
)

// FakeTicker is a manually-advanced interfaces.Ticker: tests Set or
// Advance it directly instead of waiting on wall-clock time, making
// tick-overflow and delay-ordering scenarios exact and fast.
type FakeTicker struct {
	now atomic.Uint32
}

// NewFakeTicker creates a ticker starting at the given tick.
func NewFakeTicker(start uint32) *FakeTicker {
	t := &FakeTicker{}
	t.now.Store(start)
	return t
}

// Tick implements interfaces.Ticker.
func (t *FakeTicker) Tick() uint32 { return t.now.Load() }

// Set pins the ticker to an absolute value (e.g. near the uint32 wrap
// boundary, for tick-overflow property tests).
func (t *FakeTicker) Set(ms uint32) { t.now.Store(ms) }

// Advance moves the ticker forward by delta milliseconds, wrapping the
// same way the 32-bit tick source does.
func (t *FakeTicker) Advance(delta uint32) uint32 {
	for {
		cur := t.now.Load()
		next := cur + delta
		if t.now.CompareAndSwap(cur, next) {
			return next
		}
	}
}

// FakeSignal is a real, blockable binary signal backed by a buffered
// channel — unlike FakeTicker, dispatch-blocking tests need actual
// wakeups, just without eventfd/eventfd's interrupt-context ceremony.
type FakeSignal struct {
	mu        sync.Mutex
	ch        chan struct{}
	closed    bool
	signalled atomic.Uint64
}

// NewFakeSignal creates a ready-to-use FakeSignal.
func NewFakeSignal() *FakeSignal {
	return &FakeSignal{ch: make(chan struct{}, 1)}
}

// Signal implements interfaces.Signal.
func (s *FakeSignal) Signal() {
	s.signalled.Add(1)
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Wait implements interfaces.Signal.
func (s *FakeSignal) Wait(timeout time.Duration) bool {
	if timeout < 0 {
		_, ok := <-s.ch
		return ok
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case _, ok := <-s.ch:
		return ok
	case <-t.C:
		return false
	}
}

// Close implements interfaces.Signal.
func (s *FakeSignal) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

// SignalCount returns how many times Signal has been called, for
// assertions that a post/cancel woke (or didn't wake) the dispatcher.
func (s *FakeSignal) SignalCount() uint64 { return s.signalled.Load() }
