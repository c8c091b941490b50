//go:build linux

// Package uring implements an optional hardware-timer-backed
// Background driver: instead of a goroutine blocked on
// interfaces.Signal.Wait, UringTimer arms a single-shot
// IORING_OP_TIMEOUT SQE for the queue's nearest deadline and signals
// dispatch readiness on completion.
package uring

import (
	"sync"
	"time"

	"github.com/pawelgaczynski/giouring"
	"golang.org/x/sys/unix"

	"github.com/chazlever/equeue/internal/logging"
)

// UringTimer arms one outstanding IORING_OP_TIMEOUT completion at a
// time and calls wake when the most recently armed timeout completes;
// completions of superseded timeouts are ignored. It implements the engine.BackgroundHook signature via Hook.
type UringTimer struct {
	mu     sync.Mutex
	ring   *giouring.Ring
	logger *logging.Logger

	armedGen uint64
	stopCh   chan struct{}
	wake     func()
}

// NewUringTimer creates a timer ring with a small fixed queue depth —
// only ever one timeout SQE is in flight at a time, so depth 4 leaves
// headroom for a cancel racing a re-arm.
func NewUringTimer(wake func()) (*UringTimer, error) {
	ring, err := giouring.CreateRing(4)
	if err != nil {
		return nil, err
	}
	t := &UringTimer{
		ring:   ring,
		logger: logging.Default(),
		stopCh: make(chan struct{}),
		wake:   wake,
	}
	go t.completionLoop()
	return t, nil
}

// Hook is an engine.BackgroundHook: ms is the clamped delay to the
// queue's nearest deadline, or -1 when idle. Each call invalidates any
// outstanding timeout (by bumping armedGen so completionLoop ignores
// its completion) and, if ms >= 0, arms a fresh one; ms < 0 cancels
// the outstanding wait via IORING_OP_TIMEOUT_REMOVE rather than just
// disarming locally, so the kernel actually stops waiting.
func (t *UringTimer) Hook(_ any, ms int32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prevGen := t.armedGen
	t.armedGen++
	gen := t.armedGen

	if ms < 0 {
		if prevGen == 0 {
			return // nothing was ever armed
		}
		sqe := t.ring.GetSQE()
		if sqe == nil {
			t.logger.Warn("uring timer: submission queue full, dropping cancel")
			return
		}
		sqe.PrepareTimeoutRemove(prevGen, 0)
		sqe.UserData = 0
		if _, err := t.ring.Submit(); err != nil {
			t.logger.Warn("uring timer: submit cancel failed", "error", err)
		}
		return
	}

	sqe := t.ring.GetSQE()
	if sqe == nil {
		t.logger.Warn("uring timer: submission queue full, dropping re-arm")
		return
	}
	ts := unix.NsecToTimespec((time.Duration(ms) * time.Millisecond).Nanoseconds())
	sqe.PrepareTimeout(&ts, 0, 0)
	sqe.UserData = gen
	if _, err := t.ring.Submit(); err != nil {
		t.logger.Warn("uring timer: submit failed", "error", err)
	}
}

func (t *UringTimer) completionLoop() {
	for {
		select {
		case <-t.stopCh:
			return
		default:
		}
		cqe, err := t.ring.WaitCQE()
		if err != nil {
			continue
		}
		t.ring.CQESeen(cqe)
		t.mu.Lock()
		current := cqe.UserData == t.armedGen
		t.mu.Unlock()
		if current && t.wake != nil {
			t.wake()
		}
	}
}

// Close stops the completion loop and tears down the ring.
func (t *UringTimer) Close() error {
	close(t.stopCh)
	t.ring.QueueExit()
	return nil
}
