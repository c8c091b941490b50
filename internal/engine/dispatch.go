package engine

import "time"

// ErrTimedOut is returned by Dispatch when timeoutMs elapses with no
// Break requested.
var ErrTimedOut = newEngineError("dispatch timed out")

// ErrBreak is returned by Dispatch once it observes a pending Break
// request. Break is edge-triggered: a
// single request unblocks at most one in-flight (or the next) call.
var ErrBreak = newEngineError("dispatch break")

// forever stands in for "no overall timeout" when sleeping on sema;
// individual waits are still bounded by the nearest event deadline.
const forever = 365 * 24 * time.Hour

// Break requests that the nearest Dispatch call (in-flight or the
// next one) return ErrBreak instead of continuing to process events.
// Safe to call from any context, including a signal handler.
func (q *Queue) Break() {
	q.queueMu.Lock()
	q.breakRequested = true
	q.queueMu.Unlock()
	if q.sema != nil {
		q.sema.Signal()
	}
}

// Dispatch always returns ErrTimedOut or ErrBreak — there is no
// "clean" return. It runs due
// callbacks until a Break is observed or timeoutMs milliseconds
// elapse:
//
//   - timeoutMs < 0 blocks indefinitely, waking on every new deadline.
//   - timeoutMs == 0 drains whatever is already due (no blocking) and
//     then immediately returns ErrTimedOut.
//   - timeoutMs > 0 blocks for at most that long.
//
// Periodic events are re-armed for their next deadline before their
// callback returns control to the loop; one-shot dynamic events are
// deallocated (destructor, then arena release) immediately after their
// callback runs. Callbacks run with no lock held.
func (q *Queue) Dispatch(timeoutMs int32) error {
	start := q.now()
	q.infof("dispatch: entering, timeout_ms=%d", timeoutMs)
	for {
		q.queueMu.Lock()
		if q.breakRequested {
			q.breakRequested = false
			q.queueMu.Unlock()
			q.infof("dispatch: break observed")
			return ErrBreak
		}
		expired := q.dequeueLocked(q.now())
		q.queueMu.Unlock()

		if expired != noRef {
			q.runExpired(expired)
		}

		// Evaluated every iteration, not just when the queue went idle:
		// a periodic event whose callback outlasts its own period keeps
		// dequeueLocked returning non-empty forever, and that must not
		// starve the timeout/break check below.
		var remainingDur time.Duration
		if timeoutMs >= 0 {
			elapsed := int32(q.now() - start)
			remaining := timeoutMs - elapsed
			if remaining <= 0 {
				q.queueMu.Lock()
				q.notifyBackgroundLocked()
				q.queueMu.Unlock()
				q.infof("dispatch: timed out, timeout_ms=%d", timeoutMs)
				return ErrTimedOut
			}
			remainingDur = time.Duration(remaining) * time.Millisecond
		}

		if expired != noRef {
			continue // keep draining; more may already be due
		}

		q.queueMu.Lock()
		next := q.nextDeadlineLocked(q.now())
		q.queueMu.Unlock()

		wait := forever
		if next >= 0 {
			wait = time.Duration(next) * time.Millisecond
		}
		if timeoutMs >= 0 && wait > remainingDur {
			wait = remainingDur
		}

		if q.sema == nil {
			return ErrTimedOut
		}
		q.sema.Wait(wait)
	}
}

// runExpired invokes each callback in the flattened expired list (in
// FIFO arrival order, per slot deadline), re-arming periodic events
// and releasing one-shot dynamic ones. Runs with no lock held.
func (q *Queue) runExpired(head int32) {
	idx := head
	for idx != noRef {
		s := &q.slots.slots[idx]
		next := s.next
		s.next = noRef

		cb := s.cb
		period := s.period
		isStatic := s.size == 0

		if period < 0 && isStatic {
			// One-shot static events go idle before their callback runs,
			// so the callback may re-post them; the caller owns the
			// storage and decides when (or whether) to Dealloc it.
			q.queueMu.Lock()
			s.pending = false
			q.queueMu.Unlock()
		}

		if cb != nil {
			start := time.Now()
			cb(payloadPointer(q, idx))
			if q.obs != nil {
				q.obs.ObserveDispatch(1, uint64(time.Since(start).Nanoseconds()))
			}
		}

		if period >= 0 {
			if period == 0 {
				if s.zeroStreak < 2 {
					s.zeroStreak++
					if s.zeroStreak == 2 {
						q.warnf("dispatch: event re-arming at period=0 monopolizes dispatch, id=%d", q.slots.publicID(idx))
					}
				}
			} else {
				s.zeroStreak = 0
			}
			q.queueMu.Lock()
			q.debugf("dispatch: re-arming periodic event, id=%d, period_ms=%d", q.slots.publicID(idx), period)
			q.enqueueLocked(idx, q.tick+uint32(period))
			q.queueMu.Unlock()
		} else if !isStatic {
			q.debugf("dispatch: releasing one-shot event, id=%d", q.slots.publicID(idx))
			q.Dealloc(&Handle{q: q, idx: idx})
		}

		idx = next
	}
}
