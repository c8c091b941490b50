package engine

import "github.com/chazlever/equeue/internal/tick"

// Post arms h for dispatch, computing its absolute deadline from the
// live tick plus the delay set via SetDelay. For a
// static event that is already pending, Post is a no-op returning
// ErrInval rather than double-linking the slot.
//
// Post may be called from an interrupt/signal-handler context; it
// takes only queueMu, never memlock.
func (q *Queue) Post(h *Handle, cb Callback) (uint32, error) {
	q.queueMu.Lock()

	s := &q.slots.slots[h.idx]
	if s.size == 0 {
		if s.pending {
			q.queueMu.Unlock()
			return 0, ErrInval
		}
		s.pending = true
	}

	s.cb = cb
	delay := s.deadline
	// q.tick is only advanced inside dequeueLocked, so it can be stale
	// by however long the dispatcher has been asleep; using it here
	// would measure delay from that stale point and fire early. Anchor
	// to the live clock instead.
	deadline := q.now() + delay
	q.enqueueLocked(h.idx, deadline)
	id := q.slots.publicID(h.idx)
	q.debugf("post: armed event, id=%d, delay_ms=%d", id, delay)

	if q.ticker != nil {
		// Tick advances independently of dispatch; re-derive the nearest
		// deadline against the live clock so a newly-armed earlier event
		// still wakes a sleeping dispatcher promptly.
		q.notifyBackgroundLocked()
	}
	q.queueMu.Unlock()

	if q.obs != nil {
		q.obs.ObservePost(int32(delay))
	}
	if q.sema != nil {
		q.sema.Signal()
	}
	return id, nil
}

// Cancel removes the event named by id if it has not already been
// claimed by the current dispatch pass. Returns
// ErrNoEnt via ok=false when id is stale, unknown, or already
// in-flight.
func (q *Queue) Cancel(id uint32) bool {
	idx, ok := q.slots.lookup(id)
	if !ok {
		q.warnf("cancel: stale or unknown id=%d", id)
		return false
	}
	expected := uint8(id >> q.slots.npw2)

	q.queueMu.Lock()
	removed := q.unqueueLocked(idx, expected)
	if removed {
		q.slots.slots[idx].pending = false
	}
	q.queueMu.Unlock()

	if !removed {
		q.warnf("cancel: id=%d already claimed by dispatch or not queued", id)
	}
	if q.obs != nil {
		q.obs.ObserveCancel(removed)
	}
	return removed
}

// TimeLeft returns the number of milliseconds remaining before the
// event named by id is due, or ok=false if id is stale, unknown, or
// not currently queued.
func (q *Queue) TimeLeft(id uint32) (ms int32, ok bool) {
	idx, found := q.slots.lookup(id)
	if !found {
		return 0, false
	}
	expected := uint8(id >> q.slots.npw2)

	q.queueMu.Lock()
	defer q.queueMu.Unlock()

	s := &q.slots.slots[idx]
	if !s.inUse || s.id != expected || s.ref == nil {
		return 0, false
	}
	return tick.Clamp(s.deadline, q.now()), true
}
