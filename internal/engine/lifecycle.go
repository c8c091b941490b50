package engine

// Close disarms the background hook, runs destructors on every live
// event (queued or merely allocated), releases their storage, and
// closes the queue's signal).
func (q *Queue) Close() error {
	q.infof("close: destroying queue, capacity=%d", q.Capacity())
	q.queueMu.Lock()
	q.head = noRef
	q.bg = background{}
	q.queueMu.Unlock()

	released := 0
	for idx := int32(0); idx < int32(len(q.slots.slots)); idx++ {
		if !q.slots.slots[idx].inUse {
			continue
		}
		q.runDtor(idx)
		q.freeSlot(idx)
		released++
	}
	q.debugf("close: released %d live events", released)

	if q.sema != nil {
		return q.sema.Close()
	}
	return nil
}
