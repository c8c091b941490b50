package engine

import "github.com/chazlever/equeue/internal/tick"

// enqueueLocked inserts slot idx into the priority queue at the given
// absolute deadline. Caller must hold queueMu: walk to the first slot
// with deadline >= e.deadline; if that
// slot shares the same deadline, make e the new slot head and push the
// previous head onto e's sibling chain (dequeue later restores FIFO by
// reversing the chain); otherwise splice a brand new slot in before it.
func (q *Queue) enqueueLocked(idx int32, deadline uint32) {
	q.debugf("enqueue: slot=%d, deadline=%d", idx, deadline)
	s := &q.slots.slots[idx]
	s.deadline = deadline
	s.gen = q.generation
	s.next = noRef
	s.sibling = noRef
	s.ref = nil

	p := &q.head
	for *p != noRef {
		cur := &q.slots.slots[*p]
		if tick.Diff(cur.deadline, deadline) >= 0 {
			break
		}
		p = &cur.next
	}

	if *p != noRef && q.slots.slots[*p].deadline == deadline {
		// Same deadline: e becomes the new slot head, old head becomes
		// e's sibling (dequeue reverses the chain to restore FIFO).
		oldHeadIdx := *p
		oldHead := &q.slots.slots[oldHeadIdx]

		s.next = oldHead.next
		if s.next != noRef {
			q.slots.slots[s.next].ref = &s.next
		}
		s.sibling = oldHeadIdx
		s.ref = p
		*p = idx

		oldHead.next = noRef
		oldHead.ref = &s.sibling
	} else {
		// New slot: splice e before *p.
		s.next = *p
		s.ref = p
		if s.next != noRef {
			q.slots.slots[s.next].ref = &s.next
		}
		*p = idx
	}

	if idx == q.head {
		q.notifyBackgroundLocked()
	}
}

// unqueueLocked removes slot idx from the priority queue if, and only
// if, it has not already been selected by the current dispatch pass.
// expectedID is the counter embedded in the caller's public id.
// Returns ok=false (not found) if
// the id is stale, the slot isn't queued, or dispatch has already
// claimed it this generation.
func (q *Queue) unqueueLocked(idx int32, expectedID uint8) bool {
	s := &q.slots.slots[idx]
	if !s.inUse || s.id != expectedID || s.ref == nil {
		return false
	}

	// Defuse first: a dispatch pass that already captured s.cb into a
	// local before releasing queueMu observes the pre-clear value, so
	// this is best-effort against in-flight execution but always
	// prevents future periodic re-arms.
	s.cb = nil
	s.period = -1

	already := tick.Diff(s.deadline, q.tick) < 0 ||
		(tick.Diff(s.deadline, q.tick) == 0 && s.gen != q.generation)
	if already {
		return false
	}

	q.unlinkLocked(idx)
	return true
}

// unlinkLocked splices slot idx out of whichever list currently owns
// it, using its ref back-pointer for O(1) removal. Caller must hold
// queueMu and ensure idx is actually linked.
func (q *Queue) unlinkLocked(idx int32) {
	s := &q.slots.slots[idx]
	wasHead := idx == q.head

	if s.sibling != noRef {
		// Promote the next sibling to take this slot's position.
		sib := &q.slots.slots[s.sibling]
		sib.next = s.next
		sib.ref = s.ref
		*s.ref = s.sibling
		if s.next != noRef {
			q.slots.slots[s.next].ref = &sib.next
		}
	} else {
		*s.ref = s.next
		if s.next != noRef {
			q.slots.slots[s.next].ref = s.ref
		}
	}

	s.next = noRef
	s.sibling = noRef
	s.ref = nil

	if wasHead {
		q.notifyBackgroundLocked()
	}
}

// dequeueLocked advances the queue clock to target, splits off every
// slot whose deadline is not in the future, and flattens each expired
// slot's sibling chain (reversed, to restore FIFO arrival order) into
// a single list threaded by next. Caller must hold queueMu.
func (q *Queue) dequeueLocked(target uint32) int32 {
	q.generation++
	q.tick = target
	q.debugf("dequeue: generation=%d, tick=%d", q.generation, q.tick)

	// Find the first non-expired slot-head; everything before it is
	// the expired prefix to split off.
	idx := q.head
	prevIdx := noRef
	for idx != noRef && tick.Diff(q.slots.slots[idx].deadline, target) <= 0 {
		prevIdx = idx
		idx = q.slots.slots[idx].next
	}

	var expiredHead int32 = noRef
	if prevIdx != noRef {
		expiredHead = q.head
		q.slots.slots[prevIdx].next = noRef // cut the expired sublist's tail
	}

	q.head = idx
	if q.head != noRef {
		q.slots.slots[q.head].ref = &q.head
	}

	// Flatten: walk the expired slot-head list, reversing each slot's
	// sibling chain so dispatch order matches insertion order, then
	// thread everything into one flat list via next.
	var flatHead, flatTail int32 = noRef, noRef
	appendFlat := func(i int32) {
		if flatHead == noRef {
			flatHead = i
		} else {
			q.slots.slots[flatTail].next = i
		}
		flatTail = i
	}

	cur := expiredHead
	for cur != noRef {
		slotHead := cur
		cur = q.slots.slots[slotHead].next

		// Reverse the sibling chain (most-recently-inserted first ->
		// arrival order first).
		var rev int32 = noRef
		walk := slotHead
		for walk != noRef {
			next := q.slots.slots[walk].sibling
			q.slots.slots[walk].sibling = rev
			rev = walk
			walk = next
		}
		for rev != noRef {
			next := q.slots.slots[rev].sibling
			q.slots.slots[rev].sibling = noRef
			q.slots.slots[rev].next = noRef
			q.slots.slots[rev].ref = nil
			appendFlat(rev)
			rev = next
		}
	}

	if flatTail != noRef {
		q.slots.slots[flatTail].next = noRef
	}

	if q.obs != nil {
		q.obs.ObserveQueueDepth(uint32(q.depthLocked()))
	}

	return flatHead
}

// depthLocked counts live slot-heads currently queued (not a full
// per-event count within slots, just an O(queue length) diagnostic).
func (q *Queue) depthLocked() int {
	n := 0
	for i := q.head; i != noRef; i = q.slots.slots[i].next {
		n++
		for s := q.slots.slots[i].sibling; s != noRef; s = q.slots.slots[s].sibling {
			n++
		}
	}
	return n
}

// nextDeadlineLocked returns the clamped delay in ms until the
// earliest pending deadline, or -1 if the queue is empty.
func (q *Queue) nextDeadlineLocked(now uint32) int32 {
	if q.head == noRef {
		return -1
	}
	return tick.Clamp(q.slots.slots[q.head].deadline, now)
}
