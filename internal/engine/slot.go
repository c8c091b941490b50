// Package engine implements the event queue's core: a fixed-capacity
// slot arena with free-list reuse, a slot-based intrusive priority
// queue with per-deadline FIFO coalescing, ABA-safe id encoding, and
// the dispatch loop.
//
// Go has a tracing garbage collector, so a literal port of a C
// library's single "header-prefixes-payload, one flat byte buffer"
// layout would require storing Go pointers (next/sibling/cb/dtor)
// inside a manually-managed []byte arena, which the GC does not scan
// and is therefore unsafe. Instead bookkeeping is split from payload:
// a fixed []slot arena (GC-tracked, holds the intrusive links and
// callbacks) and a separate, pointer-free []byte arena (holds only
// payload bytes, safe to sub-allocate manually).
package engine

import "unsafe"

// noRef is the nil sentinel for slot indices.
const noRef int32 = -1

// slot is one event's bookkeeping record. Exactly one slot instance
// exists per live event (dynamic or static); "size" distinguishes the
// two: size > 0 means payload comes from the byte
// arena and is freed by the engine; size == 0 means the payload is
// caller-owned and the engine never frees it.
type slot struct {
	inUse bool

	size  uint32 // 0 = static (caller-owned payload)
	id    uint8  // local reuse counter; 0 is reserved ("unused")
	gen   uint8  // generation snapshot at enqueue time

	next    int32  // next slot head in deadline order (queue-level link)
	sibling int32  // next event sharing this slot's deadline (FIFO chain)
	ref     *int32 // the single incoming variable that names this slot's
	// index: either &Queue.head, &otherSlot.next, or &otherSlot.sibling.
	// A literal back-pointer is safe here because slots never move once
	// the arena is built, so &slots[i].next is a stable address for the
	// queue's lifetime.

	deadline uint32
	period   int32 // negative = one-shot

	cb   Callback
	dtor Destructor

	payloadOff uint32 // offset into byte arena, valid when size > 0
	payloadLen uint32
	static     []byte // caller-owned storage, valid when size == 0

	pending bool // static-event "already queued" marker

	zeroStreak uint8 // consecutive period==0 re-arms, for the monopolization warning
}

// Callback is invoked by the dispatch loop with the event's payload.
type Callback func(payload unsafe.Pointer)

// Destructor finalizes a payload exactly once.
type Destructor func(payload unsafe.Pointer)

// slotArena is the fixed-capacity, GC-tracked pool of slots plus its
// free list. It is protected by Queue.slotMu, mirroring the C
// library's freelock scope: held only across the alloc/dealloc walk.
type slotArena struct {
	slots []slot
	free  []int32 // stack of free indices, LIFO reuse like equeue_mem_alloc's "prefer sibling head"
	npw2  uint8   // ceil(log2(capacity)); id offset field width
}

func newSlotArena(capacity int) *slotArena {
	if capacity < 1 {
		capacity = 1
	}
	a := &slotArena{
		slots: make([]slot, capacity),
		free:  make([]int32, capacity),
		npw2:  npw2(uint32(capacity)),
	}
	for i := range a.free {
		// Fill free list high-to-low so index 0 is handed out first,
		// matching a bump allocator's natural low-to-high growth order.
		a.free[i] = int32(capacity - 1 - i)
	}
	for i := range a.slots {
		a.slots[i].id = 1
		a.slots[i].next = noRef
		a.slots[i].sibling = noRef
	}
	return a
}

// npw2 returns ceil(log2(a)) for a >= 1, the number of bits needed to
// address a distinct slot indices.
func npw2(a uint32) uint8 {
	if a <= 1 {
		return 0
	}
	n := uint8(0)
	v := a - 1
	for v > 0 {
		v >>= 1
		n++
	}
	return n
}

// alloc reserves a free slot, or returns noRef if the arena is full.
func (a *slotArena) alloc() int32 {
	n := len(a.free)
	if n == 0 {
		return noRef
	}
	idx := a.free[n-1]
	a.free = a.free[:n-1]
	s := &a.slots[idx]
	s.inUse = true
	s.next = noRef
	s.sibling = noRef
	s.ref = nil
	s.period = -1
	s.pending = false
	return idx
}

// release returns a slot to the free list and bumps its reuse counter,
// invalidating any public id that referenced the previous tenant.
// Wrapping the counter to 1 (never 0) is a documented, accepted source
// of a rare stale-handle collision window (see DESIGN.md open
// question).
func (a *slotArena) release(idx int32) {
	s := &a.slots[idx]
	s.inUse = false
	s.cb = nil
	s.dtor = nil
	s.static = nil
	s.ref = nil
	s.id++
	if s.id == 0 {
		s.id = 1
	}
	a.free = append(a.free, idx)
}

// publicID packs (generation reuse counter << npw2) | slot index.
func (a *slotArena) publicID(idx int32) uint32 {
	return uint32(a.slots[idx].id)<<a.npw2 | uint32(idx)
}

// lookup decodes a public id back to a slot index, returning ok=false
// if the id's embedded counter no longer matches the slot's current
// counter (stale handle) or the index is out of range.
func (a *slotArena) lookup(id uint32) (idx int32, ok bool) {
	mask := uint32(1)<<a.npw2 - 1
	i := int32(id & mask)
	if i < 0 || int(i) >= len(a.slots) {
		return noRef, false
	}
	wantID := uint8(id >> a.npw2)
	if wantID == 0 || a.slots[i].id != wantID {
		return noRef, false
	}
	return i, true
}
