package engine

import (
	"unsafe"
)

// Handle is an allocated-but-not-yet-posted (or already posted) event.
// It is the Go analogue of the C library's `void*` payload pointer:
// callers configure it via SetDelay/SetPeriod/SetDtor, then hand it to
// Post.
type Handle struct {
	q   *Queue
	idx int32
}

// ErrNoMem indicates the slot arena or payload arena could not satisfy
// an allocation.
var ErrNoMem = newEngineError("no memory")

// ErrInval indicates an invalid operation, e.g. re-posting a static
// event that is already pending.
var ErrInval = newEngineError("invalid parameter")

type engineError string

func newEngineError(s string) error { return engineError(s) }
func (e engineError) Error() string { return string(e) }

// Alloc reserves a slot and a payload byte range of the requested
// size from the queue's arenas. Safe to call from an
// interrupt/signal-handler context provided the queue's Signal/Locker
// implementations are.
func (q *Queue) Alloc(size uint32) (*Handle, error) {
	q.slotMu.Lock()
	idx := q.slots.alloc()
	q.slotMu.Unlock()
	if idx == noRef {
		q.warnf("alloc: slot arena exhausted, capacity=%d", len(q.slots.slots))
		return nil, ErrNoMem
	}

	q.payloadMu.Lock()
	off, allocSize, reused, ok := q.payload.alloc(size)
	q.payloadMu.Unlock()
	if !ok {
		q.warnf("alloc: payload arena cannot satisfy request, size=%d", size)
		q.slotMu.Lock()
		q.slots.release(idx)
		q.slotMu.Unlock()
		return nil, ErrNoMem
	}

	s := &q.slots.slots[idx]
	s.size = allocSize
	s.payloadOff = off
	s.payloadLen = size
	s.static = nil
	s.period = -1
	s.cb = nil
	s.dtor = nil

	if q.obs != nil {
		q.obs.ObserveAlloc(allocSize, reused)
	}
	return &Handle{q: q, idx: idx}, nil
}

// AllocStatic wraps caller-owned storage as a static event: the engine never allocates or frees the payload bytes, and
// posting the same handle while it is still pending is rejected with
// ErrInval.
func (q *Queue) AllocStatic(storage []byte) (*Handle, error) {
	q.slotMu.Lock()
	idx := q.slots.alloc()
	q.slotMu.Unlock()
	if idx == noRef {
		return nil, ErrNoMem
	}

	s := &q.slots.slots[idx]
	s.size = 0
	s.static = storage
	s.payloadOff = 0
	s.payloadLen = uint32(len(storage))
	s.period = -1
	s.cb = nil
	s.dtor = nil
	s.pending = false

	return &Handle{q: q, idx: idx}, nil
}

// Dealloc runs the event's destructor (if any, exactly once) and
// returns its storage to the arenas. Dynamic events return their
// payload bytes to the payload free list; static events are left
// untouched (the caller owns that memory).
func (q *Queue) Dealloc(h *Handle) {
	q.runDtor(h.idx)
	q.freeSlot(h.idx)
}

func (q *Queue) runDtor(idx int32) {
	s := &q.slots.slots[idx]
	if s.dtor == nil {
		return
	}
	dtor := s.dtor
	s.dtor = nil
	dtor(payloadPointer(q, idx))
}

func (q *Queue) freeSlot(idx int32) {
	s := &q.slots.slots[idx]
	if s.size > 0 {
		q.payloadMu.Lock()
		q.payload.dealloc(s.payloadOff, s.size)
		q.payloadMu.Unlock()
		if q.obs != nil {
			q.obs.ObserveDealloc(s.size)
		}
	}
	q.slotMu.Lock()
	q.slots.release(idx)
	q.slotMu.Unlock()
}

// payloadPointer returns an unsafe.Pointer to the event's payload
// bytes, for handing to callbacks/destructors.
func payloadPointer(q *Queue, idx int32) unsafe.Pointer {
	s := &q.slots.slots[idx]
	if s.size == 0 {
		if len(s.static) == 0 {
			return nil
		}
		return unsafe.Pointer(&s.static[0])
	}
	b := q.payload.bytes(s.payloadOff, s.payloadLen)
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}

// Payload returns the handle's payload bytes. For dynamic events this
// slices directly into the queue's payload arena; for static events
// it returns the caller-supplied storage.
func (h *Handle) Payload() []byte {
	s := &h.q.slots.slots[h.idx]
	if s.size == 0 {
		return s.static
	}
	return h.q.payload.bytes(s.payloadOff, s.payloadLen)
}

// SetDelay configures the millisecond delay before this event first
// becomes due, relative to the tick observed at Post time.
func (h *Handle) SetDelay(ms int32) {
	s := &h.q.slots.slots[h.idx]
	if ms < 0 {
		ms = 0
	}
	s.deadline = uint32(ms)
}

// SetPeriod configures periodic re-arming. A negative value (the
// default) means one-shot.
func (h *Handle) SetPeriod(ms int32) {
	h.q.slots.slots[h.idx].period = ms
}

// SetDtor installs a finalizer invoked exactly once when the event's
// payload is destroyed.
func (h *Handle) SetDtor(d Destructor) {
	h.q.slots.slots[h.idx].dtor = d
}

// ID returns the handle's current public id (valid whether or not it
// has been posted yet; reused slots get a fresh id after release).
func (h *Handle) ID() uint32 {
	return h.q.slots.publicID(h.idx)
}
