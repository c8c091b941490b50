package engine

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, capacity int) *Queue {
	t.Helper()
	q, err := New(Options{Capacity: capacity, Buffer: make([]byte, 4096)})
	require.NoError(t, err)
	return q
}

// runExpiredOrder walks a flattened expired list (as returned by
// dequeueLocked) in order, invoking each slot's callback and recording
// nothing itself — callers close over their own accumulator.
func runExpiredOrder(q *Queue, head int32) {
	for idx := head; idx != noRef; {
		s := &q.slots.slots[idx]
		next := s.next
		if s.cb != nil {
			s.cb(nil)
		}
		idx = next
	}
}

// TestFIFOWithinDeadlineSlot: e1, e2, e3 posted with the same delay
// from the same context dispatch in that order.
func TestFIFOWithinDeadlineSlot(t *testing.T) {
	q := newTestQueue(t, 8)

	var order []int
	post := func(n int) {
		h, err := q.Alloc(0)
		require.NoError(t, err)
		h.SetDelay(10)
		_, err = q.Post(h, func(unsafe.Pointer) { order = append(order, n) })
		require.NoError(t, err)
	}
	post(1)
	post(2)
	post(3)

	head := q.dequeueLocked(10)
	runExpiredOrder(q, head)

	require.Equal(t, []int{1, 2, 3}, order)
}

// TestOrderAcrossDeadlines: events dispatch in nondecreasing deadline
// order regardless of post order.
func TestOrderAcrossDeadlines(t *testing.T) {
	q := newTestQueue(t, 8)
	var order []uint32

	post := func(delay uint32) {
		h, err := q.Alloc(0)
		require.NoError(t, err)
		h.SetDelay(int32(delay))
		d := delay
		_, err = q.Post(h, func(unsafe.Pointer) { order = append(order, d) })
		require.NoError(t, err)
	}
	post(30)
	post(10)
	post(20)

	head := q.dequeueLocked(30)
	runExpiredOrder(q, head)

	require.Equal(t, []uint32{10, 20, 30}, order)
}

// TestCancelBeforeDispatch: cancelling a pending, not-yet-selected
// event prevents its callback, and cancel is idempotent.
func TestCancelBeforeDispatch(t *testing.T) {
	q := newTestQueue(t, 8)
	fired := false

	h, err := q.Alloc(0)
	require.NoError(t, err)
	h.SetDelay(100)
	id, err := q.Post(h, func(unsafe.Pointer) { fired = true })
	require.NoError(t, err)

	require.True(t, q.Cancel(id))
	require.False(t, q.Cancel(id), "cancel must be safe to call twice, second returns false")

	head := q.dequeueLocked(150)
	require.Equal(t, noRef, head, "cancelled event must not be dispatched")
	require.False(t, fired)
}

// TestTickOverflow: ordering survives a wrap of the 32-bit tick
// source.
func TestTickOverflow(t *testing.T) {
	q := newTestQueue(t, 8)
	const nearWrap = ^uint32(0) - 5 // 5 ticks from overflow

	q.queueMu.Lock()
	q.tick = nearWrap
	q.queueMu.Unlock()

	var order []int
	post := func(delay uint32, n int) {
		h, err := q.Alloc(0)
		require.NoError(t, err)
		h.SetDelay(int32(delay))
		_, err = q.Post(h, func(unsafe.Pointer) { order = append(order, n) })
		require.NoError(t, err)
	}
	post(2, 1)  // deadline = nearWrap+2, still before the wrap
	post(10, 2) // deadline = nearWrap+10, past the wrap

	head := q.dequeueLocked(nearWrap + 10)
	runExpiredOrder(q, head)

	require.Equal(t, []int{1, 2}, order)
}
