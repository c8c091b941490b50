package equeue_test

import (
	"sync/atomic"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/chazlever/equeue"
	"github.com/chazlever/equeue/equeuetest"
)

func newTestQueue(t *testing.T, bufSize int) *equeue.Queue {
	t.Helper()
	opts := equeue.DefaultOptions()
	opts.Buffer = make([]byte, bufSize)
	opts.Sema = equeuetest.NewFakeSignal()
	q, err := equeue.CreateIn(opts)
	require.NoError(t, err)
	return q
}

// TestImmediateDispatch: a zero-delay callback fires before a
// zero-timeout Dispatch returns.
func TestImmediateDispatch(t *testing.T) {
	q := newTestQueue(t, 2048)

	var x int32
	_, err := q.Call(func(unsafe.Pointer) { atomic.StoreInt32(&x, 1) })
	require.NoError(t, err)

	err = q.Dispatch(0)
	require.ErrorIs(t, err, equeue.ErrTimedOut)
	require.Equal(t, int32(1), atomic.LoadInt32(&x))
}

// TestDelayedThenCancelled: cancelling a delayed callback before it
// comes due prevents it from ever running, and cancel is idempotent.
func TestDelayedThenCancelled(t *testing.T) {
	q := newTestQueue(t, 2048)

	var x int32
	id, err := q.CallIn(100, func(unsafe.Pointer) { atomic.StoreInt32(&x, 1) })
	require.NoError(t, err)

	require.NoError(t, q.Cancel(id))

	err = q.Dispatch(150)
	require.ErrorIs(t, err, equeue.ErrTimedOut)
	require.Equal(t, int32(0), atomic.LoadInt32(&x))

	err = q.Cancel(id)
	require.True(t, equeue.IsCode(err, equeue.CodeNoEnt))
}

// TestPeriodicCount: a periodic callback fires once per elapsed
// period within the dispatch window.
func TestPeriodicCount(t *testing.T) {
	q := newTestQueue(t, 2048)

	var n int32
	_, err := q.CallEvery(100, func(unsafe.Pointer) { atomic.AddInt32(&n, 1) })
	require.NoError(t, err)

	err = q.Dispatch(550)
	require.ErrorIs(t, err, equeue.ErrTimedOut)
	require.Equal(t, int32(5), atomic.LoadInt32(&n))
}

// TestBreak: a pending break is consumed
// exactly once, and the next dispatch runs normally afterward.
func TestBreak(t *testing.T) {
	q := newTestQueue(t, 2048)

	var n int32
	_, err := q.CallEvery(100, func(unsafe.Pointer) { atomic.AddInt32(&n, 1) })
	require.NoError(t, err)

	q.Break()
	err = q.Dispatch(-1)
	require.ErrorIs(t, err, equeue.ErrBreak)
	require.Equal(t, int32(0), atomic.LoadInt32(&n), "break must fire before any event runs")

	err = q.Dispatch(550)
	require.ErrorIs(t, err, equeue.ErrTimedOut)
	require.Equal(t, int32(5), atomic.LoadInt32(&n))
}

// TestCallAllocationFailure exercises the create→alloc NOMEM path: a
// buffer too small for even one MinEventSize payload cannot satisfy a
// Call.
func TestCallAllocationFailure(t *testing.T) {
	q := newTestQueue(t, 8)

	_, err := q.Call(func(unsafe.Pointer) {})
	require.True(t, equeue.IsCode(err, equeue.CodeNoMem))
}

// TestRoundTripDestructor: alloc(n) -> set_dtor(f) -> dealloc invokes
// f exactly once.
func TestRoundTripDestructor(t *testing.T) {
	q := newTestQueue(t, 2048)

	h, err := q.Alloc(32)
	require.NoError(t, err)

	var dtorCalls int32
	h.SetDtor(func(unsafe.Pointer) { atomic.AddInt32(&dtorCalls, 1) })

	q.Dealloc(h)
	require.Equal(t, int32(1), atomic.LoadInt32(&dtorCalls))
}

// TestPeriodicNoBurstCompensation: when a periodic callback's own
// cost exceeds its period, consecutive invocations are
// separated by at least that cost rather than bursting to catch up.
func TestPeriodicNoBurstCompensation(t *testing.T) {
	q := newTestQueue(t, 2048)

	var n int32
	_, err := q.CallEvery(20, func(unsafe.Pointer) {
		atomic.AddInt32(&n, 1)
		time.Sleep(60 * time.Millisecond) // cost c=60ms > period p=20ms
	})
	require.NoError(t, err)

	err = q.Dispatch(130)
	require.ErrorIs(t, err, equeue.ErrTimedOut)

	// No-burst-compensation bounds invocations to roughly
	// floor(130/60)+1 rather than floor(130/20)+1; either way it must
	// stay well under what period-only pacing would allow.
	require.LessOrEqual(t, atomic.LoadInt32(&n), int32(4))
	require.GreaterOrEqual(t, atomic.LoadInt32(&n), int32(1))
}

// TestStaticEventDoublePost covers the INVAL path: posting an
// already-pending static event fails, and it becomes re-postable once
// it either fires or is cancelled.
func TestStaticEventDoublePost(t *testing.T) {
	q := newTestQueue(t, 2048)
	var storage [16]byte

	h, err := q.AllocStatic(storage[:])
	require.NoError(t, err)

	var fired int32
	id, err := q.Post(h, func(unsafe.Pointer) { atomic.AddInt32(&fired, 1) })
	require.NoError(t, err)

	_, err = q.Post(h, func(unsafe.Pointer) {})
	require.True(t, equeue.IsCode(err, equeue.CodeInval))

	require.NoError(t, q.Cancel(id))

	id2, err := q.Post(h, func(unsafe.Pointer) { atomic.AddInt32(&fired, 1) })
	require.NoError(t, err)
	require.NotZero(t, id2)
}
