package equeue_test

import (
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/chazlever/equeue"
	"github.com/chazlever/equeue/equeuetest"
)

// TestChain: events posted on the source queue at t=0,50,100,200 all
// fire when a single dispatch of the target queue runs long enough to
// cover them.
func TestChain(t *testing.T) {
	target := newTestQueue(t, 2048)
	source := newTestQueue(t, 2048)

	c, err := source.Chain(target)
	require.NoError(t, err)
	defer c.Break()

	var fired int32
	for _, delay := range []int32{0, 50, 100, 200} {
		_, err := source.CallIn(delay, func(unsafe.Pointer) { atomic.AddInt32(&fired, 1) })
		require.NoError(t, err)
	}

	err = target.Dispatch(300)
	require.ErrorIs(t, err, equeue.ErrTimedOut)
	require.Equal(t, int32(4), atomic.LoadInt32(&fired))
}
