package interfaces_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chazlever/equeue/internal/interfaces"
)

func TestFutexLockerMutualExclusion(t *testing.T) {
	l := &interfaces.FutexLocker{}

	var counter int64
	var wg sync.WaitGroup
	const goroutines, iterations = 8, 1000

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				l.Lock()
				counter++
				l.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(goroutines*iterations), counter)
}

func TestFutexLockerBlocksConcurrentAccess(t *testing.T) {
	l := &interfaces.FutexLocker{}
	l.Lock()

	unlocked := make(chan struct{})
	go func() {
		l.Lock()
		close(unlocked)
		l.Unlock()
	}()

	select {
	case <-unlocked:
		t.Fatal("second Lock acquired while first holder still held it")
	case <-time.After(20 * time.Millisecond):
	}

	l.Unlock()

	select {
	case <-unlocked:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the lock after it was released")
	}
}

func TestEventfdSignalWaitTimesOutWithoutSignal(t *testing.T) {
	sig, err := interfaces.NewEventfdSignal()
	require.NoError(t, err)
	defer sig.Close()

	start := time.Now()
	ok := sig.Wait(20 * time.Millisecond)
	require.False(t, ok)
	require.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestEventfdSignalWakesOnSignal(t *testing.T) {
	sig, err := interfaces.NewEventfdSignal()
	require.NoError(t, err)
	defer sig.Close()

	var woke atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		if sig.Wait(time.Second) {
			woke.Store(true)
		}
	}()

	time.Sleep(5 * time.Millisecond)
	sig.Signal()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait never returned after Signal")
	}
	require.True(t, woke.Load())
}
