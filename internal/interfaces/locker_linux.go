//go:build linux

package interfaces

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	futexUnlocked = 0
	futexLocked   = 1
	futexWaiting  = 2
)

// FutexLocker is a non-recursive mutex built directly on
// golang.org/x/sys/unix's futex syscall wrapper, rather than
// sync.Mutex, so it can be handed to engine code that must be
// acquirable from arbitrary host contexts, including interrupt or
// signal-handler context.
type FutexLocker struct {
	state int32
}

func (l *FutexLocker) Lock() {
	if atomic.CompareAndSwapInt32(&l.state, futexUnlocked, futexLocked) {
		return
	}
	for atomic.SwapInt32(&l.state, futexWaiting) != futexUnlocked {
		_, _, _ = unix.Syscall(unix.SYS_FUTEX, uintptr(unsafe.Pointer(&l.state)),
			uintptr(unix.FUTEX_WAIT), uintptr(futexWaiting))
	}
}

func (l *FutexLocker) Unlock() {
	if atomic.SwapInt32(&l.state, futexUnlocked) == futexWaiting {
		_, _, _ = unix.Syscall(unix.SYS_FUTEX, uintptr(unsafe.Pointer(&l.state)),
			uintptr(unix.FUTEX_WAKE), 1)
	}
}

var _ Locker = (*FutexLocker)(nil)
