//go:build linux

package interfaces

import (
	"encoding/binary"
	"time"

	"golang.org/x/sys/unix"
)

// EventfdSignal implements Signal on top of a Linux eventfd: Signal
// writes a counter increment (safe from a signal handler, per
// eventfd(2)), Wait polls the fd's readability with a timeout.
type EventfdSignal struct {
	fd int
}

// NewEventfdSignal creates a non-blocking eventfd-backed Signal.
func NewEventfdSignal() (*EventfdSignal, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &EventfdSignal{fd: fd}, nil
}

// Signal bumps the eventfd counter, waking anyone blocked in Wait.
// EAGAIN (counter already at max) is not an error here: the reader
// only cares that the counter is nonzero.
func (s *EventfdSignal) Signal() {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, _ = unix.Write(s.fd, buf[:])
}

// Wait blocks until Signal has been called or timeout elapses.
// Negative timeout waits indefinitely. Spurious wakeups are possible.
func (s *EventfdSignal) Wait(timeout time.Duration) bool {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, ms)
	if err != nil || n <= 0 {
		return false
	}
	var buf [8]byte
	_, _ = unix.Read(s.fd, buf[:])
	return true
}

// Close releases the eventfd.
func (s *EventfdSignal) Close() error {
	return unix.Close(s.fd)
}

var _ Signal = (*EventfdSignal)(nil)
