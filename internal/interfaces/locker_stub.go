//go:build !linux

package interfaces

import "sync"

// FutexLocker falls back to sync.Mutex off Linux; named to match the
// Linux build so callers never switch on GOOS themselves.
type FutexLocker struct {
	mu sync.Mutex
}

func (l *FutexLocker) Lock()   { l.mu.Lock() }
func (l *FutexLocker) Unlock() { l.mu.Unlock() }

var _ Locker = (*FutexLocker)(nil)
