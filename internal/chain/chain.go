// Package chain wires one engine.Queue's dispatch onto another's, so
// that dispatching the outer ("target") queue also drives the inner
// ("source") queue's due events. It owns a host-side resource (the
// proxy event armed on target) and exposes lifecycle methods that log
// every transition, the same shape as a small device controller.
package chain

import (
	"unsafe"

	"github.com/chazlever/equeue/internal/engine"
	"github.com/chazlever/equeue/internal/interfaces"
)

// Chain drives source's due events from target's dispatch loop: it
// installs a background hook on source that keeps a single proxy
// event armed on target at source's nearest deadline; when that proxy
// fires, it runs a non-blocking sweep of source.
type Chain struct {
	target *engine.Queue
	source *engine.Queue
	proxy  *engine.Handle
	logger interfaces.Logger

	proxyID uint32
}

// Install arms the chain: source's background hook is replaced with
// one that re-arms a proxy event on target. Any background hook
// source already had is disarmed (mirrors engine.Queue.SetBackground's
// single-owner contract).
func Install(target, source *engine.Queue, logger interfaces.Logger) (*Chain, error) {
	h, err := target.AllocStatic(nil)
	if err != nil {
		return nil, err
	}
	c := &Chain{target: target, source: source, proxy: h, logger: logger}
	c.debugf("chain: installing proxy on target")
	source.SetBackground(c.onSourceDeadlineChange, nil)
	c.debugf("chain: installed")
	return c, nil
}

// Break disarms the chain: source's background hook is cleared and
// any outstanding proxy event on target is cancelled.
func (c *Chain) Break() {
	c.debugf("chain: disarming")
	c.source.SetBackground(nil, nil)
	if c.proxyID != 0 {
		c.target.Cancel(c.proxyID)
		c.proxyID = 0
	}
	c.debugf("chain: disarmed")
}

// onSourceDeadlineChange is source's background hook: ms is the
// clamped delay to source's nearest pending deadline, or -1 if source
// is now idle.
func (c *Chain) onSourceDeadlineChange(_ any, ms int32) {
	if c.proxyID != 0 {
		c.target.Cancel(c.proxyID)
		c.proxyID = 0
	}
	if ms < 0 {
		c.debugf("chain: source idle, proxy disarmed")
		return
	}

	c.proxy.SetDelay(ms)
	id, err := c.target.Post(c.proxy, c.fireProxy)
	if err != nil {
		c.warnf("chain: failed to arm proxy on target: %v", err)
		return
	}
	c.proxyID = id
	c.debugf("chain: proxy re-armed on target, delay_ms=%d", ms)
}

// fireProxy runs when the proxy event comes due on target: it drains
// whatever in source is now due, without blocking target's own
// dispatch loop. Draining re-arms source's periodic events and, via
// notifyBackgroundLocked, reinstalls the next proxy through
// onSourceDeadlineChange.
func (c *Chain) fireProxy(unsafe.Pointer) {
	c.debugf("chain: proxy fired, draining source")
	c.proxyID = 0
	_ = c.source.Dispatch(0) // always ErrTimedOut/ErrBreak; side effect is what matters
}

func (c *Chain) debugf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Debugf(format, args...)
	}
}

func (c *Chain) warnf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Warnf(format, args...)
	}
}
