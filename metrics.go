package equeue

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the dispatch-latency histogram buckets in
// nanoseconds, log-spaced from 1us to 10s.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks allocation, scheduling, and dispatch statistics for a
// Queue. All fields are safe for concurrent use.
type Metrics struct {
	AllocOps   atomic.Uint64
	AllocBytes atomic.Uint64
	ReusedOps  atomic.Uint64
	DeallocOps atomic.Uint64

	PostOps     atomic.Uint64
	CancelOps   atomic.Uint64
	CancelOK    atomic.Uint64
	DispatchOps atomic.Uint64

	QueueDepthTotal atomic.Uint64
	QueueDepthCount atomic.Uint64
	MaxQueueDepth   atomic.Uint32

	TotalLatencyNs atomic.Uint64
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
}

// NewMetrics creates an empty Metrics, stamping StartTime.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

func (m *Metrics) recordAlloc(size uint32, reused bool) {
	m.AllocOps.Add(1)
	m.AllocBytes.Add(uint64(size))
	if reused {
		m.ReusedOps.Add(1)
	}
}

func (m *Metrics) recordDealloc(uint32) { m.DeallocOps.Add(1) }

func (m *Metrics) recordDispatch(selected int, latencyNs uint64) {
	m.DispatchOps.Add(uint64(selected))
	m.TotalLatencyNs.Add(latencyNs)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

func (m *Metrics) recordQueueDepth(depth uint32) {
	m.QueueDepthTotal.Add(uint64(depth))
	m.QueueDepthCount.Add(1)
	for {
		cur := m.MaxQueueDepth.Load()
		if depth <= cur {
			break
		}
		if m.MaxQueueDepth.CompareAndSwap(cur, depth) {
			break
		}
	}
}

func (m *Metrics) recordCancel(ok bool) {
	m.CancelOps.Add(1)
	if ok {
		m.CancelOK.Add(1)
	}
}

// MetricsSnapshot is a point-in-time copy of Metrics' counters plus
// derived statistics.
type MetricsSnapshot struct {
	AllocOps   uint64
	AllocBytes uint64
	ReusedOps  uint64
	DeallocOps uint64

	PostOps     uint64
	CancelOps   uint64
	CancelOK    uint64
	DispatchOps uint64

	AvgQueueDepth float64
	MaxQueueDepth uint32

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyHistogram [numLatencyBuckets]uint64
}

// Snapshot copies the current counters and computes averages.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		AllocOps:    m.AllocOps.Load(),
		AllocBytes:  m.AllocBytes.Load(),
		ReusedOps:   m.ReusedOps.Load(),
		DeallocOps:  m.DeallocOps.Load(),
		PostOps:     m.PostOps.Load(),
		CancelOps:   m.CancelOps.Load(),
		CancelOK:    m.CancelOK.Load(),
		DispatchOps: m.DispatchOps.Load(),

		MaxQueueDepth: m.MaxQueueDepth.Load(),
		UptimeNs:      uint64(time.Now().UnixNano() - m.StartTime.Load()),
	}

	if depthCount := m.QueueDepthCount.Load(); depthCount > 0 {
		snap.AvgQueueDepth = float64(m.QueueDepthTotal.Load()) / float64(depthCount)
	}
	if snap.DispatchOps > 0 {
		snap.AvgLatencyNs = m.TotalLatencyNs.Load() / snap.DispatchOps
	}
	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}
	return snap
}

// Reset zeroes all counters, useful between test cases.
func (m *Metrics) Reset() {
	*m = Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
}

// Observer allows pluggable instrumentation of a Queue; it mirrors
// internal/interfaces.Observer so any Queue can be wired straight to
// a MetricsObserver.
type Observer interface {
	ObserveAlloc(size uint32, reused bool)
	ObserveDealloc(size uint32)
	ObserveDispatch(selected int, latencyNs uint64)
	ObserveQueueDepth(depth uint32)
	ObservePost(delayMs int32)
	ObserveCancel(ok bool)
}

// NoOpObserver discards every observation.
type NoOpObserver struct{}

func (NoOpObserver) ObserveAlloc(uint32, bool)    {}
func (NoOpObserver) ObserveDealloc(uint32)        {}
func (NoOpObserver) ObserveDispatch(int, uint64)  {}
func (NoOpObserver) ObserveQueueDepth(uint32)     {}
func (NoOpObserver) ObservePost(int32)            {}
func (NoOpObserver) ObserveCancel(bool)           {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver wraps m as an Observer.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveAlloc(size uint32, reused bool) { o.metrics.recordAlloc(size, reused) }
func (o *MetricsObserver) ObserveDealloc(size uint32)            { o.metrics.recordDealloc(size) }
func (o *MetricsObserver) ObserveDispatch(selected int, latencyNs uint64) {
	o.metrics.recordDispatch(selected, latencyNs)
}
func (o *MetricsObserver) ObserveQueueDepth(depth uint32) { o.metrics.recordQueueDepth(depth) }
func (o *MetricsObserver) ObservePost(int32)              { o.metrics.PostOps.Add(1) }
func (o *MetricsObserver) ObserveCancel(ok bool)          { o.metrics.recordCancel(ok) }

var (
	_ Observer = (*MetricsObserver)(nil)
	_ Observer = (*NoOpObserver)(nil)
)
