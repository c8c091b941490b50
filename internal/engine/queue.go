package engine

import (
	"fmt"
	"unsafe"

	"github.com/chazlever/equeue/internal/interfaces"
)

// MinEventSize is the smallest payload size guaranteed to round-trip
// through Alloc without being rounded up to a larger bucket, matching
// the original library's EQUEUE_EVENT_SIZE floor (header + two
// pointers' worth of payload).
const MinEventSize = 2 * 8

// BackgroundHook is invoked whenever the nearest pending deadline
// changes. ms is the clamped delay until that deadline,
// or -1 to disarm (queue now empty, or hook being replaced).
type BackgroundHook func(ctx any, ms int32)

type background struct {
	active bool
	update BackgroundHook
	ctx    any
}

// Queue is the core event-queue engine: slot arena + payload arena +
// intrusive priority queue + dispatch loop. The root package's Queue
// wraps this with the public, error-taxonomy-shaped API.
type Queue struct {
	slotMu interfaces.Locker // guards slotArena
	slots  *slotArena

	payloadMu interfaces.Locker // guards payloadArena (also "memlock" scope)
	payload   *payloadArena

	queueMu interfaces.Locker // guards everything below
	head    int32              // index of the earliest slot, noRef if empty
	tick    uint32
	generation uint8
	breakRequested bool
	bg background

	sema   interfaces.Signal
	ticker interfaces.Ticker
	logger interfaces.Logger
	obs    interfaces.Observer
}

// Options configures a new engine Queue.
type Options struct {
	Capacity int // number of event slots; 0 selects a small default
	Buffer   []byte
	Sema     interfaces.Signal
	Ticker   interfaces.Ticker
	Logger   interfaces.Logger
	Observer interfaces.Observer

	// NewLocker constructs the host mutex used for each of the
	// queue's three critical sections. Defaults to
	// interfaces.FutexLocker, a fresh instance per section since none
	// are ever held simultaneously.
	NewLocker func() interfaces.Locker
}

// New constructs a Queue over the given payload buffer and slot
// capacity. The buffer must be word-aligned; callers
// typically derive Capacity from Buffer's size.
func New(opts Options) (*Queue, error) {
	if len(opts.Buffer) > 0 && uintptrAlign(opts.Buffer) != 0 {
		return nil, fmt.Errorf("engine: buffer is not word-aligned")
	}
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = 64
	}
	newLocker := opts.NewLocker
	if newLocker == nil {
		newLocker = func() interfaces.Locker { return &interfaces.FutexLocker{} }
	}
	q := &Queue{
		slots:     newSlotArena(capacity),
		slotMu:    newLocker(),
		payload:   newPayloadArena(opts.Buffer),
		payloadMu: newLocker(),
		queueMu:   newLocker(),
		head:      noRef,
		sema:      opts.Sema,
		ticker:    opts.Ticker,
		logger:    opts.Logger,
		obs:       opts.Observer,
	}
	q.infof("create: capacity=%d, buffer_bytes=%d", capacity, len(opts.Buffer))
	return q, nil
}

func uintptrAlign(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return (uintptr(unsafe.Pointer(&b[0])) | uintptr(len(b))) % wordSize
}

// Capacity returns the number of event slots the queue was built with.
func (q *Queue) Capacity() int {
	return len(q.slots.slots)
}

// Logger returns the queue's configured logger, or nil.
func (q *Queue) Logger() interfaces.Logger {
	return q.logger
}

func (q *Queue) debugf(format string, args ...any) {
	if q.logger != nil {
		q.logger.Debugf(format, args...)
	}
}

func (q *Queue) warnf(format string, args ...any) {
	if q.logger != nil {
		q.logger.Warnf(format, args...)
	}
}

func (q *Queue) infof(format string, args ...any) {
	if q.logger != nil {
		q.logger.Infof(format, args...)
	}
}

