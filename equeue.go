// Package equeue implements an embedded, cooperative, in-process event
// queue for deferred callbacks with millisecond timing. It is safe to
// post, cancel, and allocate from interrupt/signal-handler contexts;
// only Dispatch itself is goroutine/thread-bound.
package equeue

import (
	"github.com/chazlever/equeue/internal/chain"
	"github.com/chazlever/equeue/internal/constants"
	"github.com/chazlever/equeue/internal/engine"
	"github.com/chazlever/equeue/internal/interfaces"
	"github.com/chazlever/equeue/internal/logging"
	"github.com/chazlever/equeue/internal/tick"
)

// Callback is invoked by Dispatch with the event's payload.
type Callback = engine.Callback

// Destructor finalizes a payload exactly once.
type Destructor = engine.Destructor

// Options configures a new Queue, following the package's
// Config/DefaultConfig idiom.
type Options struct {
	// Capacity is the number of event slots. Zero selects DefaultCapacity.
	Capacity int

	// Buffer is the payload byte arena. Must be word-aligned; nil
	// selects a DefaultBufferSize allocation.
	Buffer []byte

	// Ticker supplies the wrapping millisecond clock. Nil selects a
	// wall-clock-backed tick.RealTicker.
	Ticker interfaces.Ticker

	// Sema wakes a blocked Dispatch when a new deadline arrives. Nil
	// selects the platform default (eventfd on Linux).
	Sema interfaces.Signal

	// Logger receives lifecycle and bookkeeping logs. Nil selects
	// logging.Default().
	Logger *logging.Logger

	// Observer receives allocation/dispatch/cancel instrumentation.
	// Nil disables observation.
	Observer Observer

	// NewLocker constructs each of the queue's three independent
	// critical-section mutexes. Nil selects interfaces.FutexLocker.
	NewLocker func() interfaces.Locker
}

// DefaultOptions returns sensible defaults: DefaultCapacity slots over
// a fresh DefaultBufferSize buffer, wall-clock ticks, the process
// default logger, and no observer.
func DefaultOptions() Options {
	return Options{
		Capacity: constants.DefaultCapacity,
		Buffer:   make([]byte, constants.DefaultBufferSize),
		Ticker:   &tick.RealTicker{},
		Logger:   logging.Default(),
	}
}

// Queue is the public event queue. The zero value is not usable; build
// one with Create or CreateIn.
type Queue struct {
	eng *engine.Queue
}

// Create allocates a new queue with a fresh internal buffer of the
// given byte size).
func Create(bufferSize int) (*Queue, error) {
	opts := DefaultOptions()
	opts.Buffer = make([]byte, bufferSize)
	return CreateIn(opts)
}

// CreateIn builds a queue from fully specified Options, e.g. a
// caller-owned buffer). The buffer
// must be word-aligned or CreateIn returns ErrInval.
func CreateIn(opts Options) (*Queue, error) {
	sema := opts.Sema
	if sema == nil {
		s, err := interfaces.NewEventfdSignal()
		if err != nil {
			return nil, wrapEngineErr("create", err)
		}
		sema = s
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	ticker := opts.Ticker
	if ticker == nil {
		ticker = &tick.RealTicker{}
	}

	buf := opts.Buffer
	if buf == nil {
		buf = make([]byte, constants.DefaultBufferSize)
	}

	var obs interfaces.Observer
	if opts.Observer != nil {
		obs = opts.Observer
	}

	eng, err := engine.New(engine.Options{
		Capacity:  opts.Capacity,
		Buffer:    buf,
		Sema:      sema,
		Ticker:    ticker,
		Logger:    logger,
		Observer:  obs,
		NewLocker: opts.NewLocker,
	})
	if err != nil {
		return nil, &Error{Op: "create", Code: CodeInval, Msg: err.Error(), Inner: err}
	}
	return &Queue{eng: eng}, nil
}

// Destroy runs destructors on every pending event, disarms the
// background hook, and releases the queue's signal).
func (q *Queue) Destroy() error {
	return wrapEngineErr("destroy", q.eng.Close())
}

// Capacity returns the queue's event-slot count.
func (q *Queue) Capacity() int { return q.eng.Capacity() }

// Handle is an allocated event awaiting configuration and Post.
type Handle struct {
	h *engine.Handle
}

// Alloc reserves size payload bytes from the queue's arena.
func (q *Queue) Alloc(size uint32) (*Handle, error) {
	h, err := q.eng.Alloc(size)
	if err != nil {
		return nil, wrapEngineErr("alloc", err)
	}
	return &Handle{h: h}, nil
}

// AllocStatic wraps caller-owned storage as a reusable static event.
func (q *Queue) AllocStatic(storage []byte) (*Handle, error) {
	h, err := q.eng.AllocStatic(storage)
	if err != nil {
		return nil, wrapEngineErr("alloc", err)
	}
	return &Handle{h: h}, nil
}

// Dealloc runs h's destructor (if any) and releases its storage.
func (q *Queue) Dealloc(h *Handle) { q.eng.Dealloc(h.h) }

// Payload returns h's payload bytes.
func (h *Handle) Payload() []byte { return h.h.Payload() }

// SetDelay configures the millisecond delay before h is first due.
func (h *Handle) SetDelay(ms int32) { h.h.SetDelay(ms) }

// SetPeriod configures periodic re-arming; negative (the default)
// means one-shot.
func (h *Handle) SetPeriod(ms int32) { h.h.SetPeriod(ms) }

// SetDtor installs h's destructor.
func (h *Handle) SetDtor(d Destructor) { h.h.SetDtor(d) }

// Post arms h for dispatch with cb, returning its opaque id.
func (q *Queue) Post(h *Handle, cb Callback) (uint32, error) {
	id, err := q.eng.Post(h.h, cb)
	if err != nil {
		return 0, wrapEngineErr("post", err)
	}
	return id, nil
}

// Cancel removes the event named by id if dispatch hasn't already
// claimed it. Returns ErrNoEnt for a stale, unknown, or in-flight id;
// idempotent.
func (q *Queue) Cancel(id uint32) error {
	if q.eng.Cancel(id) {
		return nil
	}
	return newError("cancel", CodeNoEnt)
}

// TimeLeft returns the milliseconds remaining before id is due.
func (q *Queue) TimeLeft(id uint32) (int32, error) {
	ms, ok := q.eng.TimeLeft(id)
	if !ok {
		return 0, newError("time_left", CodeNoEnt)
	}
	return ms, nil
}

// Dispatch runs due callbacks until Break is observed or timeoutMs
// elapses (negative = forever, 0 = drain-then-return). It always
// returns ErrTimedOut or ErrBreak.
func (q *Queue) Dispatch(timeoutMs int32) error {
	return wrapEngineErr("dispatch", q.eng.Dispatch(timeoutMs))
}

// Break requests that the nearest Dispatch call return ErrBreak.
func (q *Queue) Break() { q.eng.Break() }

// SetBackground installs update, invoked synchronously whenever the
// nearest pending deadline changes. A nil update disarms the hook.
func (q *Queue) SetBackground(update engine.BackgroundHook, ctx any) {
	q.eng.SetBackground(update, ctx)
}

// Chain drives q's dispatch from target's: once chained, calling
// target.Dispatch also runs q's due events).
// Call (*Chain).Break to undo it.
func (q *Queue) Chain(target *Queue) (*chain.Chain, error) {
	return chain.Install(target.eng, q.eng, q.eng.Logger())
}

// Call allocates a zero-delay, MinEventSize-payload event and posts it
// immediately.
func (q *Queue) Call(cb Callback) (uint32, error) {
	return q.CallIn(0, cb)
}

// CallIn allocates a minimally-sized event delayed by ms and posts it
//).
func (q *Queue) CallIn(ms int32, cb Callback) (uint32, error) {
	h, err := q.Alloc(constants.MinEventSize)
	if err != nil {
		return 0, err
	}
	h.SetDelay(ms)
	return q.Post(h, cb)
}

// CallEvery allocates an event that re-fires every ms milliseconds
//).
func (q *Queue) CallEvery(ms int32, cb Callback) (uint32, error) {
	h, err := q.Alloc(constants.MinEventSize)
	if err != nil {
		return 0, err
	}
	h.SetDelay(ms)
	h.SetPeriod(ms)
	return q.Post(h, cb)
}
