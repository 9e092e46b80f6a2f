package orchestrator

import (
	"sync"
	"sync/atomic"
	"time"
)

// Sink receives progress events from the reporter's drain goroutine.
// Publish must tolerate duplicate terminal events for the same task:
// delivery is at-least-once under retry. A slow Publish never blocks
// execution; it only risks older events being dropped.
type Sink interface {
	Publish(event ProgressEvent)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(event ProgressEvent)

// Publish calls the underlying function.
func (f SinkFunc) Publish(event ProgressEvent) { f(event) }

// Reporter decouples execution from progress consumers. OnTransition
// enqueues into a bounded queue and returns immediately; a drain
// goroutine delivers to the sink. When the queue is full the OLDEST
// event is dropped and counted, so the newest state is always retained.
type Reporter struct {
	sink     Sink
	capacity int

	mu      sync.Mutex
	queue   []ProgressEvent
	signal  chan struct{}
	stop    chan struct{}
	stopped sync.WaitGroup
	once    sync.Once

	droppedCount atomic.Uint64
	audit        *auditRing
}

// NewReporter creates a reporter draining into sink. capacity bounds
// the pending queue; auditSize bounds the retained event ring (0
// disables auditing).
func NewReporter(sink Sink, capacity, auditSize int) *Reporter {
	if capacity <= 0 {
		capacity = 256
	}
	r := &Reporter{
		sink:     sink,
		capacity: capacity,
		signal:   make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	if auditSize > 0 {
		r.audit = newAuditRing(auditSize)
	}
	r.stopped.Add(1)
	go r.drain()
	return r
}

// OnTransition records a state change. Synchronous enqueue, never
// blocks on the sink.
func (r *Reporter) OnTransition(event ProgressEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	r.mu.Lock()
	if len(r.queue) >= r.capacity {
		// Drop the oldest so the freshest state survives overflow.
		r.queue = r.queue[1:]
		count := r.droppedCount.Add(1)
		if count%10 == 1 {
			debugLog("[reporter] queue full, dropped oldest event (total dropped: %d)", count)
		}
	}
	r.queue = append(r.queue, event)
	if r.audit != nil {
		r.audit.add(event)
	}
	r.mu.Unlock()

	select {
	case r.signal <- struct{}{}:
	default:
	}
}

// DroppedCount returns the total number of events dropped to overflow.
func (r *Reporter) DroppedCount() uint64 {
	return r.droppedCount.Load()
}

// Audit returns a copy of the retained recent events, oldest first.
// Nil when auditing is disabled.
func (r *Reporter) Audit() []ProgressEvent {
	if r.audit == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.audit.snapshot()
}

// Close flushes pending events to the sink and stops the drain
// goroutine. Events enqueued after Close are silently discarded.
// Safe to call more than once.
func (r *Reporter) Close() {
	r.once.Do(func() { close(r.stop) })
	r.stopped.Wait()
}

// drain delivers queued events to the sink until stopped, then
// flushes whatever remains.
func (r *Reporter) drain() {
	defer r.stopped.Done()
	for {
		select {
		case <-r.signal:
			r.deliverPending()
		case <-r.stop:
			r.deliverPending()
			return
		}
	}
}

func (r *Reporter) deliverPending() {
	for {
		r.mu.Lock()
		if len(r.queue) == 0 {
			r.mu.Unlock()
			return
		}
		event := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()

		if r.sink != nil {
			r.sink.Publish(event)
		}
	}
}

// auditRing retains the most recent events in a fixed-size ring.
type auditRing struct {
	events []ProgressEvent
	next   int
	full   bool
}

func newAuditRing(size int) *auditRing {
	return &auditRing{events: make([]ProgressEvent, size)}
}

func (a *auditRing) add(event ProgressEvent) {
	a.events[a.next] = event
	a.next++
	if a.next == len(a.events) {
		a.next = 0
		a.full = true
	}
}

func (a *auditRing) snapshot() []ProgressEvent {
	if !a.full {
		out := make([]ProgressEvent, a.next)
		copy(out, a.events[:a.next])
		return out
	}
	out := make([]ProgressEvent, 0, len(a.events))
	out = append(out, a.events[a.next:]...)
	out = append(out, a.events[:a.next]...)
	return out
}
