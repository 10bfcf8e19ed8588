package engine

import (
	"sync"

	"choirsync/internal/remote"
)

// eventType distinguishes between event kinds.
type eventType int

const (
	// eventRemoteChange carries a subscription push to the Run loop.
	eventRemoteChange eventType = iota + 1
	// eventDrain requests a retry-queue drain.
	eventDrain
)

// event wraps subscription pushes and drain requests for the event queue.
type event struct {
	typ eventType

	// Remote change fields.
	collection string
	docID      string
	doc        remote.Document // nil means the document does not exist
	gen        int64           // subscription generation that produced the push

	// Drain trigger, for logs ("online", "visible", "interval").
	reason string
}

// eventQueue is a thread-safe FIFO queue for engine events.
//
// Thread-safety is needed because subscription callbacks and drain triggers
// fire from arbitrary goroutines while the Run loop dequeues.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type eventQueue struct {
	mu     sync.Mutex
	events []event
	closed bool
	signal chan struct{} // Signals event availability (buffered, size 1)
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) enqueue(e event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking signal - buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// tryDequeue removes and returns the front event without blocking.
func (q *eventQueue) tryDequeue() (event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return event{}, false
	}

	e := q.events[0]
	q.events = q.events[1:]
	return e, true
}

// wait returns a channel that fires when an event may be available.
func (q *eventQueue) wait() <-chan struct{} {
	return q.signal
}

// close marks the queue closed. Subsequent enqueues are rejected.
func (q *eventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true

	// Wake any waiter so it can observe the closed state.
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// len returns the number of queued events.
func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

func (q *eventQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
