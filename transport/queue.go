package transport

import (
	"sync"
)

// event is a queue entry: either an owned payload copy or a flush barrier.
// A barrier carries the ack channel its producer blocks on.
type event struct {
	payload []byte
	barrier bool
	done    chan error
}

// droppedError is internal to the queue: it tells Write that the event was
// discarded under OverflowDropNewest so it can count the drop and report
// success to the caller.
type droppedError struct{}

func (droppedError) Error() string { return "event dropped" }

// eventQueue is the bounded FIFO between producers and the writer.
// Producers hold the mutex only to enqueue; the writer holds it only to
// move everything queued into a local batch. Blocked producers wait on
// notFull and are woken by drains, faults, and close.
type eventQueue struct {
	mu      sync.Mutex
	notFull *sync.Cond

	events []*event
	bytes  int64

	maxEvents int
	maxBytes  int64

	closed bool
	fault  error
}

func newEventQueue(maxEvents int, maxBytes int64) *eventQueue {
	q := &eventQueue{maxEvents: maxEvents, maxBytes: maxBytes}
	q.notFull = sync.NewCond(&q.mu)
	return q
}

func (q *eventQueue) full(incoming int64) bool {
	if len(q.events) == 0 {
		// An empty queue accepts any single event so an event larger than
		// the byte bound cannot wedge a producer forever.
		return false
	}
	return len(q.events) >= q.maxEvents || q.bytes+incoming > q.maxBytes
}

// push enqueues ev, applying the overflow policy when at capacity.
// Barriers bypass the capacity bounds; they carry no payload.
func (q *eventQueue) push(ev *event, policy OverflowPolicy) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	size := int64(len(ev.payload))
	for {
		if q.fault != nil {
			return q.fault
		}
		if q.closed {
			return ErrShutdown
		}
		if ev.barrier || !q.full(size) {
			break
		}
		switch policy {
		case OverflowBlock:
			q.notFull.Wait()
		case OverflowDropNewest:
			return droppedError{}
		case OverflowError:
			return ErrQueueFull
		}
	}

	q.events = append(q.events, ev)
	q.bytes += size
	return nil
}

// drain moves all currently queued events into a local batch and wakes
// blocked producers. The caller owns the returned events.
func (q *eventQueue) drain() []*event {
	q.mu.Lock()
	batch := q.events
	q.events = nil
	q.bytes = 0
	q.mu.Unlock()
	if len(batch) > 0 {
		q.notFull.Broadcast()
	}
	return batch
}

func (q *eventQueue) depth() (events int, bytes int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events), q.bytes
}

func (q *eventQueue) empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events) == 0
}

// close rejects further pushes and releases blocked producers.
func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notFull.Broadcast()
}

// fail poisons the queue with the writer's fault and releases blocked
// producers; they observe the fault as their return value.
func (q *eventQueue) fail(err error) {
	q.mu.Lock()
	if q.fault == nil {
		q.fault = err
	}
	q.mu.Unlock()
	q.notFull.Broadcast()
}
