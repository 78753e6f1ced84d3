package events

import "sync"

const defaultOutboxCapacity = 1024

// Outbox holds events waiting for the sink. It is bounded: when full, the
// oldest pending events give way to newer ones and are counted as dropped.
type Outbox struct {
	mu       sync.Mutex
	pending  []Event
	capacity int
	dropped  int64
}

func NewOutbox(capacity int) *Outbox {
	if capacity <= 0 {
		capacity = defaultOutboxCapacity
	}
	return &Outbox{pending: make([]Event, 0, capacity), capacity: capacity}
}

// Enqueue appends event and reports whether an older event was evicted.
func (o *Outbox) Enqueue(event Event) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	evicted := len(o.pending) == o.capacity
	if evicted {
		o.pending = append(o.pending[:0], o.pending[1:]...)
		o.dropped++
	}
	o.pending = append(o.pending, event)
	return evicted
}

// Requeue returns an undelivered batch to the head of the outbox. Pending
// events keep priority over the returned ones; whatever does not fit is
// dropped starting with the oldest event of the batch.
func (o *Outbox) Requeue(batch []Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	room := o.capacity - len(o.pending)
	if room < len(batch) {
		o.dropped += int64(len(batch) - max(room, 0))
		batch = batch[len(batch)-max(room, 0):]
	}
	if len(batch) == 0 {
		return
	}
	merged := make([]Event, 0, o.capacity)
	merged = append(merged, batch...)
	o.pending = append(merged, o.pending...)
}

// DequeueBatch removes and returns up to n events in delivery order.
func (o *Outbox) DequeueBatch(n int) []Event {
	o.mu.Lock()
	defer o.mu.Unlock()

	n = min(n, len(o.pending))
	if n <= 0 {
		return nil
	}
	batch := make([]Event, n)
	copy(batch, o.pending)
	rest := copy(o.pending, o.pending[n:])
	clear(o.pending[rest:])
	o.pending = o.pending[:rest]
	return batch
}

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// Dropped is the running total of evicted events.
func (o *Outbox) Dropped() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}
