package events

import (
	"context"
	"log/slog"
	"time"

	"frost/pkg/platform/circuit"
)

const (
	defaultBatchSize     = 64
	defaultFlushInterval = 500 * time.Millisecond
)

// AsyncPublisher decouples request handling from event delivery. Publish
// only enqueues; Run drains the queue into the sink in batches. While the
// sink's circuit is open, events stay buffered (oldest dropped first when
// the buffer is full).
type AsyncPublisher struct {
	sink          Publisher
	buffer        *Outbox
	breaker       *circuit.Breaker
	logger        *slog.Logger
	batchSize     int
	flushInterval time.Duration
	wake          chan struct{}
}

type AsyncOption func(*AsyncPublisher)

func WithBufferCapacity(n int) AsyncOption {
	return func(p *AsyncPublisher) {
		p.buffer = NewOutbox(n)
	}
}

func WithBatchSize(n int) AsyncOption {
	return func(p *AsyncPublisher) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) AsyncOption {
	return func(p *AsyncPublisher) {
		if d > 0 {
			p.flushInterval = d
		}
	}
}

func WithSinkBreaker(b *circuit.Breaker) AsyncOption {
	return func(p *AsyncPublisher) {
		if b != nil {
			p.breaker = b
		}
	}
}

func WithAsyncLogger(logger *slog.Logger) AsyncOption {
	return func(p *AsyncPublisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewAsyncPublisher(sink Publisher, opts ...AsyncOption) *AsyncPublisher {
	p := &AsyncPublisher{
		sink:          sink,
		buffer:        NewOutbox(0),
		breaker:       circuit.New("event-sink", circuit.WithCooldown(10*time.Second)),
		logger:        slog.Default(),
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		wake:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish enqueues the event and never blocks on the sink.
func (p *AsyncPublisher) Publish(ctx context.Context, event Event) error {
	if p.buffer.Enqueue(event) {
		p.logger.WarnContext(ctx, "event buffer full, dropped oldest event",
			"dropped_total", p.buffer.Dropped(),
		)
	}
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Run delivers buffered events until ctx is cancelled, then makes a final
// best-effort flush with a short deadline.
func (p *AsyncPublisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			p.Flush(flushCtx)
			cancel()
			return ctx.Err()
		case <-p.wake:
			p.Flush(ctx)
		case <-ticker.C:
			p.Flush(ctx)
		}
	}
}

// Flush delivers queued events until the queue is empty, the sink fails or
// the circuit is open.
func (p *AsyncPublisher) Flush(ctx context.Context) {
	for p.buffer.Len() > 0 {
		if !p.breaker.Allow() {
			return
		}
		batch := p.buffer.DequeueBatch(p.batchSize)
		for i, event := range batch {
			if err := p.sink.Publish(ctx, event); err != nil {
				p.buffer.Requeue(batch[i:])
				if _, change := p.breaker.RecordFailure(); change.Opened {
					p.logger.WarnContext(ctx, "event sink circuit opened",
						"pending", p.buffer.Len(),
						"error", err,
					)
				}
				return
			}
			if _, change := p.breaker.RecordSuccess(); change.Closed {
				p.logger.InfoContext(ctx, "event sink circuit closed")
			}
		}
	}
}

// Pending returns the number of undelivered events.
func (p *AsyncPublisher) Pending() int {
	return p.buffer.Len()
}
