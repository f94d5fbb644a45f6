package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultBufferSize is the number of events queued before Publish drops.
const DefaultBufferSize = 256

type namedSink struct {
	name string
	sink Sink
}

// Bus queues published events and dispatches them to sinks.
// A nil *Bus is valid and discards everything.
type Bus struct {
	logger *slog.Logger
	queue  chan Event
	now    func() time.Time

	mu    sync.RWMutex
	sinks []namedSink

	dropped uint64
}

// NewBus creates a bus with the given queue size (DefaultBufferSize if <= 0).
func NewBus(logger *slog.Logger, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger: logger,
		queue:  make(chan Event, bufferSize),
		now:    time.Now,
	}
}

// Subscribe registers a sink. Sinks added after Run starts receive only
// events dispatched from then on.
func (b *Bus) Subscribe(name string, sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, namedSink{name: name, sink: sink})
}

// Publish queues e for dispatch. It stamps At when unset and drops the
// event with a warning when the queue is full.
func (b *Bus) Publish(_ context.Context, e Event) {
	if b == nil {
		return
	}
	if e.At.IsZero() {
		e.At = b.now().UTC()
	}

	select {
	case b.queue <- e:
	default:
		b.mu.Lock()
		b.dropped++
		dropped := b.dropped
		b.mu.Unlock()
		b.logger.Warn("event queue full, dropping event", "type", e.Type, "dropped_total", dropped)
	}
}

// Run dispatches queued events until ctx is cancelled, then drains what is
// left in the queue before returning.
func (b *Bus) Run(ctx context.Context) error {
	for {
		select {
		case e := <-b.queue:
			b.dispatch(ctx, e)
		case <-ctx.Done():
			b.drain()
			return nil
		}
	}
}

func (b *Bus) drain() {
	// Sinks get a fresh context: the run context is already cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		select {
		case e := <-b.queue:
			b.dispatch(ctx, e)
		default:
			return
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, e Event) {
	b.mu.RLock()
	sinks := b.sinks
	b.mu.RUnlock()

	for _, s := range sinks {
		if err := s.sink.Handle(ctx, e); err != nil {
			b.logger.Warn("event sink failed", "sink", s.name, "type", e.Type, "error", err)
		}
	}
}
