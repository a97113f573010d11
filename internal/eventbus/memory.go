package eventbus

import (
	"context"
	"sync"

	"github.com/chatify/chatify/internal/domain"
)

// InMemoryBus is a single-process stand-in for the log, used in tests and
// in the UseInMemory development mode where no broker is available. It
// implements Producer; Subscribe hands out BroadcastConsumers, each
// reading its own buffered channel. Produce pushes onto those channels
// from the calling goroutine, so every subscriber sees events in the
// order the Produce calls deliver them.
type InMemoryBus struct {
	mu        sync.Mutex
	nextOff   map[domain.ScopeKey]int64
	listeners []chan domain.EnrichedChatEvent
	closed    bool
}

// NewInMemoryBus constructs an empty in-memory bus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{nextOff: make(map[domain.ScopeKey]int64)}
}

// Produce assigns the next offset for event's scope (partition is always
// 0 since there is no real partitioning in-memory) and fans it out to
// every registered consumer.
func (b *InMemoryBus) Produce(ctx context.Context, event domain.ChatEvent) domain.Result[PublishResult] {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return domain.Failure[PublishResult](domain.NewError(domain.KindEventProductionFailed,
			"bus_closed", "in-memory bus is closed", nil))
	}
	offset := b.nextOff[event.Scope]
	b.nextOff[event.Scope] = offset + 1
	enriched := domain.EnrichedChatEvent{ChatEvent: event, Partition: 0, Offset: offset}
	listeners := make([]chan domain.EnrichedChatEvent, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	for _, ch := range listeners {
		select {
		case ch <- enriched:
		case <-ctx.Done():
			return domain.Failure[PublishResult](domain.NewError(domain.KindEventProductionFailed,
				"publish_cancelled", "context cancelled before delivery", ctx.Err()))
		}
	}
	return domain.Success(PublishResult{Partition: 0, Offset: offset})
}

// Close marks the bus closed; further Produce calls fail.
func (b *InMemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, ch := range b.listeners {
		close(ch)
	}
	b.listeners = nil
	return nil
}

// Subscribe returns a consumer bound to this bus, matching the
// BroadcastConsumer interface so test and dev wiring can swap it in for
// KafkaBroadcastConsumer without touching call sites.
func (b *InMemoryBus) Subscribe() *InMemoryConsumer {
	ch := make(chan domain.EnrichedChatEvent, 256)
	b.mu.Lock()
	b.listeners = append(b.listeners, ch)
	b.mu.Unlock()
	return &InMemoryConsumer{events: ch}
}

// InMemoryConsumer reads events pushed to it by an InMemoryBus.
type InMemoryConsumer struct {
	events chan domain.EnrichedChatEvent
}

// Run delivers events to handle until the channel closes or ctx is done.
func (c *InMemoryConsumer) Run(ctx context.Context, handle BroadcastHandler) error {
	for {
		select {
		case event, ok := <-c.events:
			if !ok {
				return nil
			}
			handle(ctx, event)
		case <-ctx.Done():
			return nil
		}
	}
}

// Close is a no-op; the owning InMemoryBus closes the underlying channel.
func (c *InMemoryConsumer) Close() error { return nil }
