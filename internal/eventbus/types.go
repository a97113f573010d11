package eventbus

import (
	"context"

	"github.com/chatify/chatify/internal/domain"
)

// PublishResult is the physical coordinate a ChatEvent lands at once the
// log accepts it.
type PublishResult struct {
	Partition int
	Offset    int64
}

// Producer serializes, keys by scope, and publishes to the log.
type Producer interface {
	Produce(ctx context.Context, event domain.ChatEvent) domain.Result[PublishResult]
	Close() error
}

// BroadcastHandler is invoked by a BroadcastConsumer for every record it
// reads, already deserialized and annotated with its log position.
type BroadcastHandler func(ctx context.Context, event domain.EnrichedChatEvent)

// BroadcastConsumer reads every record on every pod and fans it out
// locally.
type BroadcastConsumer interface {
	Run(ctx context.Context, handle BroadcastHandler) error
	Close() error
}
