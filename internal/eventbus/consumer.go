package eventbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/chatify/chatify/internal/domain"
)

// defaultBroadcastGroupPrefix names the per-pod consumer group family
// when no override is configured. Every pod is its own group so the
// broker fans every record out to every pod independently.
const defaultBroadcastGroupPrefix = "chatify-broadcast-"

// KafkaBroadcastConsumer reads every record on chat-events under a group
// unique to this pod and hands each to a handler.
type KafkaBroadcastConsumer struct {
	reader *kafka.Reader
	log    *logrus.Entry
}

// NewKafkaBroadcastConsumer builds the per-pod consumer. podID becomes
// part of the group id so a pod restart with the same identity resumes
// (approximately) where it left off, and a pod crash never triggers a
// rebalance on any other pod's group. groupPrefix falls back to
// defaultBroadcastGroupPrefix when empty.
func NewKafkaBroadcastConsumer(brokers []string, topic, groupPrefix, podID string, log *logrus.Entry) *KafkaBroadcastConsumer {
	if topic == "" {
		topic = DefaultTopic
	}
	if groupPrefix == "" {
		groupPrefix = defaultBroadcastGroupPrefix
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupPrefix + podID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 5 * time.Second,
	})
	return &KafkaBroadcastConsumer{reader: reader, log: log.WithField("component", "broadcast_consumer")}
}

// Run reads records until ctx is cancelled, deserializing each and
// invoking handle. A malformed record is logged and skipped rather than
// stalling the partition. handle itself must never block indefinitely
// (the caller is expected to enforce a bounded per-connection send).
func (c *KafkaBroadcastConsumer) Run(ctx context.Context, handle BroadcastHandler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("broadcast consumer fetch: %w", err)
		}

		var event domain.ChatEvent
		if unmarshalErr := event.UnmarshalJSON(msg.Value); unmarshalErr != nil {
			c.log.WithError(unmarshalErr).WithFields(logrus.Fields{
				"partition": msg.Partition,
				"offset":    msg.Offset,
			}).Warn("skipping malformed broadcast record")
			if commitErr := c.reader.CommitMessages(ctx, msg); commitErr != nil {
				c.log.WithError(commitErr).Warn("failed to commit past poison record")
			}
			continue
		}

		handle(ctx, domain.EnrichedChatEvent{ChatEvent: event, Partition: msg.Partition, Offset: msg.Offset})

		if commitErr := c.reader.CommitMessages(ctx, msg); commitErr != nil {
			c.log.WithError(commitErr).Warn("failed to commit broadcast offset")
		}
	}
}

// Close releases the reader's connections without committing further.
func (c *KafkaBroadcastConsumer) Close() error {
	return c.reader.Close()
}
