package history

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/chatify/chatify/internal/domain"
	"github.com/chatify/chatify/internal/metrics"
)

// defaultWriterGroupID is the single shared consumer group every writer
// instance joins when no group id is configured; the broker's group
// coordinator distributes partitions across instances for linear
// scale-out.
const defaultWriterGroupID = "chatify-chat-history-writer"

// defaultMaxPayloadLogBytes bounds the preview logged for a poison
// payload when no override is configured.
const defaultMaxPayloadLogBytes = 256

// recordReader is the slice of *kafka.Reader the writer depends on,
// narrowed to an interface so tests can substitute a fake broker.
type recordReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Writer consumes chat-events under the shared group and appends each
// record to Store, retrying transient failures and skipping poison
// payloads.
type Writer struct {
	reader             recordReader
	store              Store
	retry              RetryPolicy
	log                *logrus.Entry
	maxPayloadLogBytes int
}

// NewWriter builds a writer over brokers/topic, appending into store.
// groupID and maxPayloadLogBytes fall back to defaultWriterGroupID and
// defaultMaxPayloadLogBytes when left at their zero value.
func NewWriter(brokers []string, topic, groupID string, maxPayloadLogBytes int, store Store, retry RetryPolicy, log *logrus.Entry) *Writer {
	if topic == "" {
		topic = "chat-events"
	}
	if groupID == "" {
		groupID = defaultWriterGroupID
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0, // we commit explicitly, one record at a time
	})
	w := newWriter(reader, store, retry, log)
	if maxPayloadLogBytes > 0 {
		w.maxPayloadLogBytes = maxPayloadLogBytes
	}
	return w
}

func newWriter(reader recordReader, store Store, retry RetryPolicy, log *logrus.Entry) *Writer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Writer{
		reader:             reader,
		store:              store,
		retry:              retry,
		log:                log.WithField("component", "history_writer"),
		maxPayloadLogBytes: defaultMaxPayloadLogBytes,
	}
}

// Run processes records until ctx is cancelled.
func (w *Writer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msg, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := w.processRecord(ctx, msg); err != nil {
			return err
		}
	}
}

func (w *Writer) processRecord(ctx context.Context, msg kafka.Message) error {
	var event domain.ChatEvent
	if err := event.UnmarshalJSON(msg.Value); err != nil {
		preview := msg.Value
		if len(preview) > w.maxPayloadLogBytes {
			preview = preview[:w.maxPayloadLogBytes]
		}
		w.log.WithFields(logrus.Fields{
			"partition": msg.Partition,
			"offset":    msg.Offset,
			"preview":   string(preview),
		}).Warn("skipping poison record")
		metrics.HistoryWriterPoisonSkipsTotal.Inc()
		w.commit(ctx, msg)
		return nil
	}

	if err := w.appendWithRetry(ctx, event, msg.Partition, msg.Offset); err != nil {
		// The fetch already advanced the reader's in-session position past
		// this offset, so without a commit a restart (or rebalance) is what
		// re-reads it from the last committed offset. Stop the loop here
		// rather than continuing on to the next record.
		w.log.WithError(err).WithField("message_id", event.MessageID).Error("stopping writer: append retries exhausted")
		return err
	}

	w.commit(ctx, msg)
	return nil
}

func (w *Writer) appendWithRetry(ctx context.Context, event domain.ChatEvent, partition int, offset int64) error {
	var lastErr error
	for attempt := 0; attempt < w.retry.MaxAttempts(); attempt++ {
		appendStart := time.Now()
		lastErr = w.store.Append(ctx, event, partition, offset)
		metrics.ObserveAppendLatency(appendStart)
		if lastErr == nil {
			return nil
		}
		if !w.retry.ShouldRetry(lastErr) {
			w.log.WithError(lastErr).WithField("message_id", event.MessageID).Error("permanent append failure")
			return lastErr
		}
		metrics.HistoryWriterRetriesTotal.Inc()
		w.log.WithError(lastErr).WithFields(logrus.Fields{
			"message_id": event.MessageID,
			"attempt":    attempt,
		}).Warn("transient append failure, retrying")
		time.Sleep(w.retry.NextDelay(attempt))
	}
	w.log.WithError(lastErr).WithField("message_id", event.MessageID).Error("append retries exhausted")
	return lastErr
}

func (w *Writer) commit(ctx context.Context, msg kafka.Message) {
	if err := w.reader.CommitMessages(ctx, msg); err != nil {
		w.log.WithError(err).Warn("failed to commit history writer offset")
	}
}

// Close releases the reader.
func (w *Writer) Close() error {
	return w.reader.Close()
}
