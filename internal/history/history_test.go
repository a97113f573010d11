package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatify/chatify/internal/domain"
)

type fakeReader struct {
	mu        sync.Mutex
	records   []kafka.Message
	idx       int
	committed []kafka.Message
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx >= len(f.records) {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := f.records[f.idx]
	f.idx++
	return msg, nil
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error { return nil }

func (f *fakeReader) committedOffsets() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, len(f.committed))
	for i, m := range f.committed {
		out[i] = m.Offset
	}
	return out
}

type fakeStore struct {
	mu      sync.Mutex
	appends []domain.ChatEvent
	failN   int
}

func (f *fakeStore) Append(ctx context.Context, event domain.ChatEvent, partition int, offset int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failN > 0 {
		f.failN--
		return errors.New("transient failure")
	}
	f.appends = append(f.appends, event)
	return nil
}

func (f *fakeStore) QueryByScope(ctx context.Context, scope domain.ScopeKey, from, to *time.Time, limit int) ([]domain.ChatEvent, error) {
	return nil, nil
}

type alwaysRetry struct{}

func (alwaysRetry) ShouldRetry(error) bool      { return true }
func (alwaysRetry) NextDelay(int) time.Duration { return time.Millisecond }
func (alwaysRetry) MaxAttempts() int            { return 3 }

type neverRetry struct{}

func (neverRetry) ShouldRetry(error) bool      { return false }
func (neverRetry) NextDelay(int) time.Duration { return 0 }
func (neverRetry) MaxAttempts() int             { return 1 }

func mustEventJSON(t *testing.T) []byte {
	t.Helper()
	scope, err := domain.NewScopeKey(domain.ScopeChannel, "scope-2")
	require.NoError(t, err)
	event, err := domain.NewChatEvent(scope, "user-d", "hi", "pod-1", time.Now())
	require.NoError(t, err)
	data, err := event.MarshalJSON()
	require.NoError(t, err)
	return data
}

func TestWriterSkipsAndCommitsPoisonPayload(t *testing.T) {
	reader := &fakeReader{records: []kafka.Message{
		{Partition: 0, Offset: 0, Value: []byte("not-json")},
		{Partition: 0, Offset: 1, Value: mustEventJSON(t)},
	}}
	store := &fakeStore{}
	w := newWriter(reader, store, neverRetry{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = w.Run(ctx)

	assert.Len(t, store.appends, 1)
	assert.Equal(t, "hi", store.appends[0].Text)
	assert.ElementsMatch(t, []int64{0, 1}, reader.committedOffsets())
}

func TestWriterDoesNotCommitOnRetryExhaustion(t *testing.T) {
	reader := &fakeReader{records: []kafka.Message{
		{Partition: 0, Offset: 0, Value: mustEventJSON(t)},
	}}
	store := &fakeStore{failN: 10}
	w := newWriter(reader, store, alwaysRetry{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = w.Run(ctx)

	assert.Empty(t, store.appends)
	assert.Empty(t, reader.committedOffsets())
}

func TestWriterRetriesTransientThenSucceeds(t *testing.T) {
	reader := &fakeReader{records: []kafka.Message{
		{Partition: 0, Offset: 0, Value: mustEventJSON(t)},
	}}
	store := &fakeStore{failN: 2}
	w := newWriter(reader, store, alwaysRetry{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = w.Run(ctx)

	assert.Len(t, store.appends, 1)
	assert.Equal(t, []int64{0}, reader.committedOffsets())
}

func TestReaderQueryByScopeRejectsInvalidScopeType(t *testing.T) {
	reader := NewReader(&fakeStore{})
	result := reader.QueryByScope(context.Background(), domain.ScopeType("Bogus"), "scope-1", nil, nil, 10)
	assert.False(t, result.Ok())
	assert.Equal(t, domain.KindValidation, result.Err().Kind)
}

func TestExponentialBackoffClassifiesDeadlineExceededAsTransient(t *testing.T) {
	policy := NewExponentialBackoffPolicy(5, time.Millisecond, time.Second, time.Millisecond, 1)
	assert.True(t, policy.ShouldRetry(context.DeadlineExceeded))
	assert.False(t, policy.ShouldRetry(errors.New("syntax error at or near")))
}

func TestExponentialBackoffNextDelayNeverExceedsCap(t *testing.T) {
	policy := NewExponentialBackoffPolicy(20, time.Millisecond, 50*time.Millisecond, 5*time.Millisecond, 42)
	for attempt := 0; attempt < 20; attempt++ {
		assert.LessOrEqual(t, policy.NextDelay(attempt), 50*time.Millisecond)
	}
}
