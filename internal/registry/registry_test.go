package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatify/chatify/internal/domain"
)

type fakeSubscriber struct {
	id       string
	mu       sync.Mutex
	received []domain.ChatEvent
	fail     bool
}

func (f *fakeSubscriber) ID() string { return f.id }

func (f *fakeSubscriber) Deliver(scope domain.ScopeKey, event domain.ChatEvent) error {
	if f.fail {
		return assertError{}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, event)
	return nil
}

func (f *fakeSubscriber) all() []domain.ChatEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ChatEvent, len(f.received))
	copy(out, f.received)
	return out
}

type assertError struct{}

func (assertError) Error() string { return "delivery failed" }

func mustScope(t *testing.T, id string) domain.ScopeKey {
	t.Helper()
	s, err := domain.NewScopeKey(domain.ScopeChannel, id)
	require.NoError(t, err)
	return s
}

func mustEvent(t *testing.T, scope domain.ScopeKey, sender, text string) domain.ChatEvent {
	t.Helper()
	e, err := domain.NewChatEvent(scope, sender, text, "pod-1", time.Now())
	require.NoError(t, err)
	return e
}

func TestJoinAndBroadcastDeliversToMembers(t *testing.T) {
	r := New(nil)
	scope := mustScope(t, "scope-1")
	a := &fakeSubscriber{id: "conn-a"}
	b := &fakeSubscriber{id: "conn-b"}

	r.Join(scope, a)
	r.Join(scope, b)

	event := mustEvent(t, scope, "user-a", "Hello from A!")
	r.Broadcast(scope, event)

	assert.Equal(t, []domain.ChatEvent{event}, a.all())
	assert.Equal(t, []domain.ChatEvent{event}, b.all())
}

func TestLeaveStopsDelivery(t *testing.T) {
	r := New(nil)
	scope := mustScope(t, "scope-1")
	a := &fakeSubscriber{id: "conn-a"}

	r.Join(scope, a)
	r.Leave(scope, a)

	r.Broadcast(scope, mustEvent(t, scope, "user-a", "hi"))
	assert.Empty(t, a.all())
	assert.Equal(t, 0, r.MemberCount(scope))
}

func TestLeaveAllRemovesFromEveryScope(t *testing.T) {
	r := New(nil)
	s1 := mustScope(t, "scope-1")
	s2 := mustScope(t, "scope-2")
	a := &fakeSubscriber{id: "conn-a"}

	r.Join(s1, a)
	r.Join(s2, a)
	r.LeaveAll(a, []domain.ScopeKey{s1, s2})

	assert.Equal(t, 0, r.MemberCount(s1))
	assert.Equal(t, 0, r.MemberCount(s2))
}

func TestBroadcastSkipsFailingSubscriberButContinues(t *testing.T) {
	r := New(nil)
	scope := mustScope(t, "scope-1")
	bad := &fakeSubscriber{id: "conn-bad", fail: true}
	good := &fakeSubscriber{id: "conn-good"}

	r.Join(scope, bad)
	r.Join(scope, good)

	event := mustEvent(t, scope, "user-a", "hi")
	r.Broadcast(scope, event)

	assert.Empty(t, bad.all())
	assert.Equal(t, []domain.ChatEvent{event}, good.all())
}

func TestBroadcastSnapshotIsSafeUnderConcurrentJoin(t *testing.T) {
	r := New(nil)
	scope := mustScope(t, "scope-1")
	event := mustEvent(t, scope, "user-a", "hi")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			sub := &fakeSubscriber{id: "conn"}
			r.Join(scope, sub)
		}(i)
		go func() {
			defer wg.Done()
			r.Broadcast(scope, event)
		}()
	}
	wg.Wait()
}
