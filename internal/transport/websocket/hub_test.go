package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatify/chatify/internal/chat"
	"github.com/chatify/chatify/internal/domain"
	"github.com/chatify/chatify/internal/registry"
)

type fakePresence struct {
	online  map[string]bool
	offline map[string]bool
}

func newFakePresence() *fakePresence {
	return &fakePresence{online: map[string]bool{}, offline: map[string]bool{}}
}

func (f *fakePresence) SetOnline(ctx context.Context, userID, podID, connectionID string) error {
	f.online[connectionID] = true
	return nil
}

func (f *fakePresence) SetOffline(ctx context.Context, userID, podID, connectionID string) error {
	f.offline[connectionID] = true
	return nil
}

func (f *fakePresence) Heartbeat(ctx context.Context, userID, podID, connectionID string) error {
	return nil
}

type fakeSender struct {
	lastSenderID string
	lastReq      chat.SendRequest
	result       domain.Result[domain.EnrichedChatEvent]
}

func (f *fakeSender) Send(ctx context.Context, senderID string, req chat.SendRequest) domain.Result[domain.EnrichedChatEvent] {
	f.lastSenderID = senderID
	f.lastReq = req
	return f.result
}

func newTestClient(id, userID string, hub *Hub) *Client {
	return &Client{
		id:     id,
		userID: userID,
		hub:    hub,
		send:   make(chan []byte, sendBuffer),
		domain: domain.NewConnection(id, userID),
	}
}

func mustScope(t *testing.T) domain.ScopeKey {
	t.Helper()
	scope, err := domain.NewScopeKey(domain.ScopeChannel, "general")
	require.NoError(t, err)
	return scope
}

func TestOnConnectRecordsPresence(t *testing.T) {
	pres := newFakePresence()
	hub := NewHub(registry.New(nil), pres, &fakeSender{}, "pod-a", nil)

	hub.OnConnect(context.Background(), "user-1", "conn-1")

	assert.True(t, pres.online["conn-1"])
}

func TestJoinThenBroadcastDeliversToClient(t *testing.T) {
	reg := registry.New(nil)
	hub := NewHub(reg, newFakePresence(), &fakeSender{}, "pod-a", nil)
	scope := mustScope(t)
	client := newTestClient("conn-1", "user-1", hub)

	hub.Join(client, scope)
	assert.Equal(t, 1, reg.MemberCount(scope))

	event, err := domain.NewChatEvent(scope, "user-2", "hi", "pod-a", time.Now())
	require.NoError(t, err)
	reg.Broadcast(scope, event)

	select {
	case data := <-client.send:
		assert.Contains(t, string(data), "hi")
	default:
		t.Fatal("expected a delivered message")
	}
}

func TestLeaveRemovesFromRegistry(t *testing.T) {
	reg := registry.New(nil)
	hub := NewHub(reg, newFakePresence(), &fakeSender{}, "pod-a", nil)
	scope := mustScope(t)
	client := newTestClient("conn-1", "user-1", hub)

	hub.Join(client, scope)
	hub.Leave(client, scope)

	assert.Equal(t, 0, reg.MemberCount(scope))
}

func TestOnDisconnectLeavesAllJoinedScopesAndClearsPresence(t *testing.T) {
	reg := registry.New(nil)
	pres := newFakePresence()
	hub := NewHub(reg, pres, &fakeSender{}, "pod-a", nil)
	scope := mustScope(t)
	client := newTestClient("conn-1", "user-1", hub)

	hub.Join(client, scope)
	hub.OnDisconnect(context.Background(), client)

	assert.Equal(t, 0, reg.MemberCount(scope))
	assert.True(t, pres.offline["conn-1"])
}

func TestHandleFrameSendDeliversAckOnSuccess(t *testing.T) {
	event, err := domain.NewChatEvent(mustScope(t), "user-1", "hi", "pod-a", time.Now())
	require.NoError(t, err)
	sender := &fakeSender{result: domain.Success(domain.EnrichedChatEvent{ChatEvent: event})}
	hub := NewHub(registry.New(nil), newFakePresence(), sender, "pod-a", nil)
	client := newTestClient("conn-1", "user-1", hub)

	client.handleFrame(context.Background(), inboundFrame{
		Type: frameSend, ScopeType: "Channel", ScopeID: "general", Text: "hi",
	})

	assert.Equal(t, "user-1", sender.lastSenderID)
	assert.Equal(t, "hi", sender.lastReq.Text)

	select {
	case data := <-client.send:
		assert.Contains(t, string(data), event.MessageID.String())
	default:
		t.Fatal("expected an ack to be enqueued")
	}
}

func TestHandleFrameSendDeliversAckOnFailure(t *testing.T) {
	sender := &fakeSender{result: domain.Failure[domain.EnrichedChatEvent](
		domain.NewError(domain.KindRateLimitExceeded, "rate_limited", "too many requests", nil))}
	hub := NewHub(registry.New(nil), newFakePresence(), sender, "pod-a", nil)
	client := newTestClient("conn-1", "user-1", hub)

	client.handleFrame(context.Background(), inboundFrame{
		Type: frameSend, ScopeType: "Channel", ScopeID: "general", Text: "hi",
	})

	select {
	case data := <-client.send:
		assert.Contains(t, string(data), "too many requests")
	default:
		t.Fatal("expected an ack to be enqueued")
	}
}
