package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatify/chatify/internal/domain"
)

func TestClientIDMatchesConstructorArgument(t *testing.T) {
	client := newTestClient("conn-1", "user-1", nil)
	assert.Equal(t, "conn-1", client.ID())
}

func TestDeliverEnqueuesMarshaledEvent(t *testing.T) {
	client := newTestClient("conn-1", "user-1", nil)
	scope := mustScope(t)
	event, err := domain.NewChatEvent(scope, "user-2", "hello", "pod-a", time.Now())
	require.NoError(t, err)

	require.NoError(t, client.Deliver(scope, event))

	select {
	case data := <-client.send:
		assert.Contains(t, string(data), "hello")
	default:
		t.Fatal("expected a delivered message on the send channel")
	}
}

func TestDeliverFailsWhenSendBufferIsFull(t *testing.T) {
	client := newTestClient("conn-1", "user-1", nil)
	client.send = make(chan []byte, 1)
	scope := mustScope(t)
	event, err := domain.NewChatEvent(scope, "user-2", "hello", "pod-a", time.Now())
	require.NoError(t, err)

	require.NoError(t, client.Deliver(scope, event))
	err = client.Deliver(scope, event)
	assert.ErrorIs(t, err, errSendBufferFull)
}
