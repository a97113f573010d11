package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChatEventValidation(t *testing.T) {
	scope, err := NewScopeKey(ScopeChannel, "scope-1")
	require.NoError(t, err)

	_, err = NewChatEvent(scope, "", "hello", "pod-1", time.Now())
	require.Error(t, err)

	_, err = NewChatEvent(scope, "user-a", strings.Repeat("x", 4097), "pod-1", time.Now())
	require.Error(t, err)

	_, err = NewChatEvent(scope, "user-a", "hello", "", time.Now())
	require.Error(t, err)
	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindConfigurationError, e.Kind)

	event, err := NewChatEvent(scope, "user-a", "Hello from A!", "pod-1", time.Now())
	require.NoError(t, err)
	assert.NotEqual(t, event.MessageID.String(), "")
	assert.Equal(t, "user-a", event.SenderID)
}

func TestChatEventRoundTripsThroughWireFormat(t *testing.T) {
	scope, err := NewScopeKey(ScopeDirectMessage, "scope-2")
	require.NoError(t, err)
	original, err := NewChatEvent(scope, "user-b", "hi there", "pod-9", time.Now())
	require.NoError(t, err)

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var roundTripped ChatEvent
	require.NoError(t, json.Unmarshal(data, &roundTripped))

	assert.Equal(t, original.MessageID, roundTripped.MessageID)
	assert.Equal(t, original.Scope, roundTripped.Scope)
	assert.Equal(t, original.SenderID, roundTripped.SenderID)
	assert.Equal(t, original.Text, roundTripped.Text)
	assert.Equal(t, original.OriginPodID, roundTripped.OriginPodID)
	assert.WithinDuration(t, original.CreatedAtUTC, roundTripped.CreatedAtUTC, time.Millisecond)
}

func TestChatEventUnmarshalRejectsMalformedPayload(t *testing.T) {
	var e ChatEvent
	err := json.Unmarshal([]byte("not-json"), &e)
	require.Error(t, err)
	domErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindValidation, domErr.Kind)
}

func TestChatEventUnmarshalRejectsMissingFields(t *testing.T) {
	var e ChatEvent
	err := json.Unmarshal([]byte(`{"messageId":"not-a-uuid"}`), &e)
	require.Error(t, err)
}
