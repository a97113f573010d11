package domain

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxTextLength = 4096

// ChatEvent is an immutable message addressed to a scope. Every field is
// frozen after construction. NewChatEvent builds events born in the send
// pipeline; RehydrateChatEvent and UnmarshalJSON rebuild events that were
// already stamped.
type ChatEvent struct {
	MessageID    uuid.UUID
	Scope        ScopeKey
	SenderID     string
	Text         string
	CreatedAtUTC time.Time
	OriginPodID  string
}

// ValidateChatEventFields checks sender_id and text against the same rules
// NewChatEvent enforces, without constructing an event. Callers that need
// to validate ahead of a later step (e.g. before spending rate-limit
// budget) use this instead of constructing and discarding an event.
func ValidateChatEventFields(senderID, text string) error {
	if err := validateID(senderID, "sender_id"); err != nil {
		return err
	}
	if len(text) > maxTextLength {
		return NewError(KindValidation, "text_length", fmt.Sprintf("text must be <= %d characters", maxTextLength), nil)
	}
	if !utf8.ValidString(text) {
		return NewError(KindValidation, "text_encoding", "text must be valid UTF-8", nil)
	}
	return nil
}

// NewChatEvent validates and stamps a ChatEvent. It is the single place
// that enforces field invariants on construction.
func NewChatEvent(scope ScopeKey, senderID, text, originPodID string, createdAt time.Time) (ChatEvent, error) {
	if err := ValidateChatEventFields(senderID, text); err != nil {
		return ChatEvent{}, err
	}
	if originPodID == "" {
		return ChatEvent{}, NewError(KindConfigurationError, "origin_pod_empty", "origin pod id must not be empty", nil)
	}
	return ChatEvent{
		MessageID:    uuid.New(),
		Scope:        scope,
		SenderID:     senderID,
		Text:         text,
		CreatedAtUTC: createdAt.UTC(),
		OriginPodID:  originPodID,
	}, nil
}

// RehydrateChatEvent reconstructs a ChatEvent from already-validated,
// already-persisted fields (message_id and created_at_utc are fixed, not
// freshly generated). Used by the history reader when loading rows back
// out of the columnar store; NewChatEvent is reserved for events born in
// the send pipeline.
func RehydrateChatEvent(scope ScopeKey, messageID uuid.UUID, senderID, text, originPodID string, createdAt time.Time) (ChatEvent, error) {
	if err := validateID(senderID, "sender_id"); err != nil {
		return ChatEvent{}, err
	}
	if originPodID == "" {
		return ChatEvent{}, NewError(KindConfigurationError, "origin_pod_empty", "origin pod id must not be empty", nil)
	}
	return ChatEvent{
		MessageID:    messageID,
		Scope:        scope,
		SenderID:     senderID,
		Text:         text,
		CreatedAtUTC: createdAt.UTC(),
		OriginPodID:  originPodID,
	}, nil
}

// EnrichedChatEvent is a ChatEvent annotated with its physical location in
// the log, produced by the producer on publish and carried by consumers.
type EnrichedChatEvent struct {
	ChatEvent
	Partition int
	Offset    int64
}

// wireEvent is the JSON shape for the chat-events topic: camelCase field
// names, ISO-8601 timestamp.
type wireEvent struct {
	MessageID    string `json:"messageId"`
	ScopeType    string `json:"scopeType"`
	ScopeID      string `json:"scopeId"`
	SenderID     string `json:"senderId"`
	Text         string `json:"text"`
	CreatedAtUTC string `json:"createdAtUtc"`
	OriginPodID  string `json:"originPodId"`
}

// MarshalJSON serializes a ChatEvent into the chat-events wire format.
func (e ChatEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEvent{
		MessageID:    e.MessageID.String(),
		ScopeType:    string(e.Scope.Type),
		ScopeID:      e.Scope.ID,
		SenderID:     e.SenderID,
		Text:         e.Text,
		CreatedAtUTC: e.CreatedAtUTC.Format(time.RFC3339Nano),
		OriginPodID:  e.OriginPodID,
	})
}

// UnmarshalJSON deserializes the wire format into a ChatEvent. It returns a
// *Error classified as Validation on any malformed or missing field, which
// the history writer treats as a permanent (poison) failure.
func (e *ChatEvent) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return NewError(KindValidation, "payload_malformed", "payload is not valid JSON", err)
	}

	id, parseErr := uuid.Parse(w.MessageID)
	if parseErr != nil {
		return NewError(KindValidation, "message_id_invalid", "messageId is not a valid uuid", parseErr)
	}

	scope, scopeErr := NewScopeKey(ScopeType(w.ScopeType), w.ScopeID)
	if scopeErr != nil {
		return scopeErr
	}

	if err := validateID(w.SenderID, "sender_id"); err != nil {
		return err
	}
	if len(w.Text) > maxTextLength || !utf8.ValidString(w.Text) {
		return NewError(KindValidation, "text_invalid", "text is missing, too long, or not valid UTF-8", nil)
	}

	createdAt, timeErr := time.Parse(time.RFC3339Nano, w.CreatedAtUTC)
	if timeErr != nil {
		return NewError(KindValidation, "created_at_invalid", "createdAtUtc is not a valid ISO-8601 timestamp", timeErr)
	}

	if w.OriginPodID == "" {
		return NewError(KindValidation, "origin_pod_empty", "originPodId must not be empty", nil)
	}

	*e = ChatEvent{
		MessageID:    id,
		Scope:        scope,
		SenderID:     w.SenderID,
		Text:         w.Text,
		CreatedAtUTC: createdAt,
		OriginPodID:  w.OriginPodID,
	}
	return nil
}
