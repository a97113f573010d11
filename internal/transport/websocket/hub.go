// Package websocket is the reference transport: a gorilla/websocket
// connection pair wired to the scope registry, presence registry, and
// send pipeline. Message ordering and delivery guarantees live in the log
// and the registry; this package only moves bytes to and from a socket.
package websocket

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/chatify/chatify/internal/chat"
	"github.com/chatify/chatify/internal/domain"
	"github.com/chatify/chatify/internal/registry"
)

// PresenceTracker is the subset of internal/presence.Registry the hub
// needs; narrowed to an interface so tests can substitute a fake instead
// of standing up Redis.
type PresenceTracker interface {
	SetOnline(ctx context.Context, userID, podID, connectionID string) error
	SetOffline(ctx context.Context, userID, podID, connectionID string) error
	Heartbeat(ctx context.Context, userID, podID, connectionID string) error
}

// Sender is the subset of internal/chat.Service the hub needs.
type Sender interface {
	Send(ctx context.Context, senderID string, req chat.SendRequest) domain.Result[domain.EnrichedChatEvent]
}

// Hub composes the scope registry, presence registry, and send pipeline
// behind the operations a transport needs: Join, Leave, Send, OnConnect,
// OnDisconnect.
type Hub struct {
	registry *registry.Registry
	presence PresenceTracker
	sender   Sender
	podID    string
	log      *logrus.Entry
}

// NewHub constructs a Hub. podID is stamped into presence records for
// every connection this pod accepts.
func NewHub(reg *registry.Registry, pres PresenceTracker, sender Sender, podID string, log *logrus.Entry) *Hub {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Hub{registry: reg, presence: pres, sender: sender, podID: podID, log: log.WithField("component", "websocket_hub")}
}

// OnConnect records the new connection in presence. Failure is logged and
// swallowed: a presence write failing must not prevent the socket from
// serving traffic.
func (h *Hub) OnConnect(ctx context.Context, userID, connectionID string) {
	if err := h.presence.SetOnline(ctx, userID, h.podID, connectionID); err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "connection_id": connectionID}).
			Warn("failed to record presence on connect")
	}
}

// OnDisconnect removes c from every scope it joined and clears its
// presence entry. Best-effort: TTL reclaims presence if this fails.
func (h *Hub) OnDisconnect(ctx context.Context, c *Client) {
	h.registry.LeaveAll(c, c.conn().JoinedScopes())
	if err := h.presence.SetOffline(ctx, c.userID, h.podID, c.id); err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{"user_id": c.userID, "connection_id": c.id}).
			Warn("failed to clear presence on disconnect")
	}
}

// Join adds c to scope's local subscriber set and records the join on c's
// Connection.
func (h *Hub) Join(c *Client, scope domain.ScopeKey) {
	h.registry.Join(scope, c)
	c.conn().MarkJoined(scope)
}

// Leave removes c from scope's local subscriber set.
func (h *Hub) Leave(c *Client, scope domain.ScopeKey) {
	h.registry.Leave(scope, c)
	c.conn().MarkLeft(scope)
}

// Heartbeat refreshes c's presence TTL without changing membership.
func (h *Hub) Heartbeat(ctx context.Context, c *Client) {
	if err := h.presence.Heartbeat(ctx, c.userID, h.podID, c.id); err != nil {
		h.log.WithError(err).WithField("connection_id", c.id).Warn("heartbeat failed")
	}
}

// Send runs req through the send pipeline on behalf of senderID.
func (h *Hub) Send(ctx context.Context, senderID string, req chat.SendRequest) domain.Result[domain.EnrichedChatEvent] {
	return h.sender.Send(ctx, senderID, req)
}

// Registry exposes the underlying scope registry so a broadcast consumer
// can be wired to deliver incoming log records to it.
func (h *Hub) Registry() *registry.Registry {
	return h.registry
}
