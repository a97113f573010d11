package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/chatify/chatify/internal/chat"
	"github.com/chatify/chatify/internal/domain"
)

const (
	maxMessageSize = 65536
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBuffer     = 256

	// localRatePerSecond and localBurst bound one connection's own read
	// rate, independent of the cluster-wide rate limiter: a noisy single
	// connection should not consume a sender's whole shared budget on
	// frames that never even reach Send (e.g. rapid joins).
	localRatePerSecond = 20
	localBurst         = 40
)

// inboundFrame is the wire shape of a client-to-server message.
type inboundFrame struct {
	Type      string `json:"type"`
	ScopeType string `json:"scopeType,omitempty"`
	ScopeID   string `json:"scopeId,omitempty"`
	Text      string `json:"text,omitempty"`
}

const (
	frameJoin      = "join"
	frameLeave     = "leave"
	frameSend      = "send"
	frameHeartbeat = "heartbeat"
)

// outboundAck acknowledges a send, success or failure.
type outboundAck struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Client pairs a websocket connection with the domain Connection tracking
// its scope memberships, and satisfies registry.Subscriber so the scope
// registry can deliver to it directly.
type Client struct {
	id      string
	userID  string
	ws      *websocket.Conn
	hub     *Hub
	send    chan []byte
	domain  *domain.Connection
	limiter *rate.Limiter
	log     *logrus.Entry
}

// NewClient wraps an upgraded websocket connection.
func NewClient(id, userID string, ws *websocket.Conn, hub *Hub, log *logrus.Entry) *Client {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		id:      id,
		userID:  userID,
		ws:      ws,
		hub:     hub,
		send:    make(chan []byte, sendBuffer),
		domain:  domain.NewConnection(id, userID),
		limiter: rate.NewLimiter(rate.Limit(localRatePerSecond), localBurst),
		log:     log.WithFields(logrus.Fields{"component": "websocket_client", "connection_id": id}),
	}
}

// ID satisfies registry.Subscriber.
func (c *Client) ID() string { return c.id }

func (c *Client) conn() *domain.Connection { return c.domain }

// Deliver satisfies registry.Subscriber: it marshals event to the wire
// format and enqueues it on the client's buffered send channel. A full
// buffer means a stalled connection; delivery is dropped rather than
// blocking the scope's broadcast, per the non-blocking bounded-queue
// requirement on the broadcast fan-out path.
func (c *Client) Deliver(scope domain.ScopeKey, event domain.ChatEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

var errSendBufferFull = errors.New("send buffer full, dropping delivery")

// Run starts the read and write pumps and blocks until either exits. The
// caller is expected to invoke it from its own goroutine or accept the
// block; hub lifecycle hooks (OnConnect/OnDisconnect) are the caller's
// responsibility, not Run's.
func (c *Client) Run(ctx context.Context) {
	done := make(chan struct{})
	go c.writePump(done)
	c.readPump(ctx, done)
}

func (c *Client) readPump(ctx context.Context, done chan struct{}) {
	defer func() {
		close(done)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame inboundFrame
		if err := c.ws.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("websocket read error")
			}
			return
		}
		if !c.limiter.Allow() {
			continue
		}
		c.handleFrame(ctx, frame)
	}
}

func (c *Client) handleFrame(ctx context.Context, frame inboundFrame) {
	switch frame.Type {
	case frameJoin:
		scope, err := domain.NewScopeKey(domain.ScopeType(frame.ScopeType), frame.ScopeID)
		if err != nil {
			return
		}
		c.hub.Join(c, scope)
	case frameLeave:
		scope, err := domain.NewScopeKey(domain.ScopeType(frame.ScopeType), frame.ScopeID)
		if err != nil {
			return
		}
		c.hub.Leave(c, scope)
	case frameHeartbeat:
		c.hub.Heartbeat(ctx, c)
	case frameSend:
		result := c.hub.Send(ctx, c.userID, chat.SendRequest{
			ScopeType: domain.ScopeType(frame.ScopeType),
			ScopeID:   frame.ScopeID,
			Text:      frame.Text,
		})
		ack := outboundAck{Type: "ack"}
		if result.Ok() {
			ack.MessageID = result.Value().MessageID.String()
		} else {
			ack.Error = result.Err().Message
		}
		if data, err := json.Marshal(ack); err == nil {
			select {
			case c.send <- data:
			default:
			}
		}
	default:
		c.log.WithField("frame_type", frame.Type).Debug("unknown frame type")
	}
}

func (c *Client) writePump(done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
