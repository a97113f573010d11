package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Handler upgrades gin requests to websocket connections and wires each
// one to a Hub.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	log      *logrus.Entry
}

// NewHandler constructs a Handler. allowedOrigins empty means same-origin
// only is not enforced (development mode); production deployments should
// pass an explicit allow-list.
func NewHandler(hub *Hub, allowedOrigins []string, log *logrus.Entry) *Handler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, allowed := range allowedOrigins {
					if origin == allowed {
						return true
					}
				}
				return false
			},
		},
		log: log.WithField("component", "websocket_handler"),
	}
}

// ServeWS upgrades the connection and runs the client's pumps until the
// socket closes. userID is expected to already be set in the gin context
// by an upstream auth middleware.
func (h *Handler) ServeWS(c *gin.Context) {
	userID := c.GetString("userId")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	connectionID := uuid.New().String()
	client := NewClient(connectionID, userID, conn, h.hub, h.log)

	ctx := c.Request.Context()
	h.hub.OnConnect(ctx, userID, connectionID)
	defer h.hub.OnDisconnect(ctx, client)

	client.Run(ctx)
}
