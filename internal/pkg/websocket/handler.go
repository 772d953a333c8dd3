package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// TopicResolver returns the topics the authenticated caller may subscribe to
type TopicResolver func(c *gin.Context) ([]string, bool)

// Handler for WebSocket connections
type Handler struct {
	hub     *Hub
	resolve TopicResolver
	logger  zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, resolve TopicResolver, logger zerolog.Logger) *Handler {
	return &Handler{hub: hub, resolve: resolve, logger: logger}
}

// HandleConnection godoc
// @Summary Subscribe to notifications
// @Description Upgrades the connection to a WebSocket that pushes the caller's application notifications
// @Tags notifications
// @Security BearerAuth
// @Success 101 {string} string "Switching Protocols to WebSocket"
// @Failure 401 {object} dto.ErrorResponse
// @Router /notifications/ws [get]
func (h *Handler) HandleConnection(c *gin.Context) {
	topics, ok := h.resolve(c)
	if !ok || len(topics) == 0 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().Err(err).Strs("topics", topics).Msg("Failed to upgrade connection to WebSocket")
		return
	}

	client := &Client{
		hub:    h.hub,
		conn:   conn,
		send:   make(chan []byte, 64),
		topics: topics,
		logger: h.logger,
	}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}
