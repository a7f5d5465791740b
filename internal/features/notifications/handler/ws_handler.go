package handler

import (
	"luckygas-dispatch/internal/features/notifications/hub"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// WSHandler upgrades office-staff connections and registers them with the
// notification hub.
type WSHandler struct {
	hub *hub.Hub
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(h *hub.Hub) *WSHandler {
	return &WSHandler{
		hub: h,
	}
}

// Upgrade rejects plain HTTP requests on the WebSocket route.
func (h *WSHandler) Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// Serve godoc
// @Summary Office notification stream
// @Description WebSocket stream of delivery status and driver location updates. Authenticate with ?token=, since browsers cannot set headers on WebSocket upgrades.
// @Tags notifications
// @Security BearerAuth
// @Router /office/ws [get]
func (h *WSHandler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		id := uuid.NewString()
		h.hub.Add(id, conn)
		defer h.hub.Remove(id)

		// Sessions are write-only; the read loop only detects disconnects.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}
