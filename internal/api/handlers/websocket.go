package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/masaplay/backend/internal/config"
	"github.com/masaplay/backend/internal/ws"
)

// HandleGameWebSocket upgrades an authenticated realtime connection. The
// token travels in the query string because browsers cannot set headers
// on WebSocket upgrades.
func HandleGameWebSocket(hub *ws.Hub, cfg *config.Config) gin.HandlerFunc {
	return ws.HandleWebSocket(hub, func(token string) (string, error) {
		return VerifyToken(cfg, token)
	})
}
