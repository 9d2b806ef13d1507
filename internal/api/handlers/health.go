package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/masaplay/backend/internal/match"
)

var startTime = time.Now()

const version = "1.3.0"

// HealthCheck returns server health status and the active storage backend
func HealthCheck(store match.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "masaplay-api",
			"version": version,
			"storage": store.Name(),
			"uptime":  time.Since(startTime).String(),
		})
	}
}
