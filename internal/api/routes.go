package api

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/masaplay/backend/internal/api/handlers"
	"github.com/masaplay/backend/internal/config"
	"github.com/masaplay/backend/internal/match"
	"github.com/masaplay/backend/internal/ws"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, db *sqlx.DB, orch *match.Orchestrator, hub *ws.Hub, cfg *config.Config) {
	// CRITICAL: No-cache middleware MUST be first in development
	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Println("[DEV MODE] Aggressive no-cache headers enabled for all routes")
	}

	store := orch.Store()

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck(store))

		// Auth endpoints
		auth := v1.Group("/auth")
		{
			auth.POST("/login", handlers.Login(db, store, cfg))
			auth.POST("/register", handlers.Register(db, cfg))
		}

		// Realtime endpoint (token in query string)
		v1.GET("/ws", handlers.HandleGameWebSocket(hub, cfg))

		// Everything below requires a session
		authed := v1.Group("")
		authed.Use(handlers.AuthMiddleware(store, cfg))
		{
			authed.GET("/me", handlers.Me(store))
			authed.POST("/checkin", handlers.CheckIn(db))
			authed.GET("/leaderboard", handlers.Leaderboard(db))

			game := authed.Group("/games")
			{
				game.GET("", handlers.ListLobby(orch))
				game.POST("", handlers.CreateGame(orch))
				game.GET("/active", handlers.ActiveGame(orch))
				game.GET("/history", handlers.GameHistory(orch, cfg.HistoryLimit))
				game.GET("/:id", handlers.GetGameState(orch))
				game.POST("/:id/join", handlers.JoinGame(orch))
				game.POST("/:id/result", handlers.SubmitResult(orch))
				game.POST("/:id/move", handlers.ChessMove(orch))
				game.POST("/:id/draw", handlers.ChessDraw(orch))
				game.POST("/:id/resign", handlers.ResignGame(orch))
				game.POST("/:id/finish", handlers.FinishGame(orch))
				game.DELETE("/:id", handlers.DeleteGame(orch))
			}
		}
	}
}
