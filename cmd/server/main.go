package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/masaplay/backend/internal/api"
	"github.com/masaplay/backend/internal/config"
	"github.com/masaplay/backend/internal/database"
	"github.com/masaplay/backend/internal/lobby"
	"github.com/masaplay/backend/internal/match"
	"github.com/masaplay/backend/internal/middleware"
	"github.com/masaplay/backend/internal/migrations"
	"github.com/masaplay/backend/internal/redis"
	"github.com/masaplay/backend/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database (optional: the engine falls back to the
	// in-memory mirror when the database is unreachable)
	var db *sqlx.DB
	if cfg.Storage != "memory" {
		var err error
		db, err = database.Connect(cfg.DatabaseURL)
		if err != nil {
			if cfg.Storage == "db" {
				log.Fatalf("Failed to connect to database: %v", err)
			}
			log.Printf("[BOOT] Database unavailable (%v), falling back to in-memory storage", err)
			db = nil
		}
	}
	if db != nil {
		defer db.Close()

		// Run migrations on start if requested
		if os.Getenv("MIGRATE_ON_START") == "true" {
			log.Println("↗ Running DB migrations on startup...")
			if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
				log.Fatalf("Failed to run migrations: %v", err)
			}
		}
	}

	// Select the persistence backend
	var store match.Store
	if db != nil {
		store = match.NewDBStore(db)
	} else {
		mem := match.NewMemoryStore()
		mem.AutoProvisionUsers(cfg.StartingPoints)
		store = mem
	}
	log.Printf("[BOOT] Storage backend: %s", store.Name())

	// Initialize Redis (optional: without it notifications stay
	// process-local and the lobby listing always hits the store)
	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		log.Printf("[BOOT] Redis unavailable (%v), running without cache and pubsub", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}

	// Realtime hub plus the redis pubsub bridge
	hub := ws.NewHub()
	go hub.Run()
	ws.StartEventSubscriber(context.Background(), rdb, hub)

	notifier := ws.NewPublisher(rdb, hub)

	var lobbyCache match.LobbyCache = match.NopLobbyCache{}
	if rdb != nil {
		lobbyCache = lobby.NewCache(rdb, time.Duration(cfg.LobbyCacheTTLSecs)*time.Second)
	}

	orch := match.NewOrchestrator(store, notifier, lobbyCache, cfg.StakeCap)

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Use(middleware.CORSMiddleware(cfg))
	router.Use(middleware.WebSocketCORSCheck(cfg))

	// Initialize API handlers
	api.SetupRoutes(router, db, orch, hub, cfg)

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting MasaPlay server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
