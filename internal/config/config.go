package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL string
	// Storage selects the persistence backend: "db", "memory" or "auto"
	// (use the database, fall back to memory when it is unreachable).
	Storage string

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Match Settings
	StakeCap          int
	StartingPoints    int
	HistoryLimit      int
	LobbyCacheTTLSecs int

	// Security
	JWTSecret         string
	SessionTimeoutMin int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/masaplay?sslmode=disable"),
		Storage:     getEnv("STORAGE_BACKEND", "auto"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Match Settings
		StakeCap:          getEnvInt("STAKE_CAP", 5000),
		StartingPoints:    getEnvInt("STARTING_POINTS", 1000),
		HistoryLimit:      getEnvInt("HISTORY_LIMIT", 25),
		LobbyCacheTTLSecs: getEnvInt("LOBBY_CACHE_TTL_SECONDS", 60),

		// Security
		JWTSecret:         getEnv("JWT_SECRET", "change-me-in-production"),
		SessionTimeoutMin: getEnvInt("SESSION_TIMEOUT_MINUTES", 720),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
