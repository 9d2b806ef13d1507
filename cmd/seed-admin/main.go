package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/masaplay/backend/internal/accounts"
	"github.com/masaplay/backend/internal/config"
	"github.com/masaplay/backend/internal/database"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Seed admin account
	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin"
		log.Printf("Using default admin username: %s", username)
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "change-me-in-production"
		log.Printf("WARNING: Using default admin password. Set ADMIN_PASSWORD env var in production!")
	}

	if _, err := accounts.Get(db, username); err == nil {
		log.Printf("Admin account %s already exists, nothing to do", username)
		return
	} else if err != sql.ErrNoRows {
		log.Fatalf("Failed to check admin account: %v", err)
	}

	u, err := accounts.Create(db, username, password, cfg.StartingPoints, true)
	if err != nil {
		log.Fatalf("Failed to create admin account: %v", err)
	}

	log.Printf("✓ Admin account created successfully")
	log.Printf("  Username: %s", u.Username)
	log.Printf("  Points:   %d", u.Points)
	log.Println("\nYou can now login at /api/v1/auth/login")
}
