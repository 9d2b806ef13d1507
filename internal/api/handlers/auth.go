package handlers

import (
	"database/sql"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/masaplay/backend/internal/accounts"
	"github.com/masaplay/backend/internal/config"
	"github.com/masaplay/backend/internal/match"
)

// Login verifies credentials and issues a session JWT. Without a
// database (memory mode) any non-empty username is accepted, which keeps
// a cafe kiosk usable during a database outage.
func Login(db *sqlx.DB, store match.Store, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username required"})
			return
		}
		username := strings.TrimSpace(req.Username)
		if username == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username required"})
			return
		}

		if db == nil {
			u, mErr := store.LookupUser(c.Request.Context(), username)
			if mErr != nil {
				respondError(c, mErr)
				return
			}
			signed, err := IssueToken(cfg, u.Username)
			if err != nil {
				log.Printf("Failed to sign token: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			log.Printf("[AUTH] Memory-mode login for %s", u.Username)
			c.JSON(http.StatusOK, gin.H{"token": signed, "user": u})
			return
		}

		u, err := accounts.Authenticate(db, username, req.Password)
		if err == accounts.ErrInvalidCredentials {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Kullanıcı adı veya şifre hatalı."})
			return
		}
		if err != nil {
			log.Printf("[AUTH] Login failed for %s: %v", username, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		signed, err := IssueToken(cfg, u.Username)
		if err != nil {
			log.Printf("Failed to sign token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": signed, "user": gin.H{
			"username":     u.Username,
			"points":       u.Points,
			"cafe_id":      u.CafeID.Int64,
			"table_number": u.TableCode.String,
			"is_admin":     u.IsAdmin,
		}})
	}
}

// Register creates an account with the configured starting balance.
func Register(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "registration requires the database"})
			return
		}
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
			return
		}
		username := strings.TrimSpace(req.Username)
		if username == "" || len(req.Password) < 4 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password (4+ chars) required"})
			return
		}

		if _, err := accounts.Get(db, username); err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "Bu kullanıcı adı alınmış."})
			return
		} else if err != sql.ErrNoRows {
			log.Printf("[AUTH] Register lookup failed for %s: %v", username, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		u, err := accounts.Create(db, username, req.Password, cfg.StartingPoints, false)
		if err != nil {
			log.Printf("[AUTH] Register failed for %s: %v", username, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		signed, err := IssueToken(cfg, u.Username)
		if err != nil {
			log.Printf("Failed to sign token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"token": signed, "user": gin.H{
			"username": u.Username,
			"points":   u.Points,
		}})
	}
}

// CheckIn records the venue table the user is seated at.
func CheckIn(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "check-in requires the database"})
			return
		}
		var req struct {
			CafeID    int    `json:"cafe_id"`
			TableCode string `json:"table_number"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cafe_id and table_number required"})
			return
		}
		sess := sessionFrom(c)
		if err := accounts.SetCheckIn(db, sess.Username, req.CafeID, req.TableCode); err != nil {
			if err == sql.ErrNoRows {
				c.JSON(http.StatusNotFound, gin.H{"error": "Kullanıcı bulunamadı."})
				return
			}
			log.Printf("[AUTH] Check-in failed for %s: %v", sess.Username, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"checked_in": req.CafeID > 0 && strings.TrimSpace(req.TableCode) != ""})
	}
}

// Me returns the authenticated user's current record.
func Me(store match.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessionFrom(c)
		u, mErr := store.LookupUser(c.Request.Context(), sess.Username)
		if mErr != nil {
			respondError(c, mErr)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// Leaderboard returns the venue points ranking.
func Leaderboard(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusOK, gin.H{"leaderboard": []any{}})
			return
		}
		rows, err := accounts.Leaderboard(db, 20)
		if err != nil {
			log.Printf("[AUTH] Leaderboard query failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"leaderboard": rows})
	}
}
