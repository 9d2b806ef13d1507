package accounts

import (
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/masaplay/backend/internal/models"
)

var ErrInvalidCredentials = fmt.Errorf("invalid credentials")

// Get returns the account row for a username (case-insensitive).
func Get(db *sqlx.DB, username string) (*models.UserRecord, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	var u models.UserRecord
	err := db.Get(&u, `
		SELECT username, password_hash, points, cafe_id, table_code, is_admin, created_at
		FROM users WHERE LOWER(username) = LOWER($1)
	`, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new account with a bcrypt password hash and the
// configured starting balance.
func Create(db *sqlx.DB, username, password string, startingPoints int, admin bool) (*models.UserRecord, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`
		INSERT INTO users (username, password_hash, points, is_admin, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, username, string(hash), startingPoints, admin)
	if err != nil {
		return nil, err
	}
	log.Printf("[ACCT] Created account %s (admin=%v, points=%d)", username, admin, startingPoints)
	return Get(db, username)
}

// Authenticate verifies the password against the stored bcrypt hash.
func Authenticate(db *sqlx.DB, username, password string) (*models.UserRecord, error) {
	u, err := Get(db, username)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// SetCheckIn records the venue/table the user is seated at. A zero cafe
// clears the check-in.
func SetCheckIn(db *sqlx.DB, username string, cafeID int, tableCode string) error {
	if db == nil {
		return fmt.Errorf("db is nil")
	}
	tableCode = strings.ToUpper(strings.TrimSpace(tableCode))
	if cafeID <= 0 || tableCode == "" {
		_, err := db.Exec(`UPDATE users SET cafe_id = NULL, table_code = NULL WHERE LOWER(username) = LOWER($1)`, username)
		return err
	}
	res, err := db.Exec(`
		UPDATE users SET cafe_id = $1, table_code = $2 WHERE LOWER(username) = LOWER($3)
	`, cafeID, tableCode, username)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	log.Printf("[ACCT] %s checked in at cafe=%d table=%s", strings.TrimSpace(username), cafeID, tableCode)
	return nil
}

// Leaderboard ranks accounts by points with their finished-match win counts.
func Leaderboard(db *sqlx.DB, limit int) ([]models.LeaderboardRow, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if limit <= 0 {
		limit = 20
	}
	var rows []models.LeaderboardRow
	err := db.Select(&rows, `
		SELECT u.username, u.points,
		       (SELECT COUNT(*) FROM matches m
		        WHERE m.status = 'finished' AND LOWER(m.winner) = LOWER(u.username)) AS wins
		FROM users u
		ORDER BY u.points DESC, u.username ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}
