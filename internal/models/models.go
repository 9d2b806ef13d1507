package models

import (
	"database/sql"
	"time"
)

// UserRecord represents a player account row
type UserRecord struct {
	Username     string         `db:"username" json:"username"`
	PasswordHash string         `db:"password_hash" json:"-"`
	Points       int            `db:"points" json:"points"`
	CafeID       sql.NullInt64  `db:"cafe_id" json:"cafe_id,omitempty"`
	TableCode    sql.NullString `db:"table_code" json:"table_number,omitempty"`
	IsAdmin      bool           `db:"is_admin" json:"is_admin"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// LeaderboardRow is one row of the venue points ranking
type LeaderboardRow struct {
	Rank     int    `json:"rank"`
	Username string `db:"username" json:"username"`
	Points   int    `db:"points" json:"points"`
	Wins     int    `db:"wins" json:"wins"`
}
