package match

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// DBStore is the durable Postgres backend. Every mutation runs inside a
// transaction that locks the match row with FOR UPDATE, so the status
// guard and the write it protects cannot interleave with a concurrent
// request on the same match.
type DBStore struct {
	db *sqlx.DB
}

func NewDBStore(db *sqlx.DB) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) Name() string { return "postgres" }

type matchRow struct {
	ID        string    `db:"id"`
	HostName  string    `db:"host_name"`
	GuestName string    `db:"guest_name"`
	GameType  string    `db:"game_type"`
	Points    int       `db:"points"`
	TableCode string    `db:"table_code"`
	Status    string    `db:"status"`
	Winner    string    `db:"winner"`
	GameState []byte    `db:"game_state"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *matchRow) toMatch() (*Match, error) {
	m := &Match{
		ID:        r.ID,
		HostName:  r.HostName,
		GuestName: r.GuestName,
		GameType:  r.GameType,
		Stake:     r.Points,
		Table:     r.TableCode,
		Status:    Status(r.Status),
		Winner:    r.Winner,
		CreatedAt: r.CreatedAt,
	}
	if len(r.GameState) > 0 {
		if err := json.Unmarshal(r.GameState, &m.State); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func encodeState(st State) []byte {
	b, err := json.Marshal(st)
	if err != nil {
		log.Printf("[STORE] Failed to encode game state: %v", err)
		return []byte("{}")
	}
	return b
}

const matchColumns = `id, host_name, COALESCE(guest_name, '') AS guest_name, game_type, points,
       COALESCE(table_code, '') AS table_code, status, COALESCE(winner, '') AS winner,
       COALESCE(game_state, '{}'::jsonb) AS game_state, created_at`

func (s *DBStore) CreateWaiting(ctx context.Context, m *Match) (*Match, *Error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errInfra("Oyun oluşturulamadı.", err)
	}
	defer tx.Rollback()

	var busy int
	err = tx.Get(&busy, `
		SELECT COUNT(*) FROM matches
		WHERE status IN ('waiting', 'active')
		  AND (LOWER(host_name) = LOWER($1) OR LOWER(guest_name) = LOWER($1))
	`, m.HostName)
	if err != nil {
		return nil, errInfra("Oyun oluşturulamadı.", err)
	}
	if busy > 0 {
		return nil, errConflict("participant_busy", "Önce mevcut oyunu tamamla veya lobiye dön.")
	}

	_, err = tx.Exec(`
		INSERT INTO matches (id, host_name, guest_name, game_type, points, table_code, status, winner, game_state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, m.ID, m.HostName, m.GuestName, m.GameType, m.Stake, m.Table, string(m.Status), m.Winner, encodeState(m.State), m.CreatedAt)
	if err != nil {
		// the partial unique index on open hosts backstops the count
		// check against a concurrent create by the same host
		if isUniqueViolation(err) {
			return nil, errConflict("participant_busy", "Önce mevcut oyunu tamamla veya lobiye dön.")
		}
		return nil, errInfra("Oyun oluşturulamadı.", err)
	}
	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, errConflict("participant_busy", "Önce mevcut oyunu tamamla veya lobiye dön.")
		}
		return nil, errInfra("Oyun oluşturulamadı.", err)
	}
	return cloneMatch(m), nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (s *DBStore) Get(ctx context.Context, id string) (*Match, *Error) {
	var row matchRow
	err := s.db.GetContext(ctx, &row, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, errNotFound("Oyun bulunamadı.")
	}
	if err != nil {
		return nil, errInfra("Oyun okunamadı.", err)
	}
	m, convErr := row.toMatch()
	if convErr != nil {
		return nil, errInfra("Oyun durumu çözümlenemedi.", convErr)
	}
	return m, nil
}

// dbTx surfaces the locked match plus balance operations that commit or
// roll back together with the match update.
type dbTx struct {
	tx      *sqlx.Tx
	working *Match
}

func (t *dbTx) Match() *Match { return t.working }

func (t *dbTx) UserPoints(username string) (int, bool, error) {
	var points int
	err := t.tx.Get(&points, `SELECT points FROM users WHERE LOWER(username) = LOWER($1) FOR UPDATE`, username)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return points, true, nil
}

func (t *dbTx) AdjustPoints(username string, delta int) error {
	res, err := t.tx.Exec(`UPDATE users SET points = points + $1 WHERE LOWER(username) = LOWER($2)`, delta, username)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Printf("[STORE] Points adjustment skipped, no user row for %s", username)
	}
	return nil
}

func (t *dbTx) HasOtherActiveMatch(username string) (bool, error) {
	var cnt int
	err := t.tx.Get(&cnt, `
		SELECT COUNT(*) FROM matches
		WHERE status = 'active' AND id <> $1
		  AND (LOWER(host_name) = LOWER($2) OR LOWER(guest_name) = LOWER($2))
	`, t.working.ID, username)
	if err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (s *DBStore) Mutate(ctx context.Context, id string, fn func(tx Tx) *Error) (*Match, *Error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errInfra("Oyun güncellenemedi.", err)
	}
	defer tx.Rollback()

	var row matchRow
	err = tx.Get(&row, `SELECT `+matchColumns+` FROM matches WHERE id = $1 FOR UPDATE`, id)
	if err == sql.ErrNoRows {
		return nil, errNotFound("Oyun bulunamadı.")
	}
	if err != nil {
		return nil, errInfra("Oyun okunamadı.", err)
	}
	working, convErr := row.toMatch()
	if convErr != nil {
		return nil, errInfra("Oyun durumu çözümlenemedi.", convErr)
	}

	dtx := &dbTx{tx: tx, working: working}
	if mErr := fn(dtx); mErr != nil {
		return nil, mErr
	}

	_, err = tx.Exec(`
		UPDATE matches
		SET guest_name = $1, status = $2, winner = $3, game_state = $4
		WHERE id = $5
	`, working.GuestName, string(working.Status), working.Winner, encodeState(working.State), id)
	if err != nil {
		return nil, errInfra("Oyun güncellenemedi.", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, errInfra("Oyun güncellenemedi.", err)
	}
	return cloneMatch(working), nil
}

func (s *DBStore) Delete(ctx context.Context, id, actor string, privileged bool) (*Match, *Error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errInfra("Oyun silinemedi.", err)
	}
	defer tx.Rollback()

	var row matchRow
	err = tx.Get(&row, `SELECT `+matchColumns+` FROM matches WHERE id = $1 FOR UPDATE`, id)
	if err == sql.ErrNoRows {
		return nil, errNotFound("Oyun bulunamadı veya silme yetkin yok.")
	}
	if err != nil {
		return nil, errInfra("Oyun okunamadı.", err)
	}
	m, convErr := row.toMatch()
	if convErr != nil {
		return nil, errInfra("Oyun durumu çözümlenemedi.", convErr)
	}
	if !privileged && m.CanonicalParticipant(actor) == "" {
		return nil, errNotFound("Oyun bulunamadı veya silme yetkin yok.")
	}

	if _, err := tx.Exec(`DELETE FROM matches WHERE id = $1`, id); err != nil {
		return nil, errInfra("Oyun silinemedi.", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, errInfra("Oyun silinemedi.", err)
	}
	return m, nil
}

func (s *DBStore) ListWaiting(ctx context.Context, f WaitingFilter) ([]Summary, *Error) {
	query := `SELECT ` + matchColumns + ` FROM matches m WHERE m.status = 'waiting'`
	args := []interface{}{}
	if f.TableCode != "" {
		args = append(args, f.TableCode)
		query += ` AND LOWER(m.table_code) = LOWER($1)`
	} else if f.CafeID > 0 {
		args = append(args, f.CafeID)
		query += ` AND EXISTS (SELECT 1 FROM users u WHERE LOWER(u.username) = LOWER(m.host_name) AND u.cafe_id = $1)`
	}
	query += ` ORDER BY m.created_at DESC`

	var rows []matchRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errInfra("Lobi listesi okunamadı.", err)
	}

	out := make([]Summary, 0, len(rows))
	for i := range rows {
		m, err := rows[i].toMatch()
		if err != nil {
			log.Printf("[STORE] Skipping unreadable match %s: %v", rows[i].ID, err)
			continue
		}
		if NormalizeGameType(m.GameType) == "" {
			continue
		}
		out = append(out, m.Summary())
	}
	return out, nil
}

func (s *DBStore) FindActiveByParticipant(ctx context.Context, username string) (*Match, *Error) {
	var row matchRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+matchColumns+` FROM matches
		WHERE status = 'active'
		  AND (LOWER(host_name) = LOWER($1) OR LOWER(guest_name) = LOWER($1))
		ORDER BY created_at DESC
		LIMIT 1
	`, username)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errInfra("Aktif oyun aranamadı.", err)
	}
	m, convErr := row.toMatch()
	if convErr != nil {
		return nil, errInfra("Oyun durumu çözümlenemedi.", convErr)
	}
	if NormalizeGameType(m.GameType) == "" {
		return nil, nil
	}
	return m, nil
}

func (s *DBStore) History(ctx context.Context, username string, limit int) ([]Match, *Error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []matchRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+matchColumns+` FROM matches
		WHERE status = 'finished'
		  AND (LOWER(host_name) = LOWER($1) OR LOWER(guest_name) = LOWER($1))
		ORDER BY created_at DESC
		LIMIT $2
	`, username, limit)
	if err != nil {
		return nil, errInfra("Oyun geçmişi okunamadı.", err)
	}

	out := make([]Match, 0, len(rows))
	for i := range rows {
		m, convErr := rows[i].toMatch()
		if convErr != nil {
			log.Printf("[STORE] Skipping unreadable match %s: %v", rows[i].ID, convErr)
			continue
		}
		if NormalizeGameType(m.GameType) == "" {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

func (s *DBStore) LookupUser(ctx context.Context, username string) (*User, *Error) {
	var u User
	err := s.db.GetContext(ctx, &u, `
		SELECT username, points, COALESCE(cafe_id, 0) AS cafe_id,
		       COALESCE(table_code, '') AS table_code, is_admin
		FROM users
		WHERE LOWER(username) = LOWER($1)
	`, strings.TrimSpace(username))
	if err == sql.ErrNoRows {
		return nil, errNotFound("Kullanıcı bulunamadı.")
	}
	if err != nil {
		return nil, errInfra("Kullanıcı okunamadı.", err)
	}
	return &u, nil
}
