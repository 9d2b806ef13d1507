package match

import (
	"strings"
	"time"
)

// Supported game types (Turkish labels shown in the venue UI). The chess
// type carries the clock/draw sub-protocol; the social types never move
// stake between players.
const (
	ChessGameType = "Retro Satranç"
)

var supportedGameTypes = map[string]bool{
	ChessGameType:    true,
	"Refleks Avı":    true,
	"Bilgi Yarışması": true,
	"UNO Sosyal":      true,
	"101 Okey Sosyal": true,
	"Monopoly Sosyal": true,
}

var nonCompetitiveGameTypes = map[string]bool{
	"UNO Sosyal":      true,
	"101 Okey Sosyal": true,
	"Monopoly Sosyal": true,
}

// NormalizeGameType returns the canonical label for a supported game type,
// or "" when the type is unknown.
func NormalizeGameType(raw string) string {
	v := strings.TrimSpace(raw)
	if supportedGameTypes[v] {
		return v
	}
	return ""
}

// SupportedGameTypes returns the allowlist as a slice (stable order not guaranteed).
func SupportedGameTypes() []string {
	out := make([]string, 0, len(supportedGameTypes))
	for t := range supportedGameTypes {
		out = append(out, t)
	}
	return out
}

func IsChessGameType(gameType string) bool {
	return strings.TrimSpace(gameType) == ChessGameType
}

// IsNonCompetitiveGameType reports whether the type is a social game that
// never transfers stake.
func IsNonCompetitiveGameType(gameType string) bool {
	return nonCompetitiveGameTypes[strings.TrimSpace(gameType)]
}

// StakeCap is the global upper limit for points wagered on one match.
const StakeCap = 5000

// ScoreSubmission is one participant's reported result. DurationMs is a
// pointer: a missing duration sorts as slowest in the resolver.
type ScoreSubmission struct {
	Score       int    `json:"score"`
	RoundsWon   int    `json:"roundsWon"`
	DurationMs  *int64 `json:"durationMs,omitempty"`
	SubmittedAt string `json:"submittedAt"`
}

// State carries the per-game sub-state plus the cross-cutting fields only
// the engine writes. Exactly one game variant may be set (Chess for chess
// matches, nothing for the rest).
type State struct {
	ResolvedWinner    string                     `json:"resolvedWinner,omitempty"`
	ResignedBy        string                     `json:"resignedBy,omitempty"`
	ResignedAt        string                     `json:"resignedAt,omitempty"`
	SettlementApplied bool                       `json:"settlementApplied,omitempty"`
	StakeTransferred  int                        `json:"stakeTransferred,omitempty"`
	SettledAt         string                     `json:"settledAt,omitempty"`
	Results           map[string]ScoreSubmission `json:"results,omitempty"`
	Chess             *ChessState                `json:"chess,omitempty"`
}

// Match is the central entity: one two-player stake-based session at a
// venue table.
type Match struct {
	ID        string    `json:"id"`
	HostName  string    `json:"hostName"`
	GuestName string    `json:"guestName,omitempty"`
	GameType  string    `json:"gameType"`
	Stake     int       `json:"points"`
	Table     string    `json:"table"`
	Status    Status    `json:"status"`
	Winner    string    `json:"winner,omitempty"`
	State     State     `json:"gameState"`
	CreatedAt time.Time `json:"createdAt"`
}

// Participants returns the distinct non-empty participant names, host first.
func (m *Match) Participants() []string {
	out := make([]string, 0, 2)
	if h := strings.TrimSpace(m.HostName); h != "" {
		out = append(out, h)
	}
	if g := strings.TrimSpace(m.GuestName); g != "" && !strings.EqualFold(g, m.HostName) {
		out = append(out, g)
	}
	return out
}

// CanonicalParticipant resolves a candidate name to the match's stored
// spelling (case-insensitive), or "" when the name is not a participant.
func (m *Match) CanonicalParticipant(candidate string) string {
	c := strings.TrimSpace(candidate)
	if c == "" {
		return ""
	}
	for _, p := range m.Participants() {
		if strings.EqualFold(p, c) {
			return p
		}
	}
	return ""
}

// Opponent returns the other participant's canonical name, or "".
func (m *Match) Opponent(participant string) string {
	actor := m.CanonicalParticipant(participant)
	if actor == "" {
		return ""
	}
	for _, p := range m.Participants() {
		if !strings.EqualFold(p, actor) {
			return p
		}
	}
	return ""
}

// Snapshot is the externally observable projection used by the
// dual-backend equivalence property.
type Snapshot struct {
	Status            Status
	Winner            string
	SettlementApplied bool
	StakeTransferred  int
}

func (m *Match) Snapshot() Snapshot {
	return Snapshot{
		Status:            m.Status,
		Winner:            m.Winner,
		SettlementApplied: m.State.SettlementApplied,
		StakeTransferred:  m.State.StakeTransferred,
	}
}

// Summary is the lobby listing projection (no game state payload).
type Summary struct {
	ID        string    `json:"id"`
	HostName  string    `json:"hostName"`
	GameType  string    `json:"gameType"`
	Stake     int       `json:"points"`
	Table     string    `json:"table"`
	Status    Status    `json:"status"`
	GuestName string    `json:"guestName,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (m *Match) Summary() Summary {
	return Summary{
		ID:        m.ID,
		HostName:  m.HostName,
		GameType:  m.GameType,
		Stake:     m.Stake,
		Table:     m.Table,
		Status:    m.Status,
		GuestName: m.GuestName,
		CreatedAt: m.CreatedAt,
	}
}

// HistoryEntry is one row of a player's finished-match history.
type HistoryEntry struct {
	ID           string    `json:"id"`
	GameType     string    `json:"gameType"`
	Stake        int       `json:"points"`
	Table        string    `json:"table"`
	Status       Status    `json:"status"`
	Winner       string    `json:"winner,omitempty"`
	DidWin       bool      `json:"didWin"`
	OpponentName string    `json:"opponentName"`
	CreatedAt    time.Time `json:"createdAt"`
	MoveCount    int       `json:"moveCount"`
	ChessTempo   string    `json:"chessTempo,omitempty"`
}

// HistoryRow builds the history projection of a finished match from the
// given player's point of view.
func (m *Match) HistoryRow(username string) HistoryEntry {
	opponent := m.Opponent(username)
	if opponent == "" {
		opponent = "Rakip"
	}
	entry := HistoryEntry{
		ID:           m.ID,
		GameType:     m.GameType,
		Stake:        m.Stake,
		Table:        m.Table,
		Status:       m.Status,
		Winner:       m.Winner,
		DidWin:       m.Winner != "" && strings.EqualFold(m.Winner, username),
		OpponentName: opponent,
		CreatedAt:    m.CreatedAt,
	}
	if cs := m.State.Chess; cs != nil {
		entry.MoveCount = len(cs.MoveHistory)
		if cs.Clock.BaseMs > 0 || cs.Clock.IncrementMs > 0 {
			entry.ChessTempo = tempoLabel(cs.Clock.BaseMs, cs.Clock.IncrementMs)
		}
	}
	return entry
}

// User is the actor-facing slice of a player record the engine needs:
// identity, balance and check-in scope.
type User struct {
	Username  string `db:"username" json:"username"`
	Points    int    `db:"points" json:"points"`
	CafeID    int    `db:"cafe_id" json:"cafe_id"`
	TableCode string `db:"table_code" json:"table_number"`
	Admin     bool   `db:"is_admin" json:"is_admin"`
}

// Session is the trusted per-request actor context supplied by the auth
// layer. The engine never authenticates; it only reads these fields.
type Session struct {
	Username  string
	Points    int
	CafeID    int
	TableCode string
	Admin     bool
}

// HasCheckIn reports whether the actor holds a verified venue/table check-in.
func (s Session) HasCheckIn() bool {
	return s.CafeID > 0 && strings.TrimSpace(s.TableCode) != ""
}

func nowISO(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
