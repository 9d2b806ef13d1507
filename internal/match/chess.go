package match

import (
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
)

// Chess clock configuration bounds. Inputs outside the window are clamped,
// matching what the table clients send.
const (
	minClockBaseSeconds      = 60
	maxClockBaseSeconds      = 1800
	minClockIncrementSeconds = 0
	maxClockIncrementSeconds = 30

	defaultClockBaseMs      = 3 * 60 * 1000
	defaultClockIncrementMs = 2 * 1000
	defaultClockLabel       = "3+2 Blitz"

	maxStoredMoves = 300
)

// ChessClock is the per-side clock state. An empty LastTickAt means the
// clock is not running (match not yet active, or already final).
type ChessClock struct {
	BaseMs      int64  `json:"baseMs"`
	IncrementMs int64  `json:"incrementMs"`
	Label       string `json:"label,omitempty"`
	WhiteMs     int64  `json:"whiteMs"`
	BlackMs     int64  `json:"blackMs"`
	LastTickAt  string `json:"lastTickAt,omitempty"`
}

// DrawOffer is the chess draw sub-protocol record. At most one pending
// offer exists at a time.
type DrawOffer struct {
	Status      string `json:"status"` // pending | accepted | rejected | cancelled
	OfferedBy   string `json:"offeredBy"`
	CreatedAt   string `json:"createdAt"`
	RespondedBy string `json:"respondedBy,omitempty"`
	RespondedAt string `json:"respondedAt,omitempty"`
}

// ChessMoveRecord is one applied move as stored in the state history.
type ChessMoveRecord struct {
	From  string `json:"from"`
	To    string `json:"to"`
	SAN   string `json:"san"`
	UCI   string `json:"lan"`
	Color string `json:"color"`
	Ts    string `json:"ts"`
}

// ChessState is the chess variant of the per-game sub-state.
type ChessState struct {
	Version       int               `json:"version"`
	FEN           string            `json:"fen"`
	Turn          string            `json:"turn"` // "w" | "b"
	IsGameOver    bool              `json:"isGameOver"`
	Result        string            `json:"result,omitempty"`
	Winner        string            `json:"winner,omitempty"`
	TimedOutColor string            `json:"timedOutColor,omitempty"`
	MoveHistory   []ChessMoveRecord `json:"moveHistory"`
	DrawOffer     *DrawOffer        `json:"drawOffer,omitempty"`
	Clock         ChessClock        `json:"clock"`
	StartedAt     string            `json:"startedAt,omitempty"`
	UpdatedAt     string            `json:"updatedAt"`
}

// ClockInput is the client-supplied clock configuration at creation time.
type ClockInput struct {
	BaseSeconds      int `json:"baseSeconds"`
	IncrementSeconds int `json:"incrementSeconds"`
}

func normalizeClockConfig(in *ClockInput) ChessClock {
	base := int64(defaultClockBaseMs / 1000)
	inc := int64(defaultClockIncrementMs / 1000)
	label := defaultClockLabel
	if in != nil {
		base = clampInt64(int64(in.BaseSeconds), minClockBaseSeconds, maxClockBaseSeconds)
		inc = clampInt64(int64(in.IncrementSeconds), minClockIncrementSeconds, maxClockIncrementSeconds)
		label = fmt.Sprintf("%d+%d", base/60, inc)
	}
	return ChessClock{
		BaseMs:      base * 1000,
		IncrementMs: inc * 1000,
		Label:       label,
		WhiteMs:     base * 1000,
		BlackMs:     base * 1000,
	}
}

func clampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NewChessState builds the initial chess sub-state for a waiting match.
// The clock is configured but not running until the guest joins.
func NewChessState(clock *ClockInput, now time.Time) *ChessState {
	game := nchess.NewGame()
	return &ChessState{
		Version:     1,
		FEN:         game.FEN(),
		Turn:        "w",
		MoveHistory: []ChessMoveRecord{},
		Clock:       normalizeClockConfig(clock),
		UpdatedAt:   nowISO(now),
	}
}

// ActivateChessClock starts the clock when the match goes active. Safe on
// a nil state (older matches created without one).
func ActivateChessClock(cs *ChessState, now time.Time) *ChessState {
	if cs == nil {
		cs = NewChessState(nil, now)
	}
	cs.Clock.LastTickAt = nowISO(now)
	if cs.StartedAt == "" {
		cs.StartedAt = nowISO(now)
	}
	cs.UpdatedAt = nowISO(now)
	return cs
}

// ParticipantColor maps a canonical participant onto a chess side: the
// host always plays white, the guest black. Returns "" for non-participants.
func ParticipantColor(m *Match, participant string) string {
	p := m.CanonicalParticipant(participant)
	switch {
	case p == "":
		return ""
	case strings.EqualFold(p, m.HostName):
		return "w"
	default:
		return "b"
	}
}

func participantForColor(m *Match, color string) string {
	if color == "w" {
		return strings.TrimSpace(m.HostName)
	}
	return strings.TrimSpace(m.GuestName)
}

// reconstructGame replays the stored UCI history from the start position.
// The stored FEN is presentation state; replaying avoids double-applying.
func reconstructGame(cs *ChessState) (*nchess.Game, error) {
	game := nchess.NewGame()
	for _, rec := range cs.MoveHistory {
		if err := game.PushNotationMove(rec.UCI, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("replay %q: %w", rec.UCI, err)
		}
	}
	return game, nil
}

// ChessMoveInput is a square-to-square move request.
type ChessMoveInput struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

var validPromotions = map[string]bool{"q": true, "r": true, "b": true, "n": true}

// sanitizeChessMove validates the square coordinates and returns the UCI
// encoding, or "" when malformed.
func sanitizeChessMove(in ChessMoveInput) string {
	from := strings.ToLower(strings.TrimSpace(in.From))
	to := strings.ToLower(strings.TrimSpace(in.To))
	promo := strings.ToLower(strings.TrimSpace(in.Promotion))
	if !isChessSquare(from) || !isChessSquare(to) {
		return ""
	}
	if promo != "" && !validPromotions[promo] {
		return ""
	}
	return from + to + promo
}

func isChessSquare(s string) bool {
	return len(s) == 2 && s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}

// applyChessMove applies one move for the given color, ticking the mover's
// clock. The caller has already ruled out a flag fall via timeoutResolution.
func applyChessMove(m *Match, cs *ChessState, color string, in ChessMoveInput, now time.Time) (*ChessState, *Error) {
	uci := sanitizeChessMove(in)
	if uci == "" {
		return nil, errValidation("invalid_move", "Geçersiz kare pozisyonu.")
	}
	if cs.IsGameOver {
		return nil, errConflict("game_over", "Oyun zaten sonuçlanmış.")
	}
	if cs.Turn != color {
		return nil, errConflict("not_your_turn", "Şu an senin sıran değil.")
	}

	game, err := reconstructGame(cs)
	if err != nil {
		return nil, errInfra("Satranç durumu yeniden kurulamadı.", err)
	}
	pos := game.Position()
	mv, derr := nchess.UCINotation{}.Decode(pos, uci)
	if derr != nil {
		return nil, errValidation("illegal_move", "Geçersiz hamle.")
	}
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	if err := game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
		return nil, errValidation("illegal_move", "Geçersiz hamle.")
	}

	record := ChessMoveRecord{
		From:  uci[:2],
		To:    uci[2:4],
		SAN:   san,
		UCI:   uci,
		Color: color,
		Ts:    nowISO(now),
	}
	history := cs.MoveHistory
	if len(history) >= maxStoredMoves {
		history = history[len(history)-maxStoredMoves+1:]
	}

	next := *cs
	next.FEN = game.FEN()
	next.Turn = colorLetter(game.Position().Turn())
	next.MoveHistory = append(append([]ChessMoveRecord{}, history...), record)
	next.Clock = tickClock(cs.Clock, color, now)
	next.UpdatedAt = nowISO(now)

	switch game.Outcome() {
	case nchess.WhiteWon:
		next.IsGameOver = true
		next.Winner = participantForColor(m, "w")
		next.Result = resultFromMethod(game.Method())
		next.Clock.LastTickAt = ""
	case nchess.BlackWon:
		next.IsGameOver = true
		next.Winner = participantForColor(m, "b")
		next.Result = resultFromMethod(game.Method())
		next.Clock.LastTickAt = ""
	case nchess.Draw:
		next.IsGameOver = true
		next.Result = resultFromMethod(game.Method())
		next.Clock.LastTickAt = ""
	}

	return &next, nil
}

// tickClock charges the mover for the time since the last tick and adds
// the increment, then hands the tick to the opponent.
func tickClock(clock ChessClock, moverColor string, now time.Time) ChessClock {
	next := clock
	if last, err := time.Parse(time.RFC3339Nano, clock.LastTickAt); err == nil {
		elapsed := now.Sub(last).Milliseconds()
		if elapsed < 0 {
			elapsed = 0
		}
		if moverColor == "w" {
			next.WhiteMs = maxInt64(0, clock.WhiteMs-elapsed) + clock.IncrementMs
		} else {
			next.BlackMs = maxInt64(0, clock.BlackMs-elapsed) + clock.IncrementMs
		}
	}
	next.LastTickAt = nowISO(now)
	return next
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func colorLetter(c nchess.Color) string {
	if c == nchess.White {
		return "w"
	}
	return "b"
}

func resultFromMethod(m nchess.Method) string {
	switch m {
	case nchess.Checkmate:
		return "checkmate"
	case nchess.Stalemate:
		return "stalemate"
	case nchess.InsufficientMaterial:
		return "insufficient-material"
	case nchess.ThreefoldRepetition:
		return "threefold-repetition"
	case nchess.FiftyMoveRule:
		return "fifty-move-rule"
	default:
		return "draw"
	}
}

// TimeoutResolution describes the lazy finalization of a timed-out chess
// match: the finished sub-state and the winner by flag fall.
type TimeoutResolution struct {
	Winner    string
	NextChess *ChessState
}

// chessTimeoutResolution reports whether the active side's flag has fallen.
// Returns nil when the match is not an active chess match with a running
// clock, or when time remains. Detection only; the caller performs the
// transition and settlement under the match lock.
func chessTimeoutResolution(m *Match, now time.Time) *TimeoutResolution {
	if !IsChessGameType(m.GameType) || m.Status != StatusActive {
		return nil
	}
	cs := m.State.Chess
	if cs == nil || cs.IsGameOver {
		return nil
	}
	last, err := time.Parse(time.RFC3339Nano, cs.Clock.LastTickAt)
	if err != nil {
		return nil
	}

	activeColor := "w"
	if game, gerr := reconstructGame(cs); gerr == nil {
		activeColor = colorLetter(game.Position().Turn())
	} else if cs.Turn == "b" {
		activeColor = "b"
	}

	elapsed := now.Sub(last).Milliseconds()
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := cs.Clock.WhiteMs
	if activeColor == "b" {
		remaining = cs.Clock.BlackMs
	}
	if remaining-elapsed > 0 {
		return nil
	}

	winnerColor := "b"
	if activeColor == "b" {
		winnerColor = "w"
	}
	winner := participantForColor(m, winnerColor)

	next := *cs
	next.Winner = winner
	next.Result = "timeout"
	next.IsGameOver = true
	next.TimedOutColor = activeColor
	next.Clock = cs.Clock
	if activeColor == "w" {
		next.Clock.WhiteMs = 0
	} else {
		next.Clock.BlackMs = 0
	}
	next.Clock.LastTickAt = ""
	next.UpdatedAt = nowISO(now)

	return &TimeoutResolution{Winner: winner, NextChess: &next}
}

func tempoLabel(baseMs, incrementMs int64) string {
	return fmt.Sprintf("%d+%d", baseMs/60000, incrementMs/1000)
}
