package match

import (
	"testing"
	"time"
)

var chessT0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newChessMatch() *Match {
	m := &Match{
		ID:       "m-1",
		HostName: "ayse",
		GameType: ChessGameType,
		Stake:    100,
		Status:   StatusActive,
	}
	m.GuestName = "mehmet"
	m.State.Chess = ActivateChessClock(NewChessState(nil, chessT0), chessT0)
	m.CreatedAt = chessT0
	return m
}

func mustMove(t *testing.T, m *Match, color, from, to string, at time.Time) {
	t.Helper()
	next, err := applyChessMove(m, m.State.Chess, color, ChessMoveInput{From: from, To: to}, at)
	if err != nil {
		t.Fatalf("move %s%s (%s) rejected: %v", from, to, color, err)
	}
	m.State.Chess = next
}

func TestClockConfigDefaultsAndClamping(t *testing.T) {
	def := normalizeClockConfig(nil)
	if def.BaseMs != 180000 || def.IncrementMs != 2000 {
		t.Errorf("default clock = %d+%d ms, want 180000+2000", def.BaseMs, def.IncrementMs)
	}
	if def.Label != "3+2 Blitz" {
		t.Errorf("default label = %q", def.Label)
	}

	clamped := normalizeClockConfig(&ClockInput{BaseSeconds: 10000, IncrementSeconds: -5})
	if clamped.BaseMs != 1800*1000 {
		t.Errorf("base not clamped to 1800s: %d", clamped.BaseMs)
	}
	if clamped.IncrementMs != 0 {
		t.Errorf("increment not clamped to 0: %d", clamped.IncrementMs)
	}
	if clamped.WhiteMs != clamped.BaseMs || clamped.BlackMs != clamped.BaseMs {
		t.Errorf("both sides should start with the base time")
	}
}

func TestHostPlaysWhiteGuestPlaysBlack(t *testing.T) {
	m := newChessMatch()
	if c := ParticipantColor(m, "ayse"); c != "w" {
		t.Errorf("host color = %q, want w", c)
	}
	if c := ParticipantColor(m, "MEHMET"); c != "b" {
		t.Errorf("guest color = %q, want b", c)
	}
	if c := ParticipantColor(m, "intruder"); c != "" {
		t.Errorf("non-participant color = %q, want empty", c)
	}
}

func TestApplyChessMoveEnforcesTurn(t *testing.T) {
	m := newChessMatch()
	_, err := applyChessMove(m, m.State.Chess, "b", ChessMoveInput{From: "e7", To: "e5"}, chessT0)
	if err == nil {
		t.Fatal("black moved first")
	}
	if err.Code != "not_your_turn" {
		t.Errorf("code = %q, want not_your_turn", err.Code)
	}
}

func TestApplyChessMoveRejectsIllegalMove(t *testing.T) {
	m := newChessMatch()
	if _, err := applyChessMove(m, m.State.Chess, "w", ChessMoveInput{From: "e2", To: "e5"}, chessT0); err == nil {
		t.Fatal("pawn tripled forward")
	}
	if _, err := applyChessMove(m, m.State.Chess, "w", ChessMoveInput{From: "z9", To: "e4"}, chessT0); err == nil {
		t.Fatal("garbage square accepted")
	}
}

func TestApplyChessMoveRecordsHistoryAndTurn(t *testing.T) {
	m := newChessMatch()
	mustMove(t, m, "w", "e2", "e4", chessT0.Add(2*time.Second))

	cs := m.State.Chess
	if cs.Turn != "b" {
		t.Errorf("turn after white move = %q, want b", cs.Turn)
	}
	if len(cs.MoveHistory) != 1 {
		t.Fatalf("history length = %d, want 1", len(cs.MoveHistory))
	}
	rec := cs.MoveHistory[0]
	if rec.UCI != "e2e4" || rec.SAN != "e4" || rec.Color != "w" {
		t.Errorf("record = %+v", rec)
	}
	if cs.IsGameOver {
		t.Error("game over after one move")
	}
}

func TestClockChargesMoverAndAddsIncrement(t *testing.T) {
	m := newChessMatch()
	mustMove(t, m, "w", "e2", "e4", chessT0.Add(10*time.Second))

	clock := m.State.Chess.Clock
	// 180000 - 10000 elapsed + 2000 increment
	if clock.WhiteMs != 172000 {
		t.Errorf("white clock = %d, want 172000", clock.WhiteMs)
	}
	if clock.BlackMs != 180000 {
		t.Errorf("black clock = %d, want untouched 180000", clock.BlackMs)
	}
}

func TestFoolsMateFinishesGame(t *testing.T) {
	m := newChessMatch()
	at := chessT0
	moves := []struct{ color, from, to string }{
		{"w", "f2", "f3"},
		{"b", "e7", "e5"},
		{"w", "g2", "g4"},
		{"b", "d8", "h4"},
	}
	for _, mv := range moves {
		at = at.Add(time.Second)
		mustMove(t, m, mv.color, mv.from, mv.to, at)
	}

	cs := m.State.Chess
	if !cs.IsGameOver {
		t.Fatal("checkmate not detected")
	}
	if cs.Winner != "mehmet" {
		t.Errorf("winner = %q, want mehmet (black)", cs.Winner)
	}
	if cs.Result != "checkmate" {
		t.Errorf("result = %q, want checkmate", cs.Result)
	}
	if cs.Clock.LastTickAt != "" {
		t.Error("clock still running after game over")
	}
}

func TestTimeoutResolutionDetectsFlagFall(t *testing.T) {
	m := newChessMatch()

	// plenty of time left: no resolution
	if res := chessTimeoutResolution(m, chessT0.Add(time.Minute)); res != nil {
		t.Fatalf("premature timeout: %+v", res)
	}

	// white (to move) never moves and the base time runs out
	res := chessTimeoutResolution(m, chessT0.Add(4*time.Minute))
	if res == nil {
		t.Fatal("flag fall not detected")
	}
	if res.Winner != "mehmet" {
		t.Errorf("timeout winner = %q, want mehmet", res.Winner)
	}
	if res.NextChess.Result != "timeout" || res.NextChess.TimedOutColor != "w" {
		t.Errorf("resolution = result %q timedOut %q", res.NextChess.Result, res.NextChess.TimedOutColor)
	}
	if res.NextChess.Clock.WhiteMs != 0 {
		t.Errorf("timed out side clock = %d, want 0", res.NextChess.Clock.WhiteMs)
	}
}

func TestTimeoutResolutionIgnoresSettledAndNonChess(t *testing.T) {
	m := newChessMatch()
	m.State.Chess.IsGameOver = true
	if res := chessTimeoutResolution(m, chessT0.Add(time.Hour)); res != nil {
		t.Error("finished sub-state resolved again")
	}

	social := &Match{HostName: "a", GuestName: "b", GameType: "UNO Sosyal", Status: StatusActive}
	if res := chessTimeoutResolution(social, chessT0.Add(time.Hour)); res != nil {
		t.Error("non-chess match resolved by timeout")
	}
}

func TestDrawOfferLifecycle(t *testing.T) {
	cs := NewChessState(nil, chessT0)
	if pendingDrawOffer(cs) != nil {
		t.Error("fresh state has a pending offer")
	}
	cs.DrawOffer = &DrawOffer{Status: "pending", OfferedBy: "ayse", CreatedAt: nowISO(chessT0)}
	if pendingDrawOffer(cs) == nil {
		t.Error("pending offer not visible")
	}
	cs.DrawOffer.Status = "rejected"
	if pendingDrawOffer(cs) != nil {
		t.Error("rejected offer still pending")
	}
}
