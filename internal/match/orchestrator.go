package match

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Orchestrator executes every match action end to end: authorization,
// status guard, per-game rules, settlement and notification. It holds no
// match state itself; every action runs against the store's exclusive
// mutation primitive.
type Orchestrator struct {
	store    Store
	notifier Notifier
	lobby    LobbyCache
	stakeCap int

	now func() time.Time
}

// NewOrchestrator wires the action layer. stakeCap <= 0 falls back to the
// built-in StakeCap.
func NewOrchestrator(store Store, notifier Notifier, lobby LobbyCache, stakeCap int) *Orchestrator {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if lobby == nil {
		lobby = NopLobbyCache{}
	}
	if stakeCap <= 0 {
		stakeCap = StakeCap
	}
	return &Orchestrator{
		store:    store,
		notifier: notifier,
		lobby:    lobby,
		stakeCap: stakeCap,
		now:      time.Now,
	}
}

// Store exposes the backing store (session building, health reporting).
func (o *Orchestrator) Store() Store { return o.store }

// CreateInput is the host's request to open a waiting match.
type CreateInput struct {
	GameType  string      `json:"gameType"`
	Stake     int         `json:"points"`
	TableCode string      `json:"tableCode"`
	Clock     *ClockInput `json:"clock,omitempty"`
}

// Create opens a new waiting match hosted by the session user.
func (o *Orchestrator) Create(ctx context.Context, sess Session, in CreateInput) (*Match, *Error) {
	host := strings.TrimSpace(sess.Username)
	if host == "" {
		return nil, errAuthorization("Oturum bulunamadı.")
	}
	if !sess.Admin && !sess.HasCheckIn() {
		return nil, errAuthorization("Oyun açmak için masa girişi gerekli.")
	}

	gameType := NormalizeGameType(in.GameType)
	if gameType == "" {
		return nil, errValidation("unsupported_game_type", "Desteklenmeyen oyun türü.")
	}

	stake := in.Stake
	if IsNonCompetitiveGameType(gameType) {
		stake = 0
	}
	if stake < 0 {
		return nil, errValidation("invalid_stake", "Puan negatif olamaz.")
	}
	if stake > o.stakeCap {
		return nil, errValidation("stake_cap", fmt.Sprintf("Puan üst sınırı %d.", o.stakeCap))
	}
	if stake > 0 && !sess.Admin && sess.Points < stake {
		return nil, errConflict("insufficient_points", "Bu bahis için puanın yetersiz.")
	}

	table := strings.ToUpper(strings.TrimSpace(in.TableCode))
	if table == "" {
		table = strings.ToUpper(strings.TrimSpace(sess.TableCode))
	}

	now := o.now()
	m := &Match{
		ID:        uuid.NewString(),
		HostName:  host,
		GameType:  gameType,
		Stake:     stake,
		Table:     table,
		Status:    StatusWaiting,
		CreatedAt: now,
	}
	if IsChessGameType(gameType) {
		m.State.Chess = NewChessState(in.Clock, now)
	}

	created, err := o.store.CreateWaiting(ctx, m)
	if err != nil {
		return nil, err
	}

	o.lobby.Invalidate(ctx, created)
	o.notifier.PublishLobby(ctx, created, "created")
	log.Printf("[MATCH] Created %s type=%q stake=%d host=%s table=%s", created.ID, gameType, stake, host, table)
	return created, nil
}

// Join seats the session user as guest and activates the match. Joining a
// match the user already participates in returns the current state
// unchanged once the match is active.
func (o *Orchestrator) Join(ctx context.Context, sess Session, id string) (*Match, *Error) {
	actor := strings.TrimSpace(sess.Username)
	if actor == "" {
		return nil, errAuthorization("Oturum bulunamadı.")
	}

	started := false
	updated, err := o.store.Mutate(ctx, id, func(tx Tx) *Error {
		m := tx.Match()

		if strings.EqualFold(actor, m.HostName) {
			return errConflict("own_game", "Kendi açtığın oyuna katılamazsın.")
		}
		// re-join by the seated guest is a no-op
		if m.Status == StatusActive && strings.EqualFold(actor, m.GuestName) {
			return nil
		}
		if f := AssertTransition(m.Status, StatusActive, "join"); f != nil {
			return errTransition(f)
		}
		if !sess.Admin && !sess.HasCheckIn() {
			return errAuthorization("Katılmak için masa girişi gerekli.")
		}

		busy, berr := tx.HasOtherActiveMatch(actor)
		if berr != nil {
			return errInfra("Aktif oyun kontrolü başarısız.", berr)
		}
		if busy {
			return errConflict("participant_busy", "Önce mevcut oyunu tamamla veya lobiye dön.")
		}

		if m.Stake > 0 && !sess.Admin && !IsNonCompetitiveGameType(m.GameType) {
			for _, name := range []string{m.HostName, actor} {
				points, ok, perr := tx.UserPoints(name)
				if perr != nil {
					return errInfra("Puan bakiyesi okunamadı.", perr)
				}
				if ok && points < m.Stake {
					return errConflict("insufficient_points", "Bu bahis için puan yetersiz.")
				}
			}
		}

		now := o.now()
		m.GuestName = actor
		m.Status = StatusActive
		if IsChessGameType(m.GameType) {
			m.State.Chess = ActivateChessClock(m.State.Chess, now)
		}
		started = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if started {
		o.notifier.PublishMatch(ctx, Event{Type: EventGameStarted, MatchID: updated.ID, Payload: updated})
		o.lobby.Invalidate(ctx, updated)
		o.notifier.PublishLobby(ctx, updated, "joined")
		log.Printf("[MATCH] %s joined by %s (host=%s)", updated.ID, actor, updated.HostName)
	}
	return updated, nil
}

// GetState returns the match, first finalizing it if an active chess
// clock has run out. The read path is the timeout authority: no
// background sweeper exists, so an expired match finishes (with
// settlement) on its next observation.
func (o *Orchestrator) GetState(ctx context.Context, id string) (*Match, *Error) {
	m, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if chessTimeoutResolution(m, o.now()) == nil {
		return m, nil
	}

	finished := false
	updated, err := o.store.Mutate(ctx, id, func(tx Tx) *Error {
		locked := tx.Match()
		now := o.now()
		// re-check under the lock: another request may have finished it
		res := chessTimeoutResolution(locked, now)
		if res == nil {
			return nil
		}
		if mErr := o.finishLocked(tx, locked, res.Winner, res.Winner == "", now); mErr != nil {
			return mErr
		}
		locked.State.Chess = res.NextChess
		finished = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if finished {
		log.Printf("[MATCH] %s finished by timeout, winner=%s", updated.ID, updated.Winner)
		o.notifyFinished(ctx, updated)
	}
	return updated, nil
}

// SubmitResult records one participant's score report. Once both sides
// have reported, the resolver's verdict is stored on the match, but the
// status stays active: finishing is a separate explicit action.
func (o *Orchestrator) SubmitResult(ctx context.Context, sess Session, id string, sub ScoreSubmission) (*Match, *Error) {
	resolved := false
	updated, err := o.store.Mutate(ctx, id, func(tx Tx) *Error {
		m := tx.Match()
		actor := m.CanonicalParticipant(sess.Username)
		if actor == "" {
			return errAuthorization("Bu oyunun katılımcısı değilsin.")
		}
		if f := AssertRequiredStatus(m.Status, StatusActive, "submit_result"); f != nil {
			return errTransition(f)
		}

		now := o.now()
		if m.State.Results == nil {
			m.State.Results = make(map[string]ScoreSubmission, 2)
		}
		m.State.Results[actor] = SanitizeScoreSubmission(sub, now)

		if bothReported(m) {
			m.State.ResolvedWinner = PickWinner(m.State.Results, m.Participants())
			resolved = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if resolved {
		log.Printf("[MATCH] %s resolver verdict winner=%q, awaiting finish", updated.ID, updated.State.ResolvedWinner)
	}
	return updated, nil
}

// bothReported is true once both canonical participants have a stored
// submission. PickWinner returning "" can mean either "not enough
// reports" or a perfect tie; this disambiguates.
func bothReported(m *Match) bool {
	participants := m.Participants()
	if len(participants) < 2 {
		return false
	}
	for _, p := range participants {
		if _, ok := m.State.Results[p]; !ok {
			return false
		}
	}
	return true
}

// resolvedOutcome reports the terminal outcome already determined on an
// active match: the stored resolver verdict, a concluded chess game, or
// both score reports present.
func resolvedOutcome(m *Match) (winner string, isDraw, ok bool) {
	if w := m.State.ResolvedWinner; w != "" {
		return w, false, true
	}
	if cs := m.State.Chess; cs != nil && cs.IsGameOver {
		return cs.Winner, cs.Winner == "", true
	}
	if bothReported(m) {
		w := PickWinner(m.State.Results, m.Participants())
		return w, w == "", true
	}
	return "", false, false
}

// SubmitChessMove applies one move for the session user. A fallen flag
// discovered here finalizes the match by timeout instead of applying the
// move.
func (o *Orchestrator) SubmitChessMove(ctx context.Context, sess Session, id string, in ChessMoveInput) (*Match, *Error) {
	finished := false
	moved := false
	updated, err := o.store.Mutate(ctx, id, func(tx Tx) *Error {
		m := tx.Match()
		actor := m.CanonicalParticipant(sess.Username)
		if actor == "" {
			return errAuthorization("Bu oyunun katılımcısı değilsin.")
		}
		if !IsChessGameType(m.GameType) {
			return errValidation("not_chess", "Bu oyun türünde hamle yapılamaz.")
		}

		now := o.now()
		if res := chessTimeoutResolution(m, now); res != nil {
			if mErr := o.finishLocked(tx, m, res.Winner, res.Winner == "", now); mErr != nil {
				return mErr
			}
			m.State.Chess = res.NextChess
			finished = true
			return nil
		}

		if f := AssertRequiredStatus(m.Status, StatusActive, "chess_move"); f != nil {
			return errTransition(f)
		}
		cs := m.State.Chess
		if cs == nil {
			return errConflict("no_chess_state", "Satranç durumu bulunamadı.")
		}

		next, mErr := applyChessMove(m, cs, ParticipantColor(m, actor), in, now)
		if mErr != nil {
			return mErr
		}
		m.State.Chess = next
		moved = true

		if next.IsGameOver {
			if mErr := o.finishLocked(tx, m, next.Winner, next.Winner == "", now); mErr != nil {
				return mErr
			}
			finished = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if moved {
		o.notifier.PublishMatch(ctx, Event{Type: EventChessMove, MatchID: updated.ID, Payload: updated.State.Chess})
	}
	if finished {
		log.Printf("[MATCH] %s chess game over, winner=%q result=%s", updated.ID, updated.Winner, chessResult(updated))
		o.notifyFinished(ctx, updated)
	}
	return updated, nil
}

func chessResult(m *Match) string {
	if m.State.Chess == nil {
		return ""
	}
	return m.State.Chess.Result
}

// DrawAction drives the chess draw sub-protocol. Two crossed offers count
// as agreement: an offer arriving while the opponent's offer is pending
// accepts it.
func (o *Orchestrator) DrawAction(ctx context.Context, sess Session, id, action string) (*Match, *Error) {
	act := NormalizeDrawAction(action)
	if act == "" {
		return nil, errValidation("invalid_draw_action", "Geçersiz beraberlik işlemi.")
	}

	finished := false
	updated, err := o.store.Mutate(ctx, id, func(tx Tx) *Error {
		m := tx.Match()
		actor := m.CanonicalParticipant(sess.Username)
		if actor == "" {
			return errAuthorization("Bu oyunun katılımcısı değilsin.")
		}
		if !IsChessGameType(m.GameType) {
			return errValidation("not_chess", "Beraberlik teklifi sadece satrançta geçerli.")
		}
		if f := AssertRequiredStatus(m.Status, StatusActive, "draw_"+act); f != nil {
			return errTransition(f)
		}
		cs := m.State.Chess
		if cs == nil {
			return errConflict("no_chess_state", "Satranç durumu bulunamadı.")
		}

		now := o.now()
		pending := pendingDrawOffer(cs)

		accept := func() *Error {
			pending.Status = "accepted"
			pending.RespondedBy = actor
			pending.RespondedAt = nowISO(now)
			cs.IsGameOver = true
			cs.Result = "draw-agreed"
			cs.Clock.LastTickAt = ""
			cs.UpdatedAt = nowISO(now)
			if mErr := o.finishLocked(tx, m, "", true, now); mErr != nil {
				return mErr
			}
			finished = true
			return nil
		}

		switch act {
		case DrawActionOffer:
			if pending != nil {
				if strings.EqualFold(pending.OfferedBy, actor) {
					return errConflict("offer_pending", "Zaten bekleyen bir teklifin var.")
				}
				// crossed offers: both sides want a draw
				return accept()
			}
			cs.DrawOffer = &DrawOffer{Status: "pending", OfferedBy: actor, CreatedAt: nowISO(now)}
			cs.UpdatedAt = nowISO(now)

		case DrawActionCancel:
			if pending == nil || !strings.EqualFold(pending.OfferedBy, actor) {
				return errConflict("no_own_offer", "İptal edilecek teklifin yok.")
			}
			pending.Status = "cancelled"
			pending.RespondedAt = nowISO(now)
			cs.UpdatedAt = nowISO(now)

		case DrawActionReject:
			if pending == nil || strings.EqualFold(pending.OfferedBy, actor) {
				return errConflict("no_offer", "Reddedilecek teklif yok.")
			}
			pending.Status = "rejected"
			pending.RespondedBy = actor
			pending.RespondedAt = nowISO(now)
			cs.UpdatedAt = nowISO(now)

		case DrawActionAccept:
			if pending == nil || strings.EqualFold(pending.OfferedBy, actor) {
				return errConflict("no_offer", "Kabul edilecek teklif yok.")
			}
			return accept()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.notifier.PublishMatch(ctx, Event{Type: EventDrawOffer, MatchID: updated.ID, Payload: updated.State.Chess})
	if finished {
		log.Printf("[MATCH] %s drawn by agreement", updated.ID)
		o.notifyFinished(ctx, updated)
	}
	return updated, nil
}

// Resign ends an active match in the opponent's favor.
func (o *Orchestrator) Resign(ctx context.Context, sess Session, id string) (*Match, *Error) {
	updated, err := o.store.Mutate(ctx, id, func(tx Tx) *Error {
		m := tx.Match()
		actor := m.CanonicalParticipant(sess.Username)
		if actor == "" {
			return errAuthorization("Bu oyunun katılımcısı değilsin.")
		}
		if f := AssertRequiredStatus(m.Status, StatusActive, "resign"); f != nil {
			return errTransition(f)
		}

		now := o.now()
		winner := m.Opponent(actor)
		m.State.ResignedBy = actor
		m.State.ResignedAt = nowISO(now)
		if cs := m.State.Chess; cs != nil {
			cs.IsGameOver = true
			cs.Winner = winner
			cs.Result = "resignation"
			cs.Clock.LastTickAt = ""
			cs.UpdatedAt = nowISO(now)
		}
		return o.finishLocked(tx, m, winner, winner == "", now)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[MATCH] %s resigned by %s, winner=%s", updated.ID, updated.State.ResignedBy, updated.Winner)
	o.notifyFinished(ctx, updated)
	return updated, nil
}

// FinishInput names the reported winner. An empty winner declares a draw.
type FinishInput struct {
	Winner string `json:"winner"`
}

// Finish performs the explicit terminal transition. The outcome must
// already be determined on the match (resolver verdict, concluded chess
// game) unless an admin arbitrates by naming the winner directly.
// Re-finishing an already finished match with a matching outcome is
// idempotent and additionally repairs a missed settlement.
func (o *Orchestrator) Finish(ctx context.Context, sess Session, id string, in FinishInput) (*Match, *Error) {
	finished := false
	updated, err := o.store.Mutate(ctx, id, func(tx Tx) *Error {
		m := tx.Match()
		actor := m.CanonicalParticipant(sess.Username)
		if actor == "" && !sess.Admin {
			return errAuthorization("Bu oyunun katılımcısı değilsin.")
		}

		requested := strings.TrimSpace(in.Winner)
		if requested != "" {
			canonical := m.CanonicalParticipant(requested)
			if canonical == "" {
				return errValidation("winner_not_participant", "Kazanan oyunun katılımcısı olmalı.")
			}
			requested = canonical
		}
		now := o.now()

		if m.Status == StatusFinished {
			if requested != "" && !strings.EqualFold(m.Winner, requested) {
				return errConflict("outcome_mismatch", "Oyun farklı bir sonuçla zaten bitmiş.")
			}
			if m.State.SettlementApplied {
				return nil // full idempotent replay
			}
			// crash between status write and settlement: repair now
			if _, sErr := applySettlement(tx, m, m.Winner, m.Winner == "", now); sErr != nil {
				return sErr
			}
			log.Printf("[MATCH] %s settlement repaired on re-finish", m.ID)
			finished = true
			return nil
		}

		if f := AssertTransition(m.Status, StatusFinished, "finish"); f != nil {
			return errTransition(f)
		}

		winner, isDraw, resolved := resolvedOutcome(m)
		switch {
		case sess.Admin && requested != "":
			// admin arbitration overrides the derived outcome
			winner, isDraw = requested, false
		case !resolved:
			return errConflict("server_result_pending", "Sonuç henüz belirlenmedi, önce skorlar gönderilmeli.")
		case requested != "" && !strings.EqualFold(requested, winner):
			return errConflict("outcome_mismatch", "Bildirilen kazanan sunucu sonucuyla uyuşmuyor.")
		}

		if mErr := o.finishLocked(tx, m, winner, isDraw, now); mErr != nil {
			return mErr
		}
		if cs := m.State.Chess; cs != nil && !cs.IsGameOver {
			cs.IsGameOver = true
			cs.Winner = winner
			if winner == "" {
				cs.Result = "draw"
			} else {
				cs.Result = "reported"
			}
			cs.Clock.LastTickAt = ""
			cs.UpdatedAt = nowISO(now)
		}
		finished = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if finished {
		log.Printf("[MATCH] %s finished by report, winner=%q", updated.ID, updated.Winner)
		o.notifyFinished(ctx, updated)
	}
	return updated, nil
}

// finishLocked performs the guarded active->finished transition plus
// settlement, under the caller's match lock. The status write and the
// point transfer commit together or not at all.
func (o *Orchestrator) finishLocked(tx Tx, m *Match, winner string, isDraw bool, now time.Time) *Error {
	if f := AssertTransition(m.Status, StatusFinished, "finish"); f != nil {
		return errTransition(f)
	}
	m.Status = StatusFinished
	m.Winner = winner
	m.State.ResolvedWinner = winner
	if _, err := applySettlement(tx, m, winner, isDraw, now); err != nil {
		return err
	}
	return nil
}

// Delete removes a match. Participants may delete their own; admins any.
func (o *Orchestrator) Delete(ctx context.Context, sess Session, id string) (*Match, *Error) {
	deleted, err := o.store.Delete(ctx, id, sess.Username, sess.Admin)
	if err != nil {
		return nil, err
	}
	o.notifier.PublishMatch(ctx, Event{Type: EventGameDeleted, MatchID: deleted.ID})
	o.lobby.Invalidate(ctx, deleted)
	o.notifier.PublishLobby(ctx, deleted, "deleted")
	log.Printf("[MATCH] %s deleted by %s", deleted.ID, strings.TrimSpace(sess.Username))
	return deleted, nil
}

// ListWaiting serves the lobby listing through the cache.
func (o *Orchestrator) ListWaiting(ctx context.Context, f WaitingFilter) ([]Summary, *Error) {
	key := LobbyCacheKey(f)
	if cached, ok := o.lobby.Get(ctx, key); ok {
		return cached, nil
	}
	list, err := o.store.ListWaiting(ctx, f)
	if err != nil {
		return nil, err
	}
	o.lobby.Set(ctx, key, list)
	return list, nil
}

// LobbyCacheKey maps a listing scope onto its cache key.
func LobbyCacheKey(f WaitingFilter) string {
	switch {
	case f.TableCode != "":
		return "lobby:table:" + strings.ToLower(strings.TrimSpace(f.TableCode))
	case f.CafeID > 0:
		return fmt.Sprintf("lobby:cafe:%d", f.CafeID)
	default:
		return "lobby:all"
	}
}

// History returns the session user's finished matches as view rows.
func (o *Orchestrator) History(ctx context.Context, sess Session, limit int) ([]HistoryEntry, *Error) {
	matches, err := o.store.History(ctx, sess.Username, limit)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, 0, len(matches))
	for i := range matches {
		out = append(out, matches[i].HistoryRow(sess.Username))
	}
	return out, nil
}

// ActiveFor returns the user's current active match, if any.
func (o *Orchestrator) ActiveFor(ctx context.Context, username string) (*Match, *Error) {
	return o.store.FindActiveByParticipant(ctx, username)
}

func (o *Orchestrator) notifyFinished(ctx context.Context, m *Match) {
	o.notifier.PublishMatch(ctx, Event{Type: EventGameFinished, MatchID: m.ID, Payload: m})
	o.lobby.Invalidate(ctx, m)
	o.notifier.PublishLobby(ctx, m, "finished")
}
