package match

import "context"

// Event is a realtime broadcast scoped to one match's room.
type Event struct {
	Type    string      `json:"type"`
	MatchID string      `json:"gameId"`
	Payload interface{} `json:"payload,omitempty"`
}

// Lifecycle event types pushed to match rooms and the lobby feed.
const (
	EventGameStarted  = "game_started"
	EventGameFinished = "game_finished"
	EventGameDeleted  = "game_deleted"
	EventChessMove    = "chess_move"
	EventDrawOffer    = "draw_offer"
	EventLobbyUpdate  = "lobby_update"
)

// Notifier delivers realtime events. Delivery is fire-and-forget: the
// orchestrator treats every publish as best effort and never lets a
// notification failure affect a committed state change.
type Notifier interface {
	PublishMatch(ctx context.Context, ev Event)
	PublishLobby(ctx context.Context, m *Match, reason string)
}

// LobbyCache fronts the waiting-match listing. Readers tolerate a cold
// or broken cache by falling through to the store.
type LobbyCache interface {
	Get(ctx context.Context, key string) ([]Summary, bool)
	Set(ctx context.Context, key string, matches []Summary)
	Invalidate(ctx context.Context, m *Match)
}

// NopNotifier drops every event. Used when redis is not configured.
type NopNotifier struct{}

func (NopNotifier) PublishMatch(ctx context.Context, ev Event) {}

func (NopNotifier) PublishLobby(ctx context.Context, m *Match, reason string) {}

// NopLobbyCache misses every read. Listing then always hits the store.
type NopLobbyCache struct{}

func (NopLobbyCache) Get(ctx context.Context, key string) ([]Summary, bool) { return nil, false }

func (NopLobbyCache) Set(ctx context.Context, key string, matches []Summary) {}

func (NopLobbyCache) Invalidate(ctx context.Context, m *Match) {}
