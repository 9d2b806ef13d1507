package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/masaplay/backend/internal/match"
)

const (
	matchEventsChannel = "match_events"
	lobbyEventsChannel = "lobby_events"
)

// Publisher delivers engine events to connected clients. With redis it
// publishes to pubsub channels so every instance's hub rebroadcasts;
// without redis it feeds the local hub directly. Either way delivery is
// best effort and never blocks the caller's state transition.
type Publisher struct {
	rdb *redis.Client
	hub *Hub
}

func NewPublisher(rdb *redis.Client, hub *Hub) *Publisher {
	return &Publisher{rdb: rdb, hub: hub}
}

func (p *Publisher) PublishMatch(ctx context.Context, ev match.Event) {
	if p.rdb != nil {
		raw, err := json.Marshal(ev)
		if err != nil {
			log.Printf("[WS] Failed to encode match event: %v", err)
			return
		}
		if err := p.rdb.Publish(ctx, matchEventsChannel, raw).Err(); err != nil {
			log.Printf("[WS] Failed to publish match event: %v", err)
		}
		return
	}
	if p.hub != nil {
		p.hub.BroadcastToMatch(ev.MatchID, ev)
	}
}

type lobbyEvent struct {
	Type    string         `json:"type"`
	Reason  string         `json:"reason"`
	MatchID string         `json:"gameId"`
	Match   *match.Summary `json:"match,omitempty"`
}

func (p *Publisher) PublishLobby(ctx context.Context, m *match.Match, reason string) {
	summary := m.Summary()
	ev := lobbyEvent{Type: match.EventLobbyUpdate, Reason: reason, MatchID: m.ID, Match: &summary}
	if p.rdb != nil {
		raw, err := json.Marshal(ev)
		if err != nil {
			log.Printf("[WS] Failed to encode lobby event: %v", err)
			return
		}
		if err := p.rdb.Publish(ctx, lobbyEventsChannel, raw).Err(); err != nil {
			log.Printf("[WS] Failed to publish lobby event: %v", err)
		}
		return
	}
	if p.hub != nil {
		p.hub.BroadcastToLobby(ev)
	}
}

// StartEventSubscriber bridges the pubsub channels to the local hub's
// rooms. Runs until the context is cancelled.
func StartEventSubscriber(ctx context.Context, rdb *redis.Client, hub *Hub) {
	if rdb == nil {
		log.Println("[WS] Redis client not set; event subscriber not started")
		return
	}

	pubsub := rdb.Subscribe(ctx, matchEventsChannel, lobbyEventsChannel)
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		log.Println("[WS] match/lobby event subscriber started")
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var payload map[string]interface{}
				if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
					log.Printf("[WS] invalid event payload: %v", err)
					continue
				}
				switch msg.Channel {
				case matchEventsChannel:
					matchID, _ := payload["gameId"].(string)
					if matchID == "" {
						log.Printf("[WS] match event without gameId, dropping")
						continue
					}
					hub.BroadcastToMatch(matchID, payload)
				case lobbyEventsChannel:
					hub.BroadcastToLobby(payload)
				}
			}
		}
	}()
}
