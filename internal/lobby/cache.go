package lobby

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/masaplay/backend/internal/match"
)

// Cache is the redis read-through cache in front of the waiting-match
// listing. Every operation is best effort: a cold or broken redis turns
// reads into misses and writes into no-ops, never into request failures.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

func (c *Cache) Get(ctx context.Context, key string) ([]match.Summary, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Printf("[LOBBY] Cache read failed for %s: %v", key, err)
		return nil, false
	}
	var list []match.Summary
	if err := json.Unmarshal(raw, &list); err != nil {
		log.Printf("[LOBBY] Cache entry for %s unreadable, dropping: %v", key, err)
		c.rdb.Del(ctx, key)
		return nil, false
	}
	return list, true
}

func (c *Cache) Set(ctx context.Context, key string, matches []match.Summary) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(matches)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		log.Printf("[LOBBY] Cache write failed for %s: %v", key, err)
	}
}

// Invalidate drops every listing the given match can appear in: the
// global feed, its table feed, and all venue-scoped feeds (the match row
// does not carry the host's cafe, so those go wholesale).
func (c *Cache) Invalidate(ctx context.Context, m *match.Match) {
	if c == nil || c.rdb == nil {
		return
	}
	keys := []string{"lobby:all"}
	if table := strings.ToLower(strings.TrimSpace(m.Table)); table != "" {
		keys = append(keys, "lobby:table:"+table)
	}
	if cafeKeys, err := c.rdb.Keys(ctx, "lobby:cafe:*").Result(); err == nil {
		keys = append(keys, cafeKeys...)
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		log.Printf("[LOBBY] Cache invalidation failed: %v", err)
	}
}
