package lobby

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/masaplay/backend/internal/match"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewCache(rdb, 60*time.Second), mr
}

func sampleListing() []match.Summary {
	return []match.Summary{
		{ID: "m-1", HostName: "ayse", GameType: "Refleks Avı", Stake: 50, Table: "T1", Status: match.StatusWaiting},
	}
}

func TestCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	if _, ok := cache.Get(ctx, "lobby:all"); ok {
		t.Fatal("cold cache reported a hit")
	}

	cache.Set(ctx, "lobby:all", sampleListing())
	got, ok := cache.Get(ctx, "lobby:all")
	if !ok {
		t.Fatal("warm cache missed")
	}
	if len(got) != 1 || got[0].ID != "m-1" || got[0].HostName != "ayse" {
		t.Errorf("cached listing = %+v", got)
	}
}

func TestCacheEntriesExpire(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "lobby:all", sampleListing())
	mr.FastForward(61 * time.Second)

	if _, ok := cache.Get(ctx, "lobby:all"); ok {
		t.Error("entry survived past its TTL")
	}
}

func TestInvalidateDropsAffectedScopes(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "lobby:all", sampleListing())
	cache.Set(ctx, "lobby:table:t1", sampleListing())
	cache.Set(ctx, "lobby:table:t2", sampleListing())
	cache.Set(ctx, "lobby:cafe:7", sampleListing())

	cache.Invalidate(ctx, &match.Match{ID: "m-1", Table: "T1"})

	for _, key := range []string{"lobby:all", "lobby:table:t1", "lobby:cafe:7"} {
		if mr.Exists(key) {
			t.Errorf("%s survived invalidation", key)
		}
	}
	// the other table's listing is untouched
	if !mr.Exists("lobby:table:t2") {
		t.Error("unrelated table listing was dropped")
	}
}

func TestBrokenPayloadCountsAsMiss(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	mr.Set("lobby:all", "{not json")
	if _, ok := cache.Get(ctx, "lobby:all"); ok {
		t.Error("corrupt entry served as a hit")
	}
	if mr.Exists("lobby:all") {
		t.Error("corrupt entry not dropped")
	}
}

func TestNilClientNeverFails(t *testing.T) {
	var cache *Cache
	ctx := context.Background()
	if _, ok := cache.Get(ctx, "lobby:all"); ok {
		t.Error("nil cache reported a hit")
	}
	cache.Set(ctx, "lobby:all", sampleListing())
	cache.Invalidate(ctx, &match.Match{Table: "T1"})
}
