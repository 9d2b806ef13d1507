package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect opens the Redis client behind the lobby cache and the realtime
// event bridge. Redis is optional at runtime; callers treat a failure
// here as "run without it".
func Connect(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
