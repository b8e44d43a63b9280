package db

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// OpenRedis connects to Redis using a connection URL
// (redis://[:password@]host:port/db) and verifies connectivity.
func OpenRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
