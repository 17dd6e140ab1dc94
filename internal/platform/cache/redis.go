package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// New connects to Redis and checks that it answers and runs scripts. The shared
// rate limiter is a Lua script, so a server that refuses SCRIPT is rejected at startup.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping %s: %w", addr, err)
	}
	if err := client.ScriptExists(ctx, "0").Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: scripting unavailable: %w", err)
	}
	return client, nil
}
