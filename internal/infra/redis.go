// README: Redis client for the quote cache; pings once so a dead cache shows up at startup.
package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Short timeouts keep a degraded cache from stalling quotes; callers fall back to uncached reads.
const (
	redisDialTimeout = 2 * time.Second
	redisIOTimeout   = 500 * time.Millisecond
)

// NewRedis always returns a usable client. A failed ping is reported as an error so the caller
// can decide whether running without the cache is acceptable.
func NewRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  redisDialTimeout,
		ReadTimeout:  redisIOTimeout,
		WriteTimeout: redisIOTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return client, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}
