// README: Quote cache in Redis; a per-homestay version counter invalidates old entries.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"tourstay/internal/types"
)

const (
	versionKeyPrefix = "pricing:homestay:%s:version"
	quoteKeyPrefix   = "pricing:quote:%s:v%d:%s:%s:%d"
	DefaultQuoteTTL  = 10 * time.Minute
)

// QuoteCache stores resolved quotes. Bump makes every cached quote of the homestay unreachable.
type QuoteCache interface {
	Version(ctx context.Context, homestayID types.ID) (int64, error)
	Get(ctx context.Context, key string) (*Quote, bool, error)
	Set(ctx context.Context, key string, q Quote) error
	Bump(ctx context.Context, homestayID types.ID) error
}

func quoteKey(homestayID types.ID, version int64, stay Stay) string {
	return fmt.Sprintf(quoteKeyPrefix, string(homestayID), version,
		types.Day(stay.CheckIn).Format(types.DayLayout), types.Day(stay.CheckOut).Format(types.DayLayout), stay.Guests)
}

type RedisCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultQuoteTTL
	}
	return &RedisCache{redis: rdb, ttl: ttl}
}

func (c *RedisCache) Version(ctx context.Context, homestayID types.ID) (int64, error) {
	val, err := c.redis.Get(ctx, fmt.Sprintf(versionKeyPrefix, string(homestayID))).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Quote, bool, error) {
	val, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var q Quote
	if err := json.Unmarshal(val, &q); err != nil {
		return nil, false, fmt.Errorf("decode cached quote: %w", err)
	}
	return &q, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, q Quote) error {
	payload, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode quote: %w", err)
	}
	return c.redis.Set(ctx, key, payload, c.ttl).Err()
}

func (c *RedisCache) Bump(ctx context.Context, homestayID types.ID) error {
	return c.redis.Incr(ctx, fmt.Sprintf(versionKeyPrefix, string(homestayID))).Err()
}

// NopCache never hits; used when Redis is not configured.
type NopCache struct{}

func (NopCache) Version(context.Context, types.ID) (int64, error)  { return 0, nil }
func (NopCache) Get(context.Context, string) (*Quote, bool, error) { return nil, false, nil }
func (NopCache) Set(context.Context, string, Quote) error          { return nil }
func (NopCache) Bump(context.Context, types.ID) error              { return nil }
