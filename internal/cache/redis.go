package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amberapp/amber-core/internal/config"
)

// TTLs for the cached values maintained here. Online keys are short-lived and
// refreshed by the notification hub's ping cycle.
const (
	matchCountTTL = time.Hour
	onlineTTL     = 45 * time.Second
)

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

// KeyForMatchCount generates the Redis key for a user's active match count.
func (c *RedisCache) KeyForMatchCount(userID uint64) string {
	return fmt.Sprintf("matches:count:%d", userID)
}

// GetMatchCount returns the cached match count, refreshing the TTL on access.
// A cache miss is reported as found=false, not an error.
func (c *RedisCache) GetMatchCount(ctx context.Context, userID uint64) (int64, bool, error) {
	key := c.KeyForMatchCount(userID)
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil // treat a corrupt value as a miss
	}
	_ = c.Client.Expire(ctx, key, matchCountTTL).Err()
	return n, true, nil
}

// UpdateMatchCount stores the match count with a fresh TTL.
func (c *RedisCache) UpdateMatchCount(ctx context.Context, userID uint64, count int64) error {
	return c.Client.Set(ctx, c.KeyForMatchCount(userID), count, matchCountTTL).Err()
}

// InvalidateMatchCount drops the cached count after a match state change.
func (c *RedisCache) InvalidateMatchCount(ctx context.Context, userID uint64) error {
	return c.Client.Del(ctx, c.KeyForMatchCount(userID)).Err()
}

// keyForOnline generates the Redis key marking a user's live session.
func keyForOnline(userID uint64) string {
	return fmt.Sprintf("online:%d", userID)
}

// SetOnline marks the user online. Called on session start and on every ping,
// so the key expires shortly after the last sign of life.
func (c *RedisCache) SetOnline(ctx context.Context, userID uint64) error {
	return c.Client.Set(ctx, keyForOnline(userID), "1", onlineTTL).Err()
}

// SetOffline removes the online marker when the last session closes.
func (c *RedisCache) SetOffline(ctx context.Context, userID uint64) error {
	return c.Client.Del(ctx, keyForOnline(userID)).Err()
}

// IsOnline reports whether the user currently has a live session.
func (c *RedisCache) IsOnline(ctx context.Context, userID uint64) (bool, error) {
	_, err := c.Client.Get(ctx, keyForOnline(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}
