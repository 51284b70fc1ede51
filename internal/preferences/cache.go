package preferences

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultCacheTTL = 10 * time.Minute

var ErrCacheMiss = errors.New("preferences: cache miss")

// CachedStore is a read-through Redis cache in front of another Store. Redis errors
// never fail a request; the backing store stays authoritative.
type CachedStore struct {
	next   Store
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedStore(next Store, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedStore{next: next, client: client, ttl: ttl, logger: logger}
}

func (c *CachedStore) Get(ctx context.Context, userID string) (string, error) {
	key, err := userKey(userID)
	if err != nil {
		return "", err
	}

	tz, err := c.cached(ctx, key)
	if err == nil {
		return tz, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("preference cache read failed", zap.String("user_id", key), zap.Error(err))
	}

	tz, err = c.next.Get(ctx, key)
	if err != nil {
		return "", err
	}

	if err := c.client.Set(ctx, cacheKey(key), tz, c.ttl).Err(); err != nil {
		c.logger.Warn("preference cache write failed", zap.String("user_id", key), zap.Error(err))
	}
	return tz, nil
}

func (c *CachedStore) Set(ctx context.Context, userID, timezone string) error {
	key, err := userKey(userID)
	if err != nil {
		return err
	}

	if err := c.next.Set(ctx, key, timezone); err != nil {
		return err
	}

	if err := c.client.Del(ctx, cacheKey(key)).Err(); err != nil {
		c.logger.Warn("preference cache invalidation failed", zap.String("user_id", key), zap.Error(err))
	}
	return nil
}

func (c *CachedStore) cached(ctx context.Context, key string) (string, error) {
	tz, err := c.client.Get(ctx, cacheKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return tz, nil
}

func cacheKey(userID string) string {
	return "recruai:pref:tz:" + userID
}
