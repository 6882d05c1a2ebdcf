package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/apiplatform/backend/internal/infrastructure/config"
)

// RedisLimiter implements a fixed one-minute window on Redis so the count is
// shared across instances. INCR creates the key at 1; the first increment in
// a window attaches the expiry, after which the key and its count age out
// together.
type RedisLimiter struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisLimiter connects to Redis and verifies the connection.
func NewRedisLimiter(cfg config.RedisConfig) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisLimiter{
		client:    client,
		keyPrefix: "ratelimit:",
	}, nil
}

// NewRedisLimiterWithClient wraps an existing client. Useful for testing.
func NewRedisLimiterWithClient(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{
		client:    client,
		keyPrefix: "ratelimit:",
	}
}

// Allow counts the request against the current minute window.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limitPerMinute int64) (bool, error) {
	if limitPerMinute <= 0 {
		return true, nil
	}

	windowKey := fmt.Sprintf("%s%s:%d", l.keyPrefix, key, time.Now().UTC().Unix()/60)

	count, err := l.client.Incr(ctx, windowKey).Result()
	if err != nil {
		return false, fmt.Errorf("increment rate window: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, windowKey, 2*time.Minute).Err(); err != nil {
			return false, fmt.Errorf("expire rate window: %w", err)
		}
	}

	return count <= limitPerMinute, nil
}

// Close releases the underlying Redis connection.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
