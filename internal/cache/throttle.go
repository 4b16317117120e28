package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/coupon-wallet/internal/config"
)

const defaultPrefix = "cw"

// Throttle rate-limits repeated actions on the same key using Redis
// SET NX with an expiry. A nil *Throttle allows everything.
type Throttle struct {
	client *redis.Client
	prefix string
}

// NewThrottle connects a Throttle to the configured Redis instance.
// It returns nil when Redis is disabled.
func NewThrottle(cfg config.RedisConfig) *Throttle {
	if !cfg.Enabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewThrottleWithClient(client, cfg.Prefix)
}

// NewThrottleWithClient creates a Throttle on an existing client.
func NewThrottleWithClient(client *redis.Client, prefix string) *Throttle {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Throttle{client: client, prefix: prefix}
}

// Allow reports whether the action identified by key may proceed. The first
// call for a key wins and blocks further calls until interval elapses.
func (t *Throttle) Allow(ctx context.Context, key string, interval time.Duration) (bool, error) {
	if t == nil || t.client == nil {
		return true, nil
	}
	ok, err := t.client.SetNX(ctx, t.buildKey(key), "1", interval).Result()
	if err != nil {
		return false, fmt.Errorf("throttle %s: %w", key, err)
	}
	return ok, nil
}

// Ping checks the Redis connection.
func (t *Throttle) Ping(ctx context.Context) error {
	if t == nil || t.client == nil {
		return nil
	}
	return t.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (t *Throttle) Close() error {
	if t == nil || t.client == nil {
		return nil
	}
	return t.client.Close()
}

func (t *Throttle) buildKey(key string) string {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return t.prefix
	}
	return t.prefix + ":" + trimmed
}
