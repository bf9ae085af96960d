// Package limiters implements the Redis fixed-window counters used to
// throttle code delivery.
package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimited           = errors.New("rate limited")
	ErrLimitRedisUnavailable = errors.New("limiter redis unavailable")
)

// Config defines the fixed-window budget: at most MaxRequests events per
// Window per key.
type Config struct {
	Window      time.Duration
	MaxRequests int
}

// Window is a fixed-window counter keyed by an arbitrary identifier. The
// first increment of a window sets the expiry, so windows self-clean.
type Window struct {
	redis  redis.UniversalClient
	prefix string
	config Config
}

func New(redisClient redis.UniversalClient, prefix string, cfg Config) *Window {
	if prefix == "" {
		prefix = "agwin"
	}
	return &Window{
		redis:  redisClient,
		prefix: prefix,
		config: cfg,
	}
}

// Allow consumes one slot for the key. When the budget is exhausted it
// returns ErrRateLimited together with the time until the window resets.
func (w *Window) Allow(ctx context.Context, key string) (time.Duration, error) {
	redisKey := w.prefix + ":" + key

	count, err := w.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLimitRedisUnavailable, err)
	}

	if count == 1 {
		if err := w.redis.Expire(ctx, redisKey, w.config.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrLimitRedisUnavailable, err)
		}
	}

	if count > int64(w.config.MaxRequests) {
		retryAfter, err := w.redis.PTTL(ctx, redisKey).Result()
		if err != nil || retryAfter < 0 {
			retryAfter = w.config.Window
		}
		return retryAfter, ErrRateLimited
	}

	return 0, nil
}

// Reset clears the window for a key.
func (w *Window) Reset(ctx context.Context, key string) error {
	if err := w.redis.Del(ctx, w.prefix+":"+key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLimitRedisUnavailable, err)
	}
	return nil
}
