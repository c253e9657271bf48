package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const callbackKeyPrefix = "acb:"

// Config holds rate limiter tuning parameters.
type Config struct {
	MaxCallbackFailures int
	CallbackCooldown    time.Duration
}

// Limiter counts failed OAuth callbacks per client using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckCallback reports ErrRateLimited once the client has used up its
// failure budget in the current window. It never increments.
func (l *Limiter) CheckCallback(ctx context.Context, client string) error {
	if client == "" {
		return nil
	}
	return l.checkCounter(ctx, callbackKey(client), l.config.MaxCallbackFailures)
}

// RecordCallbackFailure counts one failed callback for the client.
// Returns ErrRateLimited when the failure pushes the client over budget.
func (l *Limiter) RecordCallbackFailure(ctx context.Context, client string) error {
	if client == "" {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, callbackKey(client), l.config.CallbackCooldown)
	if err != nil {
		return err
	}
	if count >= int64(l.config.MaxCallbackFailures) {
		return ErrRateLimited
	}
	return nil
}

// ResetCallback clears the failure counter after a successful callback.
func (l *Limiter) ResetCallback(ctx context.Context, client string) error {
	if client == "" {
		return nil
	}
	if err := l.redis.Del(ctx, callbackKey(client)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// CallbackFailures returns the current failure counter for a client.
func (l *Limiter) CallbackFailures(ctx context.Context, client string) (int, error) {
	count, err := l.redis.Get(ctx, callbackKey(client)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func callbackKey(client string) string {
	return callbackKeyPrefix + client
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(maxAttempts) {
		return ErrRateLimited
	}

	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: TTL is set on the first hit only.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
