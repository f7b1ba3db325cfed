package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shipstream/api/pkg/logger"
)

// fixedWindowScript increments the per-key counter and stamps the window TTL
// on first use, atomically. Returns the count after increment and the
// remaining window in milliseconds.
var fixedWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local window_ms = tonumber(ARGV[1])

	local count = redis.call('INCR', key)
	if count == 1 then
		redis.call('PEXPIRE', key, window_ms)
	end

	local ttl = redis.call('PTTL', key)
	if ttl < 0 then
		redis.call('PEXPIRE', key, window_ms)
		ttl = window_ms
	end

	return {count, ttl}
`)

// FixedWindowLimiter implements fixed-window rate limiting backed by Redis.
// All instances sharing the same Redis see the same counters, so the limit
// holds across horizontally scaled replicas.
//
// The window starts at the first request for a key and every request within
// it counts, including rejected ones.
type FixedWindowLimiter struct {
	client    *Client
	keyPrefix string
	limit     int
	window    time.Duration
	logger    *logger.Logger
}

// NewFixedWindowLimiter creates a new Redis-backed fixed window limiter.
func NewFixedWindowLimiter(client *Client, prefix string, limit int, window time.Duration, log *logger.Logger) (*FixedWindowLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if prefix == "" {
		return nil, errors.New("key prefix is required")
	}
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	if window <= 0 {
		return nil, errors.New("window must be positive")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}

	return &FixedWindowLimiter{
		client:    client,
		keyPrefix: prefix,
		limit:     limit,
		window:    window,
		logger:    log,
	}, nil
}

// MustNewFixedWindowLimiter creates a limiter or panics on error.
// Use only in initialization code where failure is unrecoverable.
func MustNewFixedWindowLimiter(client *Client, prefix string, limit int, window time.Duration, log *logger.Logger) *FixedWindowLimiter {
	rl, err := NewFixedWindowLimiter(client, prefix, limit, window, log)
	if err != nil {
		panic(fmt.Sprintf("failed to create rate limiter: %v", err))
	}
	return rl
}

func (rl *FixedWindowLimiter) buildKey(key string) string {
	return fmt.Sprintf("%s:%s", rl.keyPrefix, key)
}

// Allow counts one request for the key and reports whether it is within
// the limit.
func (rl *FixedWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("key is required")
	}

	start := time.Now()
	fullKey := rl.buildKey(key)

	result, err := fixedWindowScript.Run(ctx, rl.client.client, []string{fullKey},
		rl.window.Milliseconds()).Slice()
	if err != nil {
		DefaultMetrics.ObserveOperation("ratelimit_allow", time.Since(start), err)
		return false, fmt.Errorf("rate limit check: %w", err)
	}

	count := result[0].(int64)
	allowed := count <= int64(rl.limit)

	DefaultMetrics.RecordRateLimitResult(rl.keyPrefix, allowed)
	DefaultMetrics.ObserveOperation("ratelimit_allow", time.Since(start), nil)

	if !allowed {
		rl.logger.Debug("rate limit exceeded",
			"key", key,
			"count", count,
			"limit", rl.limit,
		)
	}

	return allowed, nil
}

// Reset removes the rate limit counter for a key.
func (rl *FixedWindowLimiter) Reset(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("key is required")
	}

	if err := rl.client.client.Del(ctx, rl.buildKey(key)).Err(); err != nil {
		return fmt.Errorf("rate limit reset: %w", err)
	}
	return nil
}

// Limit returns the configured maximum requests per window.
func (rl *FixedWindowLimiter) Limit() int {
	return rl.limit
}

// Window returns the configured window duration.
func (rl *FixedWindowLimiter) Window() time.Duration {
	return rl.window
}
