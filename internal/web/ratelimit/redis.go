package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindow keeps one sorted-set member per admitted request, scored
// by its arrival in milliseconds. It returns whether the request was
// admitted, the number of requests in the window and the oldest score.
var slidingWindow = redis.NewScript(`
	local nowMs = tonumber(ARGV[1])
	local windowMs = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])

	redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', nowMs - windowMs)

	local count = redis.call('ZCARD', KEYS[1])
	local admitted = 0
	if count < limit then
		redis.call('ZADD', KEYS[1], nowMs, ARGV[4])
		redis.call('PEXPIRE', KEYS[1], windowMs)
		count = count + 1
		admitted = 1
	end

	local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
	local oldestMs = nowMs
	if #oldest == 2 then
		oldestMs = tonumber(oldest[2])
	end
	return {admitted, count, oldestMs}
`)

// RedisRateLimiter is a sliding window limiter whose state lives in Redis,
// so every server sharing the Redis shares the budget
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
	seq    atomic.Int64
}

// RedisRateLimiterConfig configures NewRedisRateLimiter
type RedisRateLimiterConfig struct {
	Client *redis.Client
	Limit  int
	Window time.Duration
	// Prefix is prepended to every key
	Prefix string
}

// NewRedisRateLimiter creates a Redis rate limiter. It takes ownership of
// the client.
func NewRedisRateLimiter(cfg RedisRateLimiterConfig) (*RedisRateLimiter, error) {
	switch {
	case cfg.Client == nil:
		return nil, errors.New("redis client is required")
	case cfg.Limit <= 0:
		return nil, errors.New("limit must be greater than 0")
	case cfg.Window < time.Millisecond:
		return nil, errors.New("window must be at least 1ms")
	}

	return &RedisRateLimiter{
		client: cfg.Client,
		limit:  cfg.Limit,
		window: cfg.Window,
		prefix: cfg.Prefix,
	}, nil
}

// Allow implements RateLimiter. ResetAt is when the oldest request in the
// window expires and frees a slot.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (*RateLimitInfo, error) {
	nowMs := time.Now().UnixMilli()
	member := strconv.FormatInt(nowMs, 10) + "-" + strconv.FormatInt(r.seq.Add(1), 10)

	res, err := slidingWindow.Run(ctx, r.client, []string{r.prefix + key},
		nowMs, r.window.Milliseconds(), r.limit, member).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("rate limit %s: unexpected script result %v", key, res)
	}

	return &RateLimitInfo{
		Limit:     r.limit,
		Remaining: max(r.limit-int(res[1]), 0),
		ResetAt:   time.UnixMilli(res[2]).Add(r.window),
		Allowed:   res[0] == 1,
	}, nil
}

// Reset forgets every request recorded for key
func (r *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

// Close closes the Redis client
func (r *RedisRateLimiter) Close() error {
	return r.client.Close()
}
