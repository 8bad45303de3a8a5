package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// TokenBucket implements an in-memory token bucket rate limiter. Each key
// holds up to capacity tokens, refilled at capacity tokens per window.
type TokenBucket struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity int
	window   time.Duration
	now      func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewTokenBucket creates a token bucket allowing limit requests per window
func NewTokenBucket(limit int, window time.Duration) (*TokenBucket, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be greater than 0")
	}
	if window <= 0 {
		return nil, errors.New("window must be greater than 0")
	}

	tb := &TokenBucket{
		buckets:  make(map[string]*bucket),
		capacity: limit,
		window:   window,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go tb.cleanupLoop(2 * window)

	return tb, nil
}

// Allow implements RateLimiter
func (tb *TokenBucket) Allow(ctx context.Context, key string) (*RateLimitInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(tb.capacity), lastRefill: now}
		tb.buckets[key] = b
	}

	if elapsed := now.Sub(b.lastRefill); elapsed > 0 {
		b.tokens += float64(tb.capacity) * elapsed.Seconds() / tb.window.Seconds()
		if b.tokens > float64(tb.capacity) {
			b.tokens = float64(tb.capacity)
		}
		b.lastRefill = now
	}

	info := &RateLimitInfo{
		Limit:   tb.capacity,
		ResetAt: now.Add(tb.untilFull(b.tokens)),
	}
	if b.tokens >= 1 {
		b.tokens--
		info.Allowed = true
		info.ResetAt = now.Add(tb.untilFull(b.tokens))
	}
	info.Remaining = int(b.tokens)

	return info, nil
}

// untilFull returns how long the bucket needs to refill completely
func (tb *TokenBucket) untilFull(tokens float64) time.Duration {
	missing := float64(tb.capacity) - tokens
	return time.Duration(missing / float64(tb.capacity) * float64(tb.window))
}

func (tb *TokenBucket) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tb.cleanup(every)
		case <-tb.done:
			return
		}
	}
}

// cleanup drops buckets idle for longer than maxIdle; they would be full
func (tb *TokenBucket) cleanup(maxIdle time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	for key, b := range tb.buckets {
		if now.Sub(b.lastRefill) > maxIdle {
			delete(tb.buckets, key)
		}
	}
}

// Close stops the cleanup goroutine
func (tb *TokenBucket) Close() error {
	tb.closeOnce.Do(func() { close(tb.done) })
	return nil
}
