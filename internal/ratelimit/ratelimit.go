// Package ratelimit limits login attempts per client address.
//
// The limit is N requests per window. Memory keeps a golang.org/x/time/rate
// bucket per key that refills N tokens per window; Redis keeps a
// fixed-window counter with INCR and EXPIRE so several API processes share
// one budget.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Memory is an in-process token bucket limiter, one rate.Limiter per key.
type Memory struct {
	requests int
	window   time.Duration
	now      func() time.Time

	mu    sync.Mutex
	state map[string]*bucket
}

type bucket struct {
	limiter *rate.Limiter
	last    time.Time
}

// NewMemory creates a limiter allowing requests per window for each key.
func NewMemory(requests int, window time.Duration) *Memory {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Memory{
		requests: requests,
		window:   window,
		now:      time.Now,
		state:    make(map[string]*bucket),
	}
}

// Allow takes one token from key's bucket.
func (l *Memory) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.state[key]
	if !ok {
		l.sweep(now)
		b = &bucket{limiter: rate.NewLimiter(rate.Every(l.window/time.Duration(l.requests)), l.requests)}
		l.state[key] = b
	}
	b.last = now

	return b.limiter.AllowN(now, 1), nil
}

// sweep drops buckets idle for longer than a window; they are full again.
// Called with mu held.
func (l *Memory) sweep(now time.Time) {
	if len(l.state) < 1024 {
		return
	}
	for key, b := range l.state {
		if now.Sub(b.last) > l.window {
			delete(l.state, key)
		}
	}
}

// Redis is a fixed-window limiter shared between processes.
type Redis struct {
	client   goredis.UniversalClient
	prefix   string
	requests int
	window   time.Duration
}

// NewRedis creates a Redis-backed limiter. Keys are stored as prefix+key.
func NewRedis(client goredis.UniversalClient, prefix string, requests int, window time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, requests: requests, window: window}
}

// Allow increments key's counter for the current window.
func (l *Redis) Allow(ctx context.Context, key string) (bool, error) {
	k := l.prefix + key

	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit counter %s: %w", key, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, fmt.Errorf("rate limit expiry %s: %w", key, err)
		}
	}

	return count <= int64(l.requests), nil
}
