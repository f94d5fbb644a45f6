package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// scanBatch is the COUNT hint for SCAN during invalidation.
const scanBatch = 100

// Redis is a Cache backed by Redis string keys under a common prefix.
type Redis struct {
	client goredis.UniversalClient
	prefix string
}

// NewRedis creates a Redis cache. prefix namespaces every key, e.g. "schoolhub:cache:".
func NewRedis(client goredis.UniversalClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// Get returns the cached value for key or ErrMiss.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("reading cache key %s: %w", key, err)
	}
	return val, nil
}

// Set stores value under key for ttl.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("writing cache key %s: %w", key, err)
	}
	return nil
}

// Invalidate deletes exact keys directly and SCANs for glob patterns.
func (r *Redis) Invalidate(ctx context.Context, patterns ...string) error {
	var exact []string
	for _, p := range patterns {
		if !strings.Contains(p, "*") {
			exact = append(exact, r.prefix+p)
			continue
		}

		iter := r.client.Scan(ctx, 0, r.prefix+p, scanBatch).Iterator()
		var matched []string
		for iter.Next(ctx) {
			matched = append(matched, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("scanning cache pattern %s: %w", p, err)
		}
		if len(matched) > 0 {
			if err := r.client.Del(ctx, matched...).Err(); err != nil {
				return fmt.Errorf("deleting cache pattern %s: %w", p, err)
			}
		}
	}

	if len(exact) > 0 {
		if err := r.client.Del(ctx, exact...).Err(); err != nil {
			return fmt.Errorf("deleting cache keys: %w", err)
		}
	}
	return nil
}
