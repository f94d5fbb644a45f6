// Package cache implements the cache-aside store behind the read endpoints.
//
// Keys follow "<role>/<id-or-params>", e.g. "student/7/grades" or
// "admin/students". Invalidation takes Redis glob patterns where '*' matches
// any run of characters, so "admin/students*" clears every student listing.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/gobwas/glob"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache stores serialized responses with a TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Invalidate deletes every key matching any of the patterns.
	Invalidate(ctx context.Context, patterns ...string) error
}

// Match reports whether key matches pattern in Redis glob syntax: '*'
// matches any run of characters including '/', '?' one character and
// [...] a class. A pattern that does not compile only matches itself.
func Match(pattern, key string) bool {
	return compile(pattern)(key)
}

// compile builds a matcher without separators, so '*' crosses '/' the way
// Redis SCAN MATCH does.
func compile(pattern string) func(string) bool {
	g, err := glob.Compile(pattern)
	if err != nil {
		return func(key string) bool { return key == pattern }
	}
	return g.Match
}

// Noop never stores anything. Used when caching is disabled.
type Noop struct{}

// Get always misses.
func (Noop) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }

// Set discards the value.
func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }

// Invalidate does nothing.
func (Noop) Invalidate(context.Context, ...string) error { return nil }
