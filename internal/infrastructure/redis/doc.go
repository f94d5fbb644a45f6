// Package redis wraps the go-redis client used by the response cache, the
// email job queue and the login rate limiter.
//
// Redis is optional. When it is disabled or unreachable at startup the
// process falls back to the in-memory cache, queue and limiter.
package redis
