// Package ratelimit holds the limiter contract shared by the HTTP layer and
// the Redis-backed implementation.
package ratelimit

import (
	"context"
	"time"
)

// Config holds rate limiting configuration.
type Config struct {
	// RequestsPerWindow is the maximum number of requests allowed in the window.
	RequestsPerWindow int
	// WindowSize is the duration of the sliding window.
	WindowSize time.Duration
}

// Result represents the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	// RetryAfter is only set when the request was denied.
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
	Limit() int
}

// DefaultAuthConfig limits credential endpoints to 20 requests per minute.
func DefaultAuthConfig() Config {
	return Config{
		RequestsPerWindow: 20,
		WindowSize:        time.Minute,
	}
}

// Valid reports whether the configuration can be enforced.
func (c Config) Valid() bool {
	return c.RequestsPerWindow > 0 && c.WindowSize > 0
}
