// Package ratelimit bounds login and refresh attempts per client. Counters
// are in-process hints that shed abusive traffic; they are never a source of
// truth for session liveness.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyRequests is returned when the caller exceeded its window.
var ErrTooManyRequests = errors.New("too many requests")

// Limiter checks whether a request should be allowed for the given key
// (typically the masked client origin, or origin+email for login).
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// InProcessLimiter is a fixed-window rate limiter tracking request counts
// per key in memory.
type InProcessLimiter struct {
	perMinute int
	mu        sync.Mutex
	counters  map[string]*counter
}

type counter struct {
	count    int
	windowAt time.Time
}

// NewInProcessLimiter creates a limiter allowing perMinute requests per key
// per minute. perMinute <= 0 disables the limit.
func NewInProcessLimiter(perMinute int) *InProcessLimiter {
	return &InProcessLimiter{
		perMinute: perMinute,
		counters:  make(map[string]*counter),
	}
}

// Allow checks if the request is within the rate limit.
func (l *InProcessLimiter) Allow(_ context.Context, key string) error {
	if l.perMinute <= 0 {
		return nil // no limit
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	c, ok := l.counters[key]
	if !ok || now.Sub(c.windowAt) >= time.Minute {
		// New window. Stale windows for other keys are also swept here so
		// the map does not grow without bound.
		if len(l.counters) > 10000 {
			for k, v := range l.counters {
				if now.Sub(v.windowAt) >= time.Minute {
					delete(l.counters, k)
				}
			}
		}
		l.counters[key] = &counter{count: 1, windowAt: now}
		return nil
	}

	c.count++
	if c.count > l.perMinute {
		return ErrTooManyRequests
	}

	return nil
}
