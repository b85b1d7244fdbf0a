package server

import (
	"sync"
	"time"
)

// rateLimiter is a fixed-window in-memory limiter keyed by caller identity.
// Good enough for a single-instance deployment; a shared store would be
// needed to enforce limits across replicas.
type rateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	counts map[string]windowCount
}

type windowCount struct {
	windowStart time.Time
	n           int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:  limit,
		window: window,
		counts: make(map[string]windowCount),
	}
}

func (r *rateLimiter) Allow(key string) bool {
	if r == nil || r.limit <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	wc, ok := r.counts[key]
	if !ok || now.Sub(wc.windowStart) >= r.window {
		r.counts[key] = windowCount{windowStart: now, n: 1}
		r.gc(now)
		return true
	}
	if wc.n >= r.limit {
		return false
	}
	wc.n++
	r.counts[key] = wc
	return true
}

// gc drops stale windows so the map stays bounded by active callers.
func (r *rateLimiter) gc(now time.Time) {
	if len(r.counts) < 1024 {
		return
	}
	for k, wc := range r.counts {
		if now.Sub(wc.windowStart) >= r.window {
			delete(r.counts, k)
		}
	}
}
