// Package ratelimit provides a process-local fixed window rate limiter.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether a request identified by key may proceed.
// Every call counts one request, including calls that return false.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type window struct {
	start time.Time
	count int
}

// FixedWindow is an in-memory fixed window limiter keyed by caller.
// The window for a key starts at its first request and resets when a
// request arrives after the window has elapsed. Counters live only in this
// process; use the Redis-backed limiter when running multiple replicas.
type FixedWindow struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	size    time.Duration
	now     func() time.Time
}

// NewFixedWindow creates a limiter allowing limit requests per window.
func NewFixedWindow(limit int, size time.Duration) *FixedWindow {
	return &FixedWindow{
		windows: make(map[string]*window),
		limit:   limit,
		size:    size,
		now:     time.Now,
	}
}

// Allow counts one request for the key and reports whether it is within
// the limit. It never returns an error; the error is part of the Limiter
// interface shared with the Redis implementation.
func (f *FixedWindow) Allow(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	w, ok := f.windows[key]
	if !ok || now.Sub(w.start) >= f.size {
		f.windows[key] = &window{start: now, count: 1}
		return true, nil
	}

	w.count++
	return w.count <= f.limit, nil
}

// Len returns the number of tracked keys. Used by cleanup and tests.
func (f *FixedWindow) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.windows)
}

// Cleanup drops windows that have fully elapsed. Call periodically to
// bound memory when caller addresses churn.
func (f *FixedWindow) Cleanup() {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	for key, w := range f.windows {
		if now.Sub(w.start) >= f.size {
			delete(f.windows, key)
		}
	}
}
