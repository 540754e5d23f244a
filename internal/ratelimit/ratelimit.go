// Package ratelimit provides a fixed-window request limiter keyed by
// client IP, used to throttle anonymous contact form submissions.
package ratelimit

import (
	"sync"
	"time"
)

// sweepThreshold is the bucket count past which expired windows are
// pruned when a new key arrives.
const sweepThreshold = 1024

// LimitError reports a rejected request and when the window resets.
type LimitError struct {
	Key        string
	Limit      int
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return "rate limit exceeded for " + e.Key
}

type bucket struct {
	count       int
	windowStart time.Time
}

// Limiter counts requests per key in fixed windows.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string]*bucket
	now     func() time.Time
}

// New creates a limiter allowing limit requests per window for each
// key. Non-positive arguments fall back to 5 per minute.
func New(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow records a request for key. A nil return means the request is
// within the limit; otherwise a *LimitError carries the retry delay.
func (l *Limiter) Allow(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok || now.Sub(b.windowStart) >= l.window {
		l.maybeSweep(now)
		l.buckets[key] = &bucket{count: 1, windowStart: now}
		return nil
	}
	if b.count >= l.limit {
		return &LimitError{
			Key:        key,
			Limit:      l.limit,
			RetryAfter: b.windowStart.Add(l.window).Sub(now),
		}
	}
	b.count++
	return nil
}

// maybeSweep prunes expired windows once the table grows past the
// threshold. Called with the lock held.
func (l *Limiter) maybeSweep(now time.Time) {
	if len(l.buckets) < sweepThreshold {
		return
	}
	for key, b := range l.buckets {
		if now.Sub(b.windowStart) >= l.window {
			delete(l.buckets, key)
		}
	}
}
