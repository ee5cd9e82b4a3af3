package nlp

import (
	"sync"
	"time"
)

const (
	// DefaultRateLimit is the maximum number of completion calls per user
	// per minute when no explicit limit is configured.
	DefaultRateLimit = 20

	defaultRateLimitWindow = time.Minute
)

// RateLimiter enforces a per-user sliding-window limit on completion calls.
// It keeps the call timestamps inside the window for each key, so memory is
// O(limit) per active user. Safe for concurrent use.
type RateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	now      func() time.Time
	counters map[string][]time.Time
}

// NewRateLimiter allows at most limit calls per key within window.
// Non-positive values fall back to DefaultRateLimit and one minute.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	return &RateLimiter{
		limit:    limit,
		window:   window,
		now:      time.Now,
		counters: make(map[string][]time.Time),
	}
}

// SetClock overrides the time source.
func (r *RateLimiter) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Allow records a call for key and reports whether it is within quota.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	valid := r.prune(key, now)

	if len(valid) >= r.limit {
		r.counters[key] = valid
		return false
	}

	r.counters[key] = append(valid, now)
	return true
}

// Remaining returns how many calls key may still make in the current window.
func (r *RateLimiter) Remaining(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	valid := r.prune(key, r.now())
	if len(valid) == 0 {
		delete(r.counters, key)
	} else {
		r.counters[key] = valid
	}
	rem := r.limit - len(valid)
	if rem < 0 {
		return 0
	}
	return rem
}

func (r *RateLimiter) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-r.window)
	existing := r.counters[key]
	valid := existing[:0]
	for _, t := range existing {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	return valid
}
