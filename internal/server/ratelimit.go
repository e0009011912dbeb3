package server

import (
	"sync"
	"time"
)

// Limiter is a sliding-window rate limiter: at most limit requests per
// period, counted from request timestamps.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	period time.Duration
	times  []time.Time
	now    func() time.Time
}

// NewLimiter creates a limiter allowing limit requests per period.
func NewLimiter(limit int, period time.Duration) *Limiter {
	return &Limiter{
		limit:  limit,
		period: period,
		now:    time.Now,
	}
}

// Allow reports whether one more request fits the window, recording it
// when it does.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.period)

	// Drop timestamps that fell out of the window.
	kept := l.times[:0]
	for _, t := range l.times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.times = kept

	if len(l.times) >= l.limit {
		return false
	}
	l.times = append(l.times, now)
	return true
}
