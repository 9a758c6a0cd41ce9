// Package ratelimit throttles master requests per client IP with a fixed
// window counter. It only has to stop a runaway client loop, not shape traffic.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultWindow = 10 * time.Second
	DefaultMax    = 30
)

type bucket struct {
	count       int
	windowStart time.Time
}

// Decision is the outcome of one Allow call.
type Decision struct {
	OK bool
	// RetryAfterSeconds is set when OK is false.
	RetryAfterSeconds int
}

// Limiter counts requests per key in fixed windows.
type Limiter struct {
	window time.Duration
	max    int
	clock  clockwork.Clock

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// New returns a limiter allowing max requests per window per key. Non-positive
// arguments fall back to the defaults; a nil clock uses the real clock.
func New(window time.Duration, max int, clock clockwork.Clock) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if max < 1 {
		max = DefaultMax
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Limiter{
		window:    window,
		max:       max,
		clock:     clock,
		buckets:   make(map[string]*bucket),
		lastSweep: clock.Now(),
	}
}

// Allow records one request for key.
func (l *Limiter) Allow(key string) Decision {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{windowStart: now}
		l.buckets[key] = b
	}
	if now.Sub(b.windowStart) > l.window {
		b.count = 0
		b.windowStart = now
	}
	b.count++

	if b.count > l.max {
		return Decision{OK: false, RetryAfterSeconds: l.retryAfter()}
	}
	return Decision{OK: true}
}

func (l *Limiter) retryAfter() int {
	return int(math.Ceil(float64(l.window) / float64(time.Second)))
}

// sweep drops buckets whose window closed long ago so the map stays bounded
// by the number of recently active clients.
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < 10*l.window {
		return
	}
	for k, b := range l.buckets {
		if now.Sub(b.windowStart) > l.window {
			delete(l.buckets, k)
		}
	}
	l.lastSweep = now
}
