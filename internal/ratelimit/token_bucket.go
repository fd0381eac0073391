package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// TokenBucket is an in-process per-subject limiter: each subject gets its
// own bucket of `capacity` tokens refilled over `window`. Subjects idle
// longer than two windows are evicted on the next sweep.
type TokenBucket struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	capacity  int
	limit     rate.Limit
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewTokenBucket(capacity int, window time.Duration) (*TokenBucket, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive")
	}
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive")
	}

	return &TokenBucket{
		buckets:  make(map[string]*bucket),
		capacity: capacity,
		limit:    rate.Limit(float64(capacity) / window.Seconds()),
		ttl:      2 * window,
		now:      time.Now,
	}, nil
}

func (l *TokenBucket) Allow(_ context.Context, subject string) (Decision, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "anonymous"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.buckets[subject]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.capacity)}
		l.buckets[subject] = b
	}
	b.lastSeen = now

	reservation := b.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return Decision{}, fmt.Errorf("rate limiter cannot satisfy request")
	}

	delay := reservation.DelayFrom(now)
	if delay > 0 {
		reservation.CancelAt(now)
		return Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: delay,
		}, nil
	}

	remaining := int64(b.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Remaining: remaining}, nil
}

func (l *TokenBucket) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.ttl {
		return
	}
	l.lastSweep = now
	for subject, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.ttl {
			delete(l.buckets, subject)
		}
	}
}
