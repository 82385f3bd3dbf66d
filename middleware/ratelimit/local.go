package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// sweepInterval is how often Allow looks for idle buckets.
const sweepInterval = time.Minute

type bucket struct {
	limiter  *rate.Limiter
	limit    int
	window   time.Duration
	lastUsed time.Time
}

// TokenBucket is an in-process Limiter with one token bucket per key. A
// bucket refills limit tokens per window and bursts up to limit. A bucket
// left idle for a whole window is full again, so it is dropped.
type TokenBucket struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

var _ Limiter = (*TokenBucket)(nil)

// NewTokenBucket creates an empty in-process limiter.
func NewTokenBucket() *TokenBucket {
	return &TokenBucket{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow takes one token from the bucket of key.
func (l *TokenBucket) Allow(_ context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	if limit <= 0 || window <= 0 {
		return &RateLimitResult{Allowed: true, Limit: limit}, nil
	}

	now := l.now()
	every := rate.Every(window / time.Duration(limit))

	l.mu.Lock()
	if now.Sub(l.lastSweep) >= sweepInterval {
		l.sweepLocked(now)
	}
	b, ok := l.buckets[key]
	if !ok || b.limit != limit || b.window != window {
		b = &bucket{
			limiter: rate.NewLimiter(every, limit),
			limit:   limit,
			window:  window,
		}
		l.buckets[key] = b
	}
	b.lastUsed = now
	l.mu.Unlock()

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)

	resetAt := now
	if tokens < 1 {
		wait := time.Duration((1 - tokens) / float64(every) * float64(time.Second))
		resetAt = now.Add(wait)
	}

	return &RateLimitResult{
		Allowed:   allowed,
		Remaining: int(math.Max(0, math.Floor(tokens))),
		ResetAt:   resetAt,
		Limit:     limit,
	}, nil
}

func (l *TokenBucket) sweepLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastUsed) >= b.window {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

// Reset drops the bucket of key. Call it when the key's owner goes away.
func (l *TokenBucket) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.buckets, key)
	l.mu.Unlock()
	return nil
}

// Len returns the number of live buckets.
func (l *TokenBucket) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
