package ratelimit

import (
	"sync"
	"time"
)

// bucket tracks remaining tokens for one key.
type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a keyed token-bucket limiter. Buckets are created on
// first use with a full allowance.
type Limiter struct {
	mu sync.Mutex
	m  map[string]*bucket
}

func New() *Limiter { return &Limiter{m: make(map[string]*bucket)} }

// Allow consumes one token for key if available. Capacity and refill
// rate come from the caller on every call so a reconfigured source
// takes effect without resetting the bucket.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: capacity, last: now}
		l.m[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * refillPerSec
		if b.tokens > capacity {
			b.tokens = capacity
		}
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
