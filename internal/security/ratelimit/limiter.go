package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// MemoryLimiter is a per-process sliding-window limiter. It is used when no
// Redis is configured, and in tests.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	maxReqs int
	window  time.Duration
	now     func() time.Time
	cleanup *time.Ticker
	done    chan struct{}
	once    sync.Once
}

type bucket struct {
	requests []time.Time
	lastSeen time.Time
}

func NewMemoryLimiter(maxRequests int, window time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{
		buckets: make(map[string]*bucket),
		maxReqs: maxRequests,
		window:  window,
		now:     time.Now,
		cleanup: time.NewTicker(5 * time.Minute),
		done:    make(chan struct{}),
	}
	go l.cleanupOldBuckets()
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	if key == "" || l.maxReqs <= 0 {
		return Decision{Allowed: true}, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{}
		l.buckets[key] = b
	}

	cutoff := now.Add(-l.window)
	kept := b.requests[:0]
	for _, t := range b.requests {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.requests = kept
	b.lastSeen = now

	if len(b.requests) >= l.maxReqs {
		return Decision{
			Allowed:    false,
			RetryAfter: b.requests[0].Add(l.window).Sub(now),
		}, nil
	}

	b.requests = append(b.requests, now)
	return Decision{Allowed: true, Remaining: l.maxReqs - len(b.requests)}, nil
}

func (l *MemoryLimiter) cleanupOldBuckets() {
	for {
		select {
		case <-l.done:
			return
		case <-l.cleanup.C:
			l.mu.Lock()
			staleThreshold := l.now().Add(-2 * l.window)
			for key, b := range l.buckets {
				if b.lastSeen.Before(staleThreshold) {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Stop ends the background cleanup.
func (l *MemoryLimiter) Stop() {
	l.once.Do(func() {
		l.cleanup.Stop()
		close(l.done)
	})
}
