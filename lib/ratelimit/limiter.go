// Package ratelimit provides per-client token bucket limiting for the
// monitor's state-changing endpoints, so a misbehaving client cannot keep
// the pool busy with probes.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter keeps one token bucket per key.
type KeyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	limit    rate.Limit
	burst    int
	idle     time.Duration // how long to keep an unused bucket
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewKeyed creates a per-key limiter allowing perSecond events with the
// given burst. Buckets unused for longer than idle are dropped.
func NewKeyed(perSecond float64, burst int, idle time.Duration) *KeyedLimiter {
	kl := &KeyedLimiter{
		limiters: make(map[string]*entry),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idle:     idle,
		stopCh:   make(chan struct{}),
	}
	go kl.cleanupLoop()
	return kl
}

// Allow reports whether an event for key may happen now, consuming a token
// if so.
func (kl *KeyedLimiter) Allow(key string) bool {
	now := time.Now()

	kl.mu.Lock()
	e, ok := kl.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(kl.limit, kl.burst)}
		kl.limiters[key] = e
	}
	e.lastSeen = now
	kl.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

// Len returns the number of tracked keys.
func (kl *KeyedLimiter) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.limiters)
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (kl *KeyedLimiter) Close() {
	kl.stopOnce.Do(func() { close(kl.stopCh) })
}

func (kl *KeyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(kl.idle)
	defer ticker.Stop()
	for {
		select {
		case <-kl.stopCh:
			return
		case now := <-ticker.C:
			kl.prune(now)
		}
	}
}

// prune drops buckets idle for longer than the idle window.
func (kl *KeyedLimiter) prune(now time.Time) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	for key, e := range kl.limiters {
		if now.Sub(e.lastSeen) > kl.idle {
			delete(kl.limiters, key)
		}
	}
}
