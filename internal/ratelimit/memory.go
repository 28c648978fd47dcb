package ratelimit

import (
	"context"
	"sync"
	"time"
)

// memoryEntry tracks all limiter state for one key.
type memoryEntry struct {
	lastAllowed time.Time
	events      []time.Time // allowed call times, pruned to the sliding window
	fixedStart  time.Time
	fixedCount  int
	lastSeen    time.Time
}

// MemoryLimiter is a process-local Limiter. Suitable for single-instance
// deployments and tests; multi-instance deployments should use RedisLimiter
// so the limits hold across replicas.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry

	// now is a test hook; defaults to time.Now.
	now func() time.Time
}

// NewMemoryLimiter creates a MemoryLimiter and starts a background goroutine
// that evicts idle keys.
func NewMemoryLimiter() *MemoryLimiter {
	ml := &MemoryLimiter{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
	go ml.cleanup()
	return ml
}

// NewMemoryLimiterAt creates a MemoryLimiter with a custom clock and no
// cleanup goroutine. For tests.
func NewMemoryLimiterAt(now func() time.Time) *MemoryLimiter {
	return &MemoryLimiter{
		entries: make(map[string]*memoryEntry),
		now:     now,
	}
}

func (ml *MemoryLimiter) entry(key string) *memoryEntry {
	e, ok := ml.entries[key]
	if !ok {
		e = &memoryEntry{}
		ml.entries[key] = e
	}
	e.lastSeen = ml.now()
	return e
}

// cleanup periodically removes keys not seen for a while.
func (ml *MemoryLimiter) cleanup() {
	for {
		time.Sleep(10 * time.Minute)
		ml.mu.Lock()
		for key, e := range ml.entries {
			if time.Since(e.lastSeen) > 48*time.Hour {
				delete(ml.entries, key)
			}
		}
		ml.mu.Unlock()
	}
}

func (ml *MemoryLimiter) AllowMinInterval(_ context.Context, key string, interval time.Duration) (bool, error) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	now := ml.now()
	e := ml.entry(key)
	if !e.lastAllowed.IsZero() && now.Sub(e.lastAllowed) < interval {
		return false, nil
	}
	e.lastAllowed = now
	return true, nil
}

func (ml *MemoryLimiter) AllowSliding(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	now := ml.now()
	e := ml.entry(key)

	cutoff := now.Add(-window)
	kept := e.events[:0]
	for _, t := range e.events {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	e.events = kept

	if len(e.events) >= limit {
		return false, nil
	}
	e.events = append(e.events, now)
	return true, nil
}

func (ml *MemoryLimiter) AllowFixed(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	now := ml.now()
	e := ml.entry(key)

	windowStart := now.Truncate(window)
	if !e.fixedStart.Equal(windowStart) {
		e.fixedStart = windowStart
		e.fixedCount = 0
	}

	if e.fixedCount >= limit {
		return false, nil
	}
	e.fixedCount++
	return true, nil
}
