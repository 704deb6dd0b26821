// Package ratelimit owns a per-identity-and-action sliding window. It is a
// dedicated component with scheduled eviction, never ambient global state.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type Limiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
}

func New(max int, window time.Duration) *Limiter {
	return &Limiter{
		max:    max,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow records one hit for identity+action and reports whether it stays
// within the window.
func (l *Limiter) Allow(identityID, action string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := identityID + ":" + action
	cutoff := l.now().Add(-l.window)

	live := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			live = append(live, t)
		}
	}
	if len(live) >= l.max {
		l.hits[key] = live
		return false
	}
	l.hits[key] = append(live, l.now())
	return true
}

// Run evicts fully-expired keys on a schedule until ctx is done. Without
// this, keys for identities that went quiet would accumulate forever.
func (l *Limiter) Run(ctx context.Context, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.evict()
		}
	}
}

func (l *Limiter) evict() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.window)
	for key, times := range l.hits {
		keep := false
		for _, t := range times {
			if t.After(cutoff) {
				keep = true
				break
			}
		}
		if !keep {
			delete(l.hits, key)
		}
	}
}
