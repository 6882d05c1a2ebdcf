package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is the single-instance fallback used when Redis is disabled.
// It keeps one counter per key for the current minute window and discards
// stale windows lazily on access.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	start int64
	count int64
}

// NewMemoryLimiter creates an in-process fixed-window limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow counts the request against the current minute window.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limitPerMinute int64) (bool, error) {
	if limitPerMinute <= 0 {
		return true, nil
	}

	minute := l.now().UTC().Unix() / 60

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || w.start != minute {
		l.pruneLocked(minute)
		w = &window{start: minute}
		l.windows[key] = w
	}
	w.count++

	return w.count <= limitPerMinute, nil
}

// pruneLocked drops every window from a previous minute.
func (l *MemoryLimiter) pruneLocked(minute int64) {
	for key, w := range l.windows {
		if w.start != minute {
			delete(l.windows, key)
		}
	}
}
