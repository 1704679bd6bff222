package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryWindow keeps an event log per key in process memory.
// The ceiling is exact: no rolling window ever holds more than limit events.
type MemoryWindow struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu     sync.Mutex
	events map[string][]time.Time
}

// NewMemoryWindow creates a limiter admitting limit events per window.
func NewMemoryWindow(limit int, window time.Duration) *MemoryWindow {
	return &MemoryWindow{
		limit:  limit,
		window: window,
		now:    time.Now,
		events: make(map[string][]time.Time),
	}
}

// Window returns the rolling window length.
func (m *MemoryWindow) Window() time.Duration { return m.window }

// Allow records an event for key if the window has room.
func (m *MemoryWindow) Allow(_ context.Context, key string) (Decision, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	log := prune(m.events[key], now.Add(-m.window))
	d := Decision{Limit: m.limit}
	if len(log) >= m.limit {
		m.events[key] = log
		if len(log) > 0 {
			d.RetryAfter = log[0].Add(m.window).Sub(now)
		}
		return d, nil
	}

	m.events[key] = append(log, now)
	d.Allowed = true
	d.Remaining = m.limit - len(log) - 1
	return d, nil
}

// Sweep drops keys whose events have all expired.
func (m *MemoryWindow) Sweep() {
	cutoff := m.now().Add(-m.window)

	m.mu.Lock()
	defer m.mu.Unlock()
	for key, log := range m.events {
		if log = prune(log, cutoff); len(log) == 0 {
			delete(m.events, key)
		} else {
			m.events[key] = log
		}
	}
}

// Run sweeps every interval until ctx is done.
func (m *MemoryWindow) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

func (m *MemoryWindow) keys() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// prune drops events at or before cutoff. log is sorted ascending.
func prune(log []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(log) && !log[i].After(cutoff) {
		i++
	}
	return log[i:]
}
