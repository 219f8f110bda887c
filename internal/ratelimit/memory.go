package ratelimit

import (
	"context"
	"sync"
	"time"
)

const memoryShards = 32

// MemoryLimiter keeps one ordered slice of admission times per actor in
// process memory. State is lost on restart.
type MemoryLimiter struct {
	maxRequests int
	period      time.Duration
	shards      [memoryShards]memoryShard
}

type memoryShard struct {
	mu      sync.Mutex
	windows map[int64][]time.Time
}

// NewMemoryLimiter creates an in-process limiter.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	cfg = cfg.withDefaults()
	m := &MemoryLimiter{
		maxRequests: cfg.MaxRequests,
		period:      cfg.TimePeriod,
	}
	for i := range m.shards {
		m.shards[i].windows = make(map[int64][]time.Time)
	}
	return m
}

func (m *MemoryLimiter) shard(actorID int64) *memoryShard {
	idx := actorID % memoryShards
	if idx < 0 {
		idx = -idx
	}
	return &m.shards[idx]
}

// prune drops admissions older than now - period. Callers hold the shard lock.
func (m *MemoryLimiter) prune(window []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-m.period)
	drop := 0
	for drop < len(window) && window[drop].Before(cutoff) {
		drop++
	}
	if drop == 0 {
		return window
	}
	return append(window[:0], window[drop:]...)
}

// CheckLimit implements Limiter.
func (m *MemoryLimiter) CheckLimit(_ context.Context, actorID int64, now time.Time) bool {
	s := m.shard(actorID)
	s.mu.Lock()
	defer s.mu.Unlock()

	window, ok := s.windows[actorID]
	if !ok {
		return m.maxRequests > 0
	}
	window = m.prune(window, now)
	s.windows[actorID] = window
	return len(window) < m.maxRequests
}

// RecordRequest implements Limiter.
func (m *MemoryLimiter) RecordRequest(_ context.Context, actorID int64, now time.Time) {
	s := m.shard(actorID)
	s.mu.Lock()
	defer s.mu.Unlock()

	window := m.prune(s.windows[actorID], now)
	s.windows[actorID] = append(window, now)
}

// Sweep forgets actors with no admissions inside the window and returns how
// many were removed.
func (m *MemoryLimiter) Sweep(now time.Time) int {
	removed := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		for actorID, window := range s.windows {
			window = m.prune(window, now)
			if len(window) == 0 {
				delete(s.windows, actorID)
				removed++
				continue
			}
			s.windows[actorID] = window
		}
		s.mu.Unlock()
	}
	return removed
}

// Actors returns the number of actors currently tracked.
func (m *MemoryLimiter) Actors() int {
	total := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		total += len(s.windows)
		s.mu.Unlock()
	}
	return total
}
