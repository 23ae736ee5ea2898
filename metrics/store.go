package metrics

import (
	"sync"
	"time"
)

// Store keeps the most recent generation records in a fixed-size ring and
// running totals for all of them.
//
// Usage:
//
//	store := NewStore(100, time.Now())
//	store.Record(rec)
//	recent := store.Recent(10)
type Store struct {
	mu sync.RWMutex

	history []GenerationRecord
	head    int
	size    int

	total         int64
	byOutcome     map[string]int64
	totalDuration time.Duration

	startTime time.Time
}

// DefaultStoreCapacity is used when NewStore is given a capacity below 1.
const DefaultStoreCapacity = 100

// NewStore creates a Store retaining up to capacity records. A capacity
// below 1 falls back to DefaultStoreCapacity.
func NewStore(capacity int, startTime time.Time) *Store {
	if capacity < 1 {
		capacity = DefaultStoreCapacity
	}
	return &Store{
		history:   make([]GenerationRecord, capacity),
		byOutcome: make(map[string]int64),
		startTime: startTime,
	}
}

// Record appends a record, overwriting the oldest when full.
func (s *Store) Record(rec GenerationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[s.head] = rec
	s.head = (s.head + 1) % len(s.history)
	if s.size < len(s.history) {
		s.size++
	}

	s.total++
	s.byOutcome[rec.Outcome]++
	s.totalDuration += rec.Duration
}

// Recent returns up to limit records, newest first. limit <= 0 returns all.
func (s *Store) Recent(limit int) []GenerationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > s.size {
		limit = s.size
	}
	out := make([]GenerationRecord, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (s.head - i + len(s.history)) % len(s.history)
		out = append(out, s.history[idx])
	}
	return out
}

// Summary returns the running totals.
func (s *Store) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{
		Total:     s.total,
		ByOutcome: make(map[string]int64, len(s.byOutcome)),
		Uptime:    time.Since(s.startTime),
	}
	for k, v := range s.byOutcome {
		sum.ByOutcome[k] = v
	}
	if s.total > 0 {
		sum.AvgDuration = s.totalDuration / time.Duration(s.total)
	}
	return sum
}
