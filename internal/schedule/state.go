package schedule

import (
	"context"
	"sync"
	"time"
)

// StateStore is the "what ran when" bookkeeping behind the scheduler. It is
// injected so tests can run against the in-memory implementation while
// production uses the Redis-backed one.
type StateStore interface {
	// LastRun returns the recorded last run time for a key, or the zero
	// time if the key has never run.
	LastRun(ctx context.Context, key string) (time.Time, error)
	SetLastRun(ctx context.Context, key string, t time.Time) error
}

// State keys
const (
	FullSweepKey = "fullsweep"
)

// MarketKey builds the state key for a market's daily run.
func MarketKey(marketID string) string {
	return "market:" + marketID
}

// MemoryState is an in-memory StateStore for tests and single-process runs.
type MemoryState struct {
	mu   sync.RWMutex
	runs map[string]time.Time
}

func NewMemoryState() *MemoryState {
	return &MemoryState{runs: make(map[string]time.Time)}
}

func (s *MemoryState) LastRun(_ context.Context, key string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runs[key], nil
}

func (s *MemoryState) SetLastRun(_ context.Context, key string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[key] = t
	return nil
}
