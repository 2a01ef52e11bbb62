package holdstore

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/ticket-inventory/internal/clock"
)

// MemoryStore is a clock-driven in-process ExpiringStore used in tests
// and single-node development setups.  Expired keys are dropped lazily
// on access rather than by a background goroutine.
type MemoryStore struct {
	mu       sync.Mutex
	clk      clock.Clock
	deadline map[string]time.Time
}

// NewMemoryStore returns an empty store reading time from clk.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{clk: clk, deadline: make(map[string]time.Time)}
}

func (s *MemoryStore) Set(_ context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrNonPositiveTTL
	}
	s.mu.Lock()
	s.deadline[key] = s.clk.Now().Add(ttl)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dl, ok := s.deadline[key]
	if !ok {
		return false, nil
	}
	if !dl.After(s.clk.Now()) {
		delete(s.deadline, key)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.deadline, key)
	s.mu.Unlock()
	return nil
}
