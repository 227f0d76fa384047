// Package outbox tracks delivery of dispatched packages. Each entry is a
// forward-only state machine; status changes append to an audit-grade
// attempts log and nothing is ever rewritten in place.
package outbox

import (
	"context"
	"sort"
	"sync"

	"github.com/sealpost/core/pkg/contracts"
)

// Store persists outbox entries. pkg/store provides SQLite and Postgres
// implementations.
type Store interface {
	Put(ctx context.Context, e *contracts.OutboxEntry) error
	Get(ctx context.Context, entryID string) (*contracts.OutboxEntry, error)
	List(ctx context.Context) ([]*contracts.OutboxEntry, error)
	Delete(ctx context.Context, entryID string) error
}

// MemoryStore is an in-process Store for tests and ephemeral runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*contracts.OutboxEntry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*contracts.OutboxEntry)}
}

func (s *MemoryStore) Put(_ context.Context, e *contracts.OutboxEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *e
	clone.Attempts = append([]contracts.DeliveryAttempt(nil), e.Attempts...)
	s.entries[e.EntryID] = &clone
	return nil
}

func (s *MemoryStore) Get(_ context.Context, entryID string) (*contracts.OutboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[entryID]
	if !ok {
		return nil, nil
	}
	clone := *e
	clone.Attempts = append([]contracts.DeliveryAttempt(nil), e.Attempts...)
	return &clone, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*contracts.OutboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*contracts.OutboxEntry, 0, len(s.entries))
	for _, e := range s.entries {
		clone := *e
		clone.Attempts = append([]contracts.DeliveryAttempt(nil), e.Attempts...)
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, entryID)
	return nil
}
