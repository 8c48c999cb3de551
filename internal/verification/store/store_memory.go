package store

import (
	"context"
	"sync"

	"sigil/internal/verification"
	"sigil/pkg/domain"
)

// MemoryStore keeps verification events in an append-only slice.
type MemoryStore struct {
	mu     sync.RWMutex
	events []verification.Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, event verification.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryStore) ListByDoc(_ context.Context, docID domain.DocID, limit int) ([]verification.Event, error) {
	return s.filter(func(e verification.Event) bool { return e.DocID == docID }, limit), nil
}

func (s *MemoryStore) ListByRequester(_ context.Context, requesterID string, limit int) ([]verification.Event, error) {
	return s.filter(func(e verification.Event) bool { return e.RequesterID == requesterID }, limit), nil
}

// filter walks newest-first, matching the postgres ORDER BY timestamp DESC.
func (s *MemoryStore) filter(match func(verification.Event) bool, limit int) []verification.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	var out []verification.Event
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		if match(s.events[i]) {
			out = append(out, s.events[i])
		}
	}
	return out
}

// All returns every stored event in append order; test helper.
func (s *MemoryStore) All() []verification.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]verification.Event, len(s.events))
	copy(out, s.events)
	return out
}

var _ Store = (*MemoryStore)(nil)
