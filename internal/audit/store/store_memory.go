package store

import (
	"context"
	"sync"

	"sigil/internal/audit"
)

// MemoryStore keeps audit events in an append-only slice.
type MemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryStore) ListByActor(_ context.Context, actorID string, limit, offset int) ([]audit.Event, error) {
	return s.filter(func(e audit.Event) bool { return e.ActorID == actorID }, limit, offset), nil
}

func (s *MemoryStore) ListByDoc(_ context.Context, docID string, limit, offset int) ([]audit.Event, error) {
	return s.filter(func(e audit.Event) bool { return e.TargetDocID == docID }, limit, offset), nil
}

func (s *MemoryStore) ListRecent(_ context.Context, limit, offset int) ([]audit.Event, error) {
	return s.filter(func(audit.Event) bool { return true }, limit, offset), nil
}

// filter walks newest-first, matching the postgres ORDER BY timestamp DESC.
func (s *MemoryStore) filter(match func(audit.Event) bool, limit, offset int) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	var out []audit.Event
	skipped := 0
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		if !match(s.events[i]) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, s.events[i])
	}
	return out
}

// All returns every stored event in append order; test helper.
func (s *MemoryStore) All() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Event, len(s.events))
	copy(out, s.events)
	return out
}

var _ Store = (*MemoryStore)(nil)
