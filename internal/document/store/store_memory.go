package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"sigil/internal/document"
	"sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
)

// MemoryStore keeps records in a map. It intentionally favors clarity over
// performance; tests and local development use it in place of PostgreSQL.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[domain.DocID]document.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[domain.DocID]document.Record)}
}

func (s *MemoryStore) Create(_ context.Context, record document.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.DocID]; exists {
		return sentinel.ErrConflict
	}
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now
	s.records[record.DocID] = record
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, docID domain.DocID) (document.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[docID]
	if !ok {
		return document.Record{}, ErrNotFound
	}
	return record, nil
}

func (s *MemoryStore) AttachSignature(_ context.Context, docID domain.DocID, sig []byte, identity domain.Address) error {
	return s.update(docID, func(r *document.Record) {
		r.Signature = append([]byte(nil), sig...)
		r.IssuerAddress = identity
	})
}

func (s *MemoryStore) AttachAnchor(_ context.Context, docID domain.DocID, anchor document.AnchorRef) error {
	return s.update(docID, func(r *document.Record) {
		r.Anchor = &anchor
	})
}

func (s *MemoryStore) Reissue(_ context.Context, docID domain.DocID, digest domain.Digest, contentRef, reason string, issuedAt int64) error {
	return s.update(docID, func(r *document.Record) {
		r.ContentDigest = digest
		r.ContentRef = contentRef
		r.Reason = reason
		r.IssuedAt = issuedAt
		r.Signature = nil
		r.IssuerAddress = ""
		r.Anchor = nil
	})
}

func (s *MemoryStore) Revoke(_ context.Context, docID domain.DocID, reason string, revokedAt time.Time) error {
	return s.update(docID, func(r *document.Record) {
		if r.Status == document.StatusRevoked {
			return
		}
		r.Status = document.StatusRevoked
		r.RevokedAt = revokedAt.Unix()
		r.RevocationReason = reason
	})
}

func (s *MemoryStore) ListRecent(_ context.Context, limit, offset int) ([]document.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]document.Record, 0, len(s.records))
	for _, r := range s.records {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *MemoryStore) update(docID domain.DocID, mutate func(*document.Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[docID]
	if !ok {
		return ErrNotFound
	}
	mutate(&record)
	record.UpdatedAt = time.Now()
	s.records[docID] = record
	return nil
}

var _ Store = (*MemoryStore)(nil)
