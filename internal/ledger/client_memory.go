package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
)

// MemoryClient is an in-memory ledger for tests and local development. It
// honors append-only semantics and can simulate latency or outages.
type MemoryClient struct {
	mu       sync.RWMutex
	versions map[domain.DocKey][]Version
	issuers  map[domain.Address]string

	// Latency is added to every call to mimic a real network hop.
	Latency time.Duration
	// FailWith, when set, makes every call fail with the given error.
	// Set to sentinel.ErrUnavailable to simulate an outage.
	FailWith error
	// Author stamps anchored versions; defaults to the zero address.
	Author domain.Address

	anchorCalls int
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		versions: make(map[domain.DocKey][]Version),
		issuers:  make(map[domain.Address]string),
	}
}

func (m *MemoryClient) intercept(ctx context.Context) error {
	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, ctx.Err())
		}
	}
	if m.FailWith != nil {
		return m.FailWith
	}
	return ctx.Err()
}

func (m *MemoryClient) Anchor(ctx context.Context, docKey domain.DocKey, digest domain.Digest, reason string) (Receipt, error) {
	if err := m.intercept(ctx); err != nil {
		return Receipt{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.anchorCalls++
	m.versions[docKey] = append(m.versions[docKey], Version{
		Digest:    digest,
		Author:    m.Author,
		Timestamp: time.Now().Unix(),
		Reason:    reason,
	})
	index := len(m.versions[docKey]) - 1
	return Receipt{
		TxRef:    fmt.Sprintf("0xmem%s%d", docKey[len(docKey)-8:], index),
		BlockRef: int64(m.anchorCalls),
		Chain:    "memory",
	}, nil
}

func (m *MemoryClient) Latest(ctx context.Context, docKey domain.DocKey) (Version, int, error) {
	if err := m.intercept(ctx); err != nil {
		return Version{}, 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions := m.versions[docKey]
	if len(versions) == 0 {
		return Version{}, 0, sentinel.ErrNotFound
	}
	return versions[len(versions)-1], len(versions) - 1, nil
}

func (m *MemoryClient) Count(ctx context.Context, docKey domain.DocKey) (int, error) {
	if err := m.intercept(ctx); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.versions[docKey]), nil
}

func (m *MemoryClient) Get(ctx context.Context, docKey domain.DocKey, index int) (Version, error) {
	if err := m.intercept(ctx); err != nil {
		return Version{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions := m.versions[docKey]
	if index < 0 || index >= len(versions) {
		return Version{}, sentinel.ErrNotFound
	}
	return versions[index], nil
}

func (m *MemoryClient) History(ctx context.Context, docKey domain.DocKey) ([]Version, error) {
	if err := m.intercept(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Version, len(m.versions[docKey]))
	copy(out, m.versions[docKey])
	return out, nil
}

func (m *MemoryClient) IsIssuerActive(ctx context.Context, identity domain.Address) (IssuerStatus, error) {
	if err := m.intercept(ctx); err != nil {
		return IssuerStatus{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	name, ok := m.issuers[identity]
	return IssuerStatus{Active: ok, Name: name}, nil
}

func (m *MemoryClient) AddIssuer(ctx context.Context, identity domain.Address, name string) (Receipt, error) {
	if err := m.intercept(ctx); err != nil {
		return Receipt{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.issuers[identity] = name
	return Receipt{TxRef: "0xmem-issuer-add", Chain: "memory"}, nil
}

func (m *MemoryClient) RemoveIssuer(ctx context.Context, identity domain.Address) (Receipt, error) {
	if err := m.intercept(ctx); err != nil {
		return Receipt{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.issuers, identity)
	return Receipt{TxRef: "0xmem-issuer-remove", Chain: "memory"}, nil
}

// AnchorCalls reports how many anchor writes reached the ledger; issuance
// idempotency tests assert on it.
func (m *MemoryClient) AnchorCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.anchorCalls
}

var _ Client = (*MemoryClient)(nil)
