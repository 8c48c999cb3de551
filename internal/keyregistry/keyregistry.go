// Package keyregistry resolves the expected signing identity for an issuer.
// It is the fallback trust path for records that carry a signature without a
// claimed signer address; the primary path recovers the identity from the
// signature itself.
package keyregistry

import (
	"context"
	"sync"

	"sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
)

// Registry maps internal issuer IDs to their registered signing identity.
type Registry interface {
	IdentityForIssuer(ctx context.Context, issuerID string) (domain.Address, error)
}

// MemoryRegistry is a map-backed registry for tests and single-tenant
// deployments where the issuing identity is configured statically.
type MemoryRegistry struct {
	mu         sync.RWMutex
	identities map[string]domain.Address
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{identities: make(map[string]domain.Address)}
}

func (r *MemoryRegistry) Register(issuerID string, identity domain.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities[issuerID] = identity
}

func (r *MemoryRegistry) IdentityForIssuer(_ context.Context, issuerID string) (domain.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identity, ok := r.identities[issuerID]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return identity, nil
}

var _ Registry = (*MemoryRegistry)(nil)
