// Package ledger is the RPC client to the external append-only anchor
// service: the single source of truth for which digest was anchored, when, by
// whom, and whether the ledger marks it revoked.
//
// The adapter deliberately distinguishes "no anchor exists" (sentinel
// ErrNotFound, evidence of forgery) from "the ledger could not be reached"
// (sentinel ErrUnavailable, evidence of nothing). It never retries; callers
// own that decision.
package ledger

import (
	"context"
	"errors"

	"sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
)

// Version is one entry in a document's append-only anchor sequence.
// "Latest" is the highest index; entries are immutable once written.
type Version struct {
	Digest    domain.Digest  `json:"digest"`
	Author    domain.Address `json:"author"`
	Timestamp int64          `json:"timestamp"`
	Reason    string         `json:"reason"`
	Revoked   bool           `json:"revoked"`
}

// Receipt references a successful anchor write.
type Receipt struct {
	TxRef       string `json:"tx_ref"`
	BlockRef    int64  `json:"block_ref"`
	Chain       string `json:"chain"`
	ExplorerURL string `json:"explorer_url,omitempty"`
}

// IssuerStatus is the registry's view of an issuing identity.
type IssuerStatus struct {
	Active bool   `json:"active"`
	Name   string `json:"name"`
}

// Client is the narrow RPC contract to the anchor service and its issuer
// registry. Admin operations are privileged and out of the verification hot
// path.
type Client interface {
	// Anchor appends a new version under docKey. Every call that reaches
	// the ledger appends; at-most-one anchor per issuance is the issuance
	// pipeline's contract, not the ledger's.
	Anchor(ctx context.Context, docKey domain.DocKey, digest domain.Digest, reason string) (Receipt, error)

	// Latest returns the highest-index version and its index, or
	// sentinel.ErrNotFound when no anchor exists for docKey.
	Latest(ctx context.Context, docKey domain.DocKey) (Version, int, error)

	// Count returns the number of anchored versions for docKey.
	Count(ctx context.Context, docKey domain.DocKey) (int, error)

	// Get returns the version at a specific index.
	Get(ctx context.Context, docKey domain.DocKey, index int) (Version, error)

	// History returns all versions in append order.
	History(ctx context.Context, docKey domain.DocKey) ([]Version, error)

	// IsIssuerActive reports registry membership for a signer identity.
	IsIssuerActive(ctx context.Context, identity domain.Address) (IssuerStatus, error)

	// AddIssuer and RemoveIssuer administer the registry.
	AddIssuer(ctx context.Context, identity domain.Address, name string) (Receipt, error)
	RemoveIssuer(ctx context.Context, identity domain.Address) (Receipt, error)
}

// IsUnavailable reports whether an adapter error means the ledger could not
// be evaluated, as opposed to a definitive negative answer.
func IsUnavailable(err error) bool {
	return errors.Is(err, sentinel.ErrUnavailable)
}

// IsNotFound reports a definitive "no anchor exists" answer.
func IsNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}
