// Package store persists document records. Implementations are
// interface-driven so the issuance pipeline and verification engine can run
// against in-memory fakes in tests and PostgreSQL in production.
package store

import (
	"context"
	"time"

	"sigil/internal/document"
	"sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
)

// ErrNotFound keeps store-level 404s consistent across implementations.
var ErrNotFound = sentinel.ErrNotFound

// Store is the document record persistence contract.
type Store interface {
	// Create inserts a new record; sentinel.ErrConflict when the DocID
	// already exists.
	Create(ctx context.Context, record document.Record) error

	// FindByID returns the record or ErrNotFound.
	FindByID(ctx context.Context, docID domain.DocID) (document.Record, error)

	// AttachSignature sets the signature and claimed issuer identity.
	AttachSignature(ctx context.Context, docID domain.DocID, sig []byte, identity domain.Address) error

	// AttachAnchor sets the ledger reference once anchoring succeeds.
	AttachAnchor(ctx context.Context, docID domain.DocID, anchor document.AnchorRef) error

	// Reissue replaces digest, content ref, and issuance metadata for a
	// deliberate re-issuance; the ledger gains a new version, the local
	// record tracks the latest content. The anchor ref is cleared until
	// the new anchor attaches.
	Reissue(ctx context.Context, docID domain.DocID, digest domain.Digest, contentRef, reason string, issuedAt int64) error

	// Revoke marks the record revoked. Monotonic: revoking a revoked
	// record is a no-op at the store level.
	Revoke(ctx context.Context, docID domain.DocID, reason string, revokedAt time.Time) error

	// ListRecent returns up to limit records ordered by creation time
	// descending, for administrative listings.
	ListRecent(ctx context.Context, limit, offset int) ([]document.Record, error)
}
