// Package store persists audit events.
package store

import (
	"context"

	"sigil/internal/audit"
	"sigil/pkg/platform/sentinel"
)

// ErrNotFound keeps store-level 404s consistent across implementations.
var ErrNotFound = sentinel.ErrNotFound

// Store is the append-only audit persistence contract.
type Store interface {
	Append(ctx context.Context, event audit.Event) error
	ListByActor(ctx context.Context, actorID string, limit, offset int) ([]audit.Event, error)
	ListByDoc(ctx context.Context, docID string, limit, offset int) ([]audit.Event, error)
	ListRecent(ctx context.Context, limit, offset int) ([]audit.Event, error)
}
