// Package store persists verification events: one immutable row per
// verification attempt, successful or not.
package store

import (
	"context"

	"sigil/internal/verification"
	"sigil/pkg/domain"
)

// Store is the verification event persistence contract.
type Store interface {
	// Append writes one verification event. Events are immutable.
	Append(ctx context.Context, event verification.Event) error

	// ListByDoc returns events for a document, newest first.
	ListByDoc(ctx context.Context, docID domain.DocID, limit int) ([]verification.Event, error)

	// ListByRequester returns events recorded for a requester, newest first.
	ListByRequester(ctx context.Context, requesterID string, limit int) ([]verification.Event, error)
}
