package document

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"sigil/internal/audit"
	"sigil/internal/ledger"
	"sigil/internal/notify"
	"sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/platform/sentinel"
	"sigil/pkg/requestcontext"
)

// Store is the persistence surface the service needs; defined here so the
// service does not import its own store implementations.
type Store interface {
	FindByID(ctx context.Context, docID domain.DocID) (Record, error)
	Revoke(ctx context.Context, docID domain.DocID, reason string, revokedAt time.Time) error
	ListRecent(ctx context.Context, limit, offset int) ([]Record, error)
}

// Service answers document reads and owns the revocation transition.
type Service struct {
	store    Store
	ledger   ledger.Client
	audit    *audit.Publisher
	notifier notify.Sink
	logger   *slog.Logger
}

func NewService(store Store, ledgerClient ledger.Client, auditPublisher *audit.Publisher, notifier notify.Sink, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		ledger:   ledgerClient,
		audit:    auditPublisher,
		notifier: notifier,
		logger:   logger,
	}
}

// Get returns the local record for a document.
func (s *Service) Get(ctx context.Context, docID domain.DocID) (Record, error) {
	record, err := s.store.FindByID(ctx, docID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Record{}, dErrors.New(dErrors.CodeNotFound, "document not found")
		}
		return Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "load document record")
	}
	return record, nil
}

// ListRecent returns recently created records for administrative listings.
func (s *Service) ListRecent(ctx context.Context, limit, offset int) ([]Record, error) {
	records, err := s.store.ListRecent(ctx, limit, offset)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list document records")
	}
	return records, nil
}

// History returns the full anchored version sequence from the ledger. The
// adapter's unavailable/not-found distinction passes through in the error
// code so callers can tell an unanchored document from an outage.
func (s *Service) History(ctx context.Context, docID domain.DocID) ([]ledger.Version, error) {
	record, err := s.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	history, err := s.ledger.History(ctx, record.DocKey)
	switch {
	case err == nil:
		return history, nil
	case ledger.IsNotFound(err):
		return nil, dErrors.New(dErrors.CodeNotFound, "no anchored versions")
	case ledger.IsUnavailable(err):
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "ledger unavailable")
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "fetch anchor history")
	}
}

// Revoke transitions a record to revoked. The transition is monotonic:
// revoking an already revoked record returns it unchanged and emits nothing.
func (s *Service) Revoke(ctx context.Context, docID domain.DocID, reason string) (Record, error) {
	record, err := s.Get(ctx, docID)
	if err != nil {
		return Record{}, err
	}
	if record.Status == StatusRevoked {
		return record, nil
	}

	now := requestcontext.Now(ctx)
	if err := s.store.Revoke(ctx, docID, reason, now); err != nil {
		return Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "revoke document")
	}

	actor, _ := requestcontext.PrincipalFrom(ctx)
	if err := s.audit.Emit(ctx, audit.Event{
		Action:      audit.ActionDocumentRevoked,
		ActorID:     actor.ID,
		Role:        actor.Role,
		TargetDocID: docID.String(),
		Details:     map[string]any{"reason": reason},
	}); err != nil {
		return Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "append audit event")
	}
	s.notifier.NotifyRevoked(ctx, docID.String(), actor.ID, reason)

	s.logger.InfoContext(ctx, "document revoked",
		"doc_id", docID,
		"actor_id", actor.ID,
		"reason", reason,
	)

	record.Status = StatusRevoked
	record.RevokedAt = now.Unix()
	record.RevocationReason = reason
	return record, nil
}
