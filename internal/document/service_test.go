package document_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigil/internal/audit"
	auditstore "sigil/internal/audit/store"
	"sigil/internal/document"
	docstore "sigil/internal/document/store"
	"sigil/internal/hashing"
	"sigil/internal/ledger"
	"sigil/internal/notify"
	"sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/platform/sentinel"
	"sigil/pkg/requestcontext"
	"sigil/pkg/testutil"
)

func newServiceFixture(t *testing.T) (*document.Service, *docstore.MemoryStore, *ledger.MemoryClient, *auditstore.MemoryStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := docstore.NewMemoryStore()
	ledgerClient := ledger.NewMemoryClient()
	trail := auditstore.NewMemoryStore()
	publisher := audit.NewPublisher(trail, nil, logger)
	svc := document.NewService(store, ledgerClient, publisher, notify.NewLogSink(logger), logger)
	return svc, store, ledgerClient, trail
}

func seedRecord(t *testing.T, store *docstore.MemoryStore) document.Record {
	t.Helper()
	record := document.Record{
		DocID:         domain.DocID("doc-100"),
		DocKey:        hashing.DocKey("doc-100"),
		IssuerID:      "issuer-1",
		Title:         "Diploma",
		Meta:          document.Meta{Kind: document.KindCertificate},
		ContentDigest: hashing.Digest([]byte("artifact")),
		IssuedAt:      1700000000,
		Status:        document.StatusActive,
	}
	require.NoError(t, store.Create(context.Background(), record))
	return record
}

func TestGet(t *testing.T) {
	svc, store, _, _ := newServiceFixture(t)
	record := seedRecord(t, store)

	t.Run("returns the record", func(t *testing.T) {
		got, err := svc.Get(context.Background(), record.DocID)
		require.NoError(t, err)
		assert.Equal(t, record.DocID, got.DocID)
		assert.Equal(t, record.ContentDigest, got.ContentDigest)
	})

	t.Run("unknown id maps to a not-found code", func(t *testing.T) {
		_, err := svc.Get(context.Background(), domain.DocID("missing"))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("returns anchored versions in append order", func(t *testing.T) {
		svc, store, ledgerClient, _ := newServiceFixture(t)
		record := seedRecord(t, store)
		_, err := ledgerClient.Anchor(ctx, record.DocKey, record.ContentDigest, "initial issuance")
		require.NoError(t, err)
		_, err = ledgerClient.Anchor(ctx, record.DocKey, hashing.Digest([]byte("revision")), "correction")
		require.NoError(t, err)

		history, err := svc.History(ctx, record.DocID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "initial issuance", history[0].Reason)
		assert.Equal(t, "correction", history[1].Reason)
	})

	t.Run("unanchored document maps to not-found", func(t *testing.T) {
		svc, store, _, _ := newServiceFixture(t)
		record := seedRecord(t, store)
		_, err := svc.History(ctx, record.DocID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("ledger outage maps to unavailable, not not-found", func(t *testing.T) {
		svc, store, ledgerClient, _ := newServiceFixture(t)
		record := seedRecord(t, store)
		ledgerClient.FailWith = sentinel.ErrUnavailable

		_, err := svc.History(ctx, record.DocID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
		assert.False(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestRevoke(t *testing.T) {
	ctx := testutil.ContextWithPrincipal("admin-1", requestcontext.RoleAdmin)

	t.Run("transitions an active record and emits the trail", func(t *testing.T) {
		svc, store, _, trail := newServiceFixture(t)
		record := seedRecord(t, store)

		revoked, err := svc.Revoke(ctx, record.DocID, "issued in error")
		require.NoError(t, err)
		assert.Equal(t, document.StatusRevoked, revoked.Status)
		assert.Equal(t, "issued in error", revoked.RevocationReason)
		assert.NotZero(t, revoked.RevokedAt)

		stored, err := store.FindByID(ctx, record.DocID)
		require.NoError(t, err)
		assert.Equal(t, document.StatusRevoked, stored.Status)

		entries := trail.All()
		require.Len(t, entries, 1)
		assert.Equal(t, audit.ActionDocumentRevoked, entries[0].Action)
		assert.Equal(t, "admin-1", entries[0].ActorID)
	})

	t.Run("revoking twice is a no-op that emits nothing", func(t *testing.T) {
		svc, store, _, trail := newServiceFixture(t)
		record := seedRecord(t, store)

		_, err := svc.Revoke(ctx, record.DocID, "issued in error")
		require.NoError(t, err)
		again, err := svc.Revoke(ctx, record.DocID, "second attempt")
		require.NoError(t, err)

		assert.Equal(t, document.StatusRevoked, again.Status)
		assert.Equal(t, "issued in error", again.RevocationReason)
		assert.Len(t, trail.All(), 1)
	})

	t.Run("unknown id maps to not-found", func(t *testing.T) {
		svc, _, _, _ := newServiceFixture(t)
		_, err := svc.Revoke(ctx, domain.DocID("missing"), "reason")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
