package verification_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigil/internal/audit"
	auditstore "sigil/internal/audit/store"
	"sigil/internal/contentstore"
	"sigil/internal/document"
	docstore "sigil/internal/document/store"
	"sigil/internal/hashing"
	"sigil/internal/keyregistry"
	"sigil/internal/ledger"
	"sigil/internal/notify"
	"sigil/internal/signature"
	"sigil/internal/verification"
	verifstore "sigil/internal/verification/store"
	"sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
)

const testPrivateKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

type fixture struct {
	docs       *docstore.MemoryStore
	content    *contentstore.MemoryStore
	ledger     *ledger.MemoryClient
	registry   *keyregistry.MemoryRegistry
	events     *verifstore.MemoryStore
	auditTrail *auditstore.MemoryStore
	signer     *signature.Signer

	artifact []byte
	record   document.Record
}

// newFixture seeds one fully issued, anchored, and signed document.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	signer, err := signature.NewSigner(testPrivateKey)
	require.NoError(t, err)

	f := &fixture{
		docs:       docstore.NewMemoryStore(),
		content:    contentstore.NewMemoryStore(),
		ledger:     ledger.NewMemoryClient(),
		registry:   keyregistry.NewMemoryRegistry(),
		events:     verifstore.NewMemoryStore(),
		auditTrail: auditstore.NewMemoryStore(),
		signer:     signer,
		artifact:   []byte("%PDF-1.7 certificate artifact"),
	}
	f.ledger.Author = signer.Address()

	ctx := context.Background()
	digest := hashing.Digest(f.artifact)
	docID := domain.DocID("doc-2024-001")
	docKey := hashing.DocKey(docID)
	issuedAt := time.Now().Unix()

	ref, err := f.content.Upload(ctx, f.artifact, "certificate.pdf")
	require.NoError(t, err)

	message, err := signature.BuildMessage(docKey, digest, issuedAt)
	require.NoError(t, err)
	sig, err := signer.Sign(message)
	require.NoError(t, err)

	f.record = document.Record{
		DocID:         docID,
		DocKey:        docKey,
		IssuerID:      "issuer-1",
		Title:         "BSc Computer Science",
		Meta:          document.Meta{Kind: document.KindCertificate},
		ContentRef:    ref,
		ContentDigest: digest,
		IssuedAt:      issuedAt,
		Status:        document.StatusActive,
		Signature:     sig,
		IssuerAddress: signer.Address(),
	}
	require.NoError(t, f.docs.Create(ctx, f.record))

	_, err = f.ledger.Anchor(ctx, docKey, digest, "initial issuance")
	require.NoError(t, err)

	f.registry.Register("issuer-1", signer.Address())
	return f
}

func (f *fixture) service(opts verification.Options) *verification.Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.Registry == nil {
		opts.Registry = f.registry
	}
	publisher := audit.NewPublisher(f.auditTrail, nil, logger)
	return verification.NewService(f.docs, f.content, f.ledger, f.events, publisher, notify.NewLogSink(logger), logger, opts)
}

func TestVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("authentic bytes pass with no reasons", func(t *testing.T) {
		f := newFixture(t)
		svc := f.service(verification.Options{})

		result, err := svc.Verify(ctx, verification.Request{
			DocID:       f.record.DocID,
			RequesterID: "verifier-1",
			Bytes:       f.artifact,
		})
		require.NoError(t, err)

		assert.Equal(t, verification.VerdictPass, result.Verdict)
		assert.Empty(t, result.Reasons)
		assert.True(t, result.HashMatch)
		assert.True(t, result.IssuerVerified)
		assert.Equal(t, f.record.ContentDigest, result.CheckedDigest)
		require.NotNil(t, result.Ledger)
		assert.True(t, result.Ledger.Found)
		assert.Len(t, result.Ledger.History, 1)
	})

	t.Run("unknown document fails with only CERT_NOT_FOUND", func(t *testing.T) {
		f := newFixture(t)
		// Any adapter call would surface as ADAPTER_UNAVAILABLE; the
		// exact reason set proves none happened.
		f.ledger.FailWith = sentinel.ErrUnavailable
		svc := f.service(verification.Options{})

		result, err := svc.Verify(ctx, verification.Request{
			DocID:       domain.DocID("no-such-doc"),
			RequesterID: "verifier-1",
			Bytes:       f.artifact,
		})
		require.NoError(t, err)

		assert.Equal(t, verification.VerdictFail, result.Verdict)
		assert.Equal(t, []verification.ReasonCode{verification.ReasonCertNotFound}, result.Reasons)
	})

	t.Run("tampered bytes fail with HASH_MISMATCH", func(t *testing.T) {
		f := newFixture(t)
		svc := f.service(verification.Options{})

		result, err := svc.Verify(ctx, verification.Request{
			DocID:       f.record.DocID,
			RequesterID: "verifier-1",
			Bytes:       []byte("%PDF-1.7 forged artifact"),
		})
		require.NoError(t, err)

		assert.Equal(t, verification.VerdictFail, result.Verdict)
		assert.Contains(t, result.Reasons, verification.ReasonHashMismatch)
		assert.False(t, result.HashMatch)
		// The attestation covers the digest under check, so tampering
		// breaks it too.
		assert.Contains(t, result.Reasons, verification.ReasonSigInvalid)
		assert.False(t, result.IssuerVerified)
	})

	t.Run("ledger outage fails with ADAPTER_UNAVAILABLE", func(t *testing.T) {
		f := newFixture(t)
		f.ledger.FailWith = sentinel.ErrUnavailable
		svc := f.service(verification.Options{})

		result, err := svc.Verify(ctx, verification.Request{
			DocID: f.record.DocID,
			Bytes: f.artifact,
		})
		require.NoError(t, err)

		assert.NotEqual(t, verification.VerdictPass, result.Verdict)
		assert.Contains(t, result.Reasons, verification.ReasonAdapterUnavailable)
		assert.NotContains(t, result.Reasons, verification.ReasonChainMiss)
	})

	t.Run("unanchored document fails with CHAIN_MISS", func(t *testing.T) {
		f := newFixture(t)
		svc := f.service(verification.Options{})

		unanchored := f.record
		unanchored.DocID = domain.DocID("doc-2024-002")
		unanchored.DocKey = hashing.DocKey(unanchored.DocID)
		unanchored.Signature = nil
		unanchored.IssuerAddress = ""
		require.NoError(t, f.docs.Create(ctx, unanchored))

		result, err := svc.Verify(ctx, verification.Request{
			DocID: unanchored.DocID,
			Bytes: f.artifact,
		})
		require.NoError(t, err)

		assert.Equal(t, verification.VerdictFail, result.Verdict)
		assert.Equal(t, []verification.ReasonCode{verification.ReasonChainMiss}, result.Reasons)
	})

	t.Run("revoked document dominates an otherwise clean pass", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.docs.Revoke(ctx, f.record.DocID, "issued in error", time.Now()))
		svc := f.service(verification.Options{})

		result, err := svc.Verify(ctx, verification.Request{
			DocID: f.record.DocID,
			Bytes: f.artifact,
		})
		require.NoError(t, err)

		assert.Equal(t, verification.VerdictRevoked, result.Verdict)
		assert.Equal(t, []verification.ReasonCode{verification.ReasonRevoked}, result.Reasons)
		assert.True(t, result.HashMatch)
	})

	t.Run("caller-supplied digest verifies without bytes", func(t *testing.T) {
		f := newFixture(t)
		svc := f.service(verification.Options{})

		result, err := svc.Verify(ctx, verification.Request{
			DocID:  f.record.DocID,
			Digest: f.record.ContentDigest,
		})
		require.NoError(t, err)
		assert.Equal(t, verification.VerdictPass, result.Verdict)
	})

	t.Run("stored artifact verifies when no content source is supplied", func(t *testing.T) {
		f := newFixture(t)
		svc := f.service(verification.Options{})

		result, err := svc.Verify(ctx, verification.Request{DocID: f.record.DocID})
		require.NoError(t, err)
		assert.Equal(t, verification.VerdictPass, result.Verdict)
	})

	t.Run("tampered stored artifact fails from the stored path too", func(t *testing.T) {
		f := newFixture(t)
		f.content.Put(f.record.ContentRef, []byte("overwritten in storage"))
		svc := f.service(verification.Options{})

		result, err := svc.Verify(ctx, verification.Request{DocID: f.record.DocID})
		require.NoError(t, err)
		assert.Equal(t, verification.VerdictFail, result.Verdict)
		assert.Contains(t, result.Reasons, verification.ReasonHashMismatch)
	})

	t.Run("registry resolves the identity when the record carries none", func(t *testing.T) {
		f := newFixture(t)

		record := f.record
		record.DocID = domain.DocID("doc-2024-003")
		record.DocKey = hashing.DocKey(record.DocID)
		message, err := signature.BuildMessage(record.DocKey, record.ContentDigest, record.IssuedAt)
		require.NoError(t, err)
		record.Signature, err = f.signer.Sign(message)
		require.NoError(t, err)
		record.IssuerAddress = ""
		require.NoError(t, f.docs.Create(ctx, record))
		_, err = f.ledger.Anchor(ctx, record.DocKey, record.ContentDigest, "initial issuance")
		require.NoError(t, err)

		svc := f.service(verification.Options{})
		result, err := svc.Verify(ctx, verification.Request{
			DocID: record.DocID,
			Bytes: f.artifact,
		})
		require.NoError(t, err)
		assert.Equal(t, verification.VerdictPass, result.Verdict)
		assert.True(t, result.IssuerVerified)
	})

	t.Run("registry membership policy rejects unregistered signer", func(t *testing.T) {
		f := newFixture(t)
		svc := f.service(verification.Options{RequireRegistry: true})

		result, err := svc.Verify(ctx, verification.Request{
			DocID: f.record.DocID,
			Bytes: f.artifact,
		})
		require.NoError(t, err)
		assert.Equal(t, verification.VerdictFail, result.Verdict)
		assert.Contains(t, result.Reasons, verification.ReasonSigInvalid)
	})

	t.Run("registry membership policy passes registered signer", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.AddIssuer(ctx, f.signer.Address(), "Example University")
		require.NoError(t, err)
		svc := f.service(verification.Options{RequireRegistry: true})

		result, err := svc.Verify(ctx, verification.Request{
			DocID: f.record.DocID,
			Bytes: f.artifact,
		})
		require.NoError(t, err)
		assert.Equal(t, verification.VerdictPass, result.Verdict)
		assert.True(t, result.IssuerVerified)
	})
}

func TestVerifyTrail(t *testing.T) {
	ctx := context.Background()

	t.Run("every attempt is recorded, failed ones included", func(t *testing.T) {
		f := newFixture(t)
		svc := f.service(verification.Options{})

		_, err := svc.Verify(ctx, verification.Request{DocID: f.record.DocID, RequesterID: "v1", Bytes: f.artifact})
		require.NoError(t, err)
		_, err = svc.Verify(ctx, verification.Request{DocID: domain.DocID("missing"), RequesterID: "v2", Bytes: f.artifact})
		require.NoError(t, err)

		events := f.events.All()
		require.Len(t, events, 2)
		assert.Equal(t, verification.VerdictPass, events[0].Verdict)
		assert.Equal(t, verification.VerdictFail, events[1].Verdict)
		assert.Equal(t, "v2", events[1].RequesterID)
		assert.False(t, events[1].Timestamp.IsZero())
	})

	t.Run("audit trail captures verdict and reasons", func(t *testing.T) {
		f := newFixture(t)
		svc := f.service(verification.Options{})

		_, err := svc.Verify(ctx, verification.Request{DocID: f.record.DocID, RequesterID: "v1", Bytes: []byte("forged")})
		require.NoError(t, err)

		entries := f.auditTrail.All()
		require.Len(t, entries, 1)
		assert.Equal(t, audit.ActionDocumentVerified, entries[0].Action)
		assert.Equal(t, f.record.DocID.String(), entries[0].TargetDocID)
		assert.Equal(t, "FAIL", entries[0].Details["verdict"])
	})
}
