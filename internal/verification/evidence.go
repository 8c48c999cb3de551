package verification

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"sigil/internal/document"
	"sigil/internal/forensics"
	"sigil/internal/ledger"
	"sigil/internal/signature"
)

const evidenceTimeout = 15 * time.Second

// gathered carries the raw evidence plus the diagnostic detail that rides
// along to the caller but plays no part in the verdict.
type gathered struct {
	Evidence  Evidence
	Detail    *LedgerDetail
	Forensics forensics.Report
}

// gatherEvidence runs the independent evidence fetches in parallel under a
// shared deadline. Fetch failures become evidence (unavailable flags), never
// errors: the engine must always reach a verdict.
func (s *Service) gatherEvidence(ctx context.Context, record document.Record, req Request) gathered {
	ctx, cancel := context.WithTimeout(ctx, evidenceTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	out := gathered{
		Evidence: Evidence{
			RecordFound:  true,
			StoredDigest: record.ContentDigest,
			Revoked:      record.Status == document.StatusRevoked,
		},
		Detail: &LedgerDetail{},
	}
	out.Evidence.CheckedDigest = req.Digest

	g.Go(func() error {
		start := time.Now()
		s.gatherLedgerEvidence(ctx, record, &out)
		s.metrics.ObserveEvidenceLatency("ledger", time.Since(start))
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		s.gatherSignatureEvidence(ctx, record, req, &out)
		s.metrics.ObserveEvidenceLatency("signature", time.Since(start))
		return nil
	})

	// Forensics needs both artifacts: the bytes under check and the
	// originally stored ones. Strictly best-effort.
	if s.forensics != nil && len(req.Bytes) > 0 {
		g.Go(func() error {
			start := time.Now()
			original, err := s.content.Download(ctx, record.ContentRef)
			if err != nil {
				s.logger.DebugContext(ctx, "forensics skipped, stored artifact unavailable",
					"doc_id", record.DocID,
					"error", err,
				)
				return nil
			}
			out.Forensics = s.forensics.AnalyzePair(ctx, original, req.Bytes)
			s.metrics.ObserveEvidenceLatency("forensics", time.Since(start))
			return nil
		})
	}

	_ = g.Wait()
	return out
}

func (s *Service) gatherLedgerEvidence(ctx context.Context, record document.Record, out *gathered) {
	version, index, err := s.ledger.Latest(ctx, record.DocKey)
	switch {
	case err == nil:
		out.Evidence.Ledger = LedgerEvidence{
			Found:   true,
			Digest:  version.Digest,
			Revoked: version.Revoked,
		}
		out.Detail.Found = true
		out.Detail.Index = index
		out.Detail.Version = &version

		// History is diagnostic only; its failure does not change the
		// ledger evidence already in hand.
		if history, err := s.ledger.History(ctx, record.DocKey); err == nil {
			out.Detail.History = history
		}

	case ledger.IsNotFound(err):
		// Definitive negative answer: the ledger was reached and holds
		// no anchor for this key.

	default:
		out.Evidence.Ledger = LedgerEvidence{
			Unavailable: true,
			ErrClass:    err.Error(),
		}
		s.logger.WarnContext(ctx, "ledger evidence unavailable",
			"doc_id", record.DocID,
			"error", err,
		)
	}
}

func (s *Service) gatherSignatureEvidence(ctx context.Context, record document.Record, req Request, out *gathered) {
	if len(record.Signature) == 0 {
		return
	}
	out.Evidence.Signature.Present = true

	expected := record.IssuerAddress
	if expected.IsZero() && s.registry != nil {
		identity, err := s.registry.IdentityForIssuer(ctx, record.IssuerID)
		if err != nil {
			s.logger.WarnContext(ctx, "issuer identity resolution failed",
				"doc_id", record.DocID,
				"issuer_id", record.IssuerID,
				"error", err,
			)
			return
		}
		expected = identity
	}
	if expected.IsZero() {
		return
	}

	message, err := signature.BuildMessage(record.DocKey, out.Evidence.CheckedDigest, record.IssuedAt)
	if err != nil {
		s.logger.WarnContext(ctx, "attestation message build failed",
			"doc_id", record.DocID,
			"error", err,
		)
		return
	}
	out.Evidence.Signature.RecoveredMatch = signature.Verify(message, record.Signature, expected)

	if s.requireRegistry {
		status, err := s.ledger.IsIssuerActive(ctx, expected)
		if err != nil {
			out.Evidence.Signature.RegistryUnavailable = true
			s.logger.WarnContext(ctx, "issuer registry unavailable",
				"doc_id", record.DocID,
				"identity", expected,
				"error", err,
			)
			return
		}
		out.Evidence.Signature.RegistryChecked = true
		out.Evidence.Signature.RegistryActive = status.Active
	}
}
