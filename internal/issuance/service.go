package issuance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sigil/internal/audit"
	"sigil/internal/contentstore"
	"sigil/internal/document"
	docstore "sigil/internal/document/store"
	"sigil/internal/hashing"
	"sigil/internal/issuance/metrics"
	"sigil/internal/ledger"
	"sigil/internal/notify"
	"sigil/internal/signature"
	"sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/platform/sentinel"
	"sigil/pkg/requestcontext"
)

// Stamper transforms the raw artifact before it is digested and stored, for
// deployments that imprint a visible seal or QR mark. It must be
// deterministic: the same input bytes yield the same output bytes, or
// idempotent re-presentation breaks.
type Stamper interface {
	Stamp(ctx context.Context, data []byte, docID domain.DocID) ([]byte, error)
}

// IdentityStamper passes artifact bytes through unchanged; the default when
// no stamping backend is configured.
type IdentityStamper struct{}

func (IdentityStamper) Stamp(_ context.Context, data []byte, _ domain.DocID) ([]byte, error) {
	return data, nil
}

// Service is the issuance pipeline. The order is fixed: stamp, digest,
// upload, persist, sign, anchor. A record always exists locally before the
// ledger hears about it, so a crash between the two steps loses an anchor,
// never a record.
type Service struct {
	docs     docstore.Store
	content  contentstore.Store
	ledger   ledger.Client
	signer   *signature.Signer
	stamper  Stamper
	audit    *audit.Publisher
	notifier notify.Sink
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Options carries the optional collaborators.
type Options struct {
	// Signer attests issued documents; records issued without one carry
	// no signature and verify without the attestation check.
	Signer  *signature.Signer
	Stamper Stamper
	Metrics *metrics.Metrics
}

func NewService(
	docs docstore.Store,
	content contentstore.Store,
	ledgerClient ledger.Client,
	auditPublisher *audit.Publisher,
	notifier notify.Sink,
	logger *slog.Logger,
	opts Options,
) *Service {
	stamper := opts.Stamper
	if stamper == nil {
		stamper = IdentityStamper{}
	}
	return &Service{
		docs:     docs,
		content:  content,
		ledger:   ledgerClient,
		signer:   opts.Signer,
		stamper:  stamper,
		audit:    auditPublisher,
		notifier: notifier,
		metrics:  opts.Metrics,
		logger:   logger,
	}
}

// Issue runs the pipeline for one submission. Re-presenting a document the
// pipeline has already seen is safe: an identical digest never anchors twice,
// and a record left unanchored by an earlier failure gets exactly the missing
// step.
func (s *Service) Issue(ctx context.Context, req Request) (Result, error) {
	if len(req.Bytes) == 0 {
		return Result{}, dErrors.New(dErrors.CodeBadRequest, "artifact bytes required")
	}
	if req.Title == "" {
		return Result{}, dErrors.New(dErrors.CodeBadRequest, "title required")
	}
	if err := req.Meta.Validate(); err != nil {
		return Result{}, err
	}

	docID := req.DocID
	if docID == "" {
		docID = domain.NewDocID()
	} else if _, err := domain.ParseDocID(docID.String()); err != nil {
		return Result{}, err
	}

	stamped, err := s.stamper.Stamp(ctx, req.Bytes, docID)
	if err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "stamp artifact")
	}
	digest := hashing.Digest(stamped)

	existing, err := s.docs.FindByID(ctx, docID)
	switch {
	case err == nil:
		return s.issueExisting(ctx, req, existing, stamped, digest)
	case errors.Is(err, sentinel.ErrNotFound):
		return s.issueNew(ctx, req, docID, stamped, digest)
	default:
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "load document record")
	}
}

func (s *Service) issueNew(ctx context.Context, req Request, docID domain.DocID, stamped []byte, digest domain.Digest) (Result, error) {
	record := document.Record{
		DocID:         docID,
		DocKey:        hashing.DocKey(docID),
		IssuerID:      req.IssuerID,
		Title:         req.Title,
		Reason:        req.Reason,
		Meta:          req.Meta,
		ContentDigest: digest,
		IssuedAt:      requestcontext.Now(ctx).Unix(),
		Status:        document.StatusActive,
	}
	if record.Reason == "" {
		record.Reason = "initial issuance"
	}

	ref, err := s.content.Upload(ctx, stamped, req.FileName)
	if err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "store artifact")
	}
	record.ContentRef = ref

	if err := s.docs.Create(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return Result{}, dErrors.New(dErrors.CodeConflict, "document already exists")
		}
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "persist document record")
	}

	if err := s.sign(ctx, &record); err != nil {
		return Result{}, err
	}

	anchored := s.anchor(ctx, &record)
	if err := s.audit.Emit(ctx, s.auditEvent(ctx, audit.ActionDocumentIssued, record, anchored)); err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "append audit event")
	}

	result := Result{Record: record, Anchored: anchored}
	if !anchored {
		s.metrics.IncrementOutcome("issued")
		return result, fmt.Errorf("%w: doc %s", ErrNotAnchored, record.DocID)
	}
	s.metrics.IncrementOutcome("issued")
	s.notifier.NotifyIssueSuccess(ctx, record.DocID.String(), record.IssuerID)
	s.logger.InfoContext(ctx, "document issued",
		"doc_id", record.DocID,
		"issuer_id", record.IssuerID,
		"digest", record.ContentDigest,
	)
	return result, nil
}

func (s *Service) issueExisting(ctx context.Context, req Request, existing document.Record, stamped []byte, digest domain.Digest) (Result, error) {
	if existing.Status == document.StatusRevoked {
		return Result{}, dErrors.New(dErrors.CodeConflict, "document is revoked")
	}

	if digest.Equal(existing.ContentDigest) {
		if existing.Anchored() {
			// Fully idempotent replay: nothing left to do.
			s.metrics.IncrementOutcome("idempotent")
			return Result{Record: existing, Anchored: true}, nil
		}
		return s.retryAnchor(ctx, existing)
	}

	// New content under a known id: a deliberate re-issuance. The ledger
	// gains a version; the local record tracks the latest artifact.
	reason := req.Reason
	if reason == "" {
		reason = "re-issuance"
	}

	ref, err := s.content.Upload(ctx, stamped, req.FileName)
	if err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "store artifact")
	}

	record := existing
	record.ContentDigest = digest
	record.ContentRef = ref
	record.Reason = reason
	record.IssuedAt = requestcontext.Now(ctx).Unix()
	record.Signature = nil
	record.IssuerAddress = ""
	record.Anchor = nil

	if err := s.docs.Reissue(ctx, record.DocID, digest, ref, reason, record.IssuedAt); err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "reissue document record")
	}

	if err := s.sign(ctx, &record); err != nil {
		return Result{}, err
	}

	anchored := s.anchor(ctx, &record)
	if err := s.audit.Emit(ctx, s.auditEvent(ctx, audit.ActionDocumentReissued, record, anchored)); err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "append audit event")
	}

	s.metrics.IncrementOutcome("reissued")
	result := Result{Record: record, Anchored: anchored, Reissued: true}
	if !anchored {
		return result, fmt.Errorf("%w: doc %s", ErrNotAnchored, record.DocID)
	}
	s.notifier.NotifyIssueSuccess(ctx, record.DocID.String(), record.IssuerID)
	s.logger.InfoContext(ctx, "document reissued",
		"doc_id", record.DocID,
		"digest", record.ContentDigest,
		"reason", reason,
	)
	return result, nil
}

// retryAnchor completes the single missing step of an earlier issuance. It
// consults the ledger first: when the earlier write landed and only the
// local receipt is missing, the record is repaired without anchoring a
// duplicate version.
func (s *Service) retryAnchor(ctx context.Context, record document.Record) (Result, error) {
	// An earlier crash may also have lost the signing step; attach the
	// attestation before completing the anchor.
	if !record.Signed() && s.signer != nil {
		if err := s.sign(ctx, &record); err != nil {
			return Result{}, err
		}
	}

	if version, index, err := s.ledger.Latest(ctx, record.DocKey); err == nil && version.Digest.Equal(record.ContentDigest) {
		// Receipt details were lost with the earlier failure; the
		// anchor position still marks the record anchored.
		anchor := document.AnchorRef{BlockRef: int64(index)}
		if err := s.docs.AttachAnchor(ctx, record.DocID, anchor); err != nil {
			return Result{Record: record}, fmt.Errorf("%w: doc %s", ErrNotAnchored, record.DocID)
		}
		record.Anchor = &anchor
		if err := s.audit.Emit(ctx, s.auditEvent(ctx, audit.ActionAnchorRetried, record, true)); err != nil {
			return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "append audit event")
		}
		s.metrics.IncrementOutcome("anchor_retried")
		return Result{Record: record, Anchored: true, AnchorRetried: true}, nil
	}

	anchored := s.anchor(ctx, &record)
	if !anchored {
		return Result{Record: record}, fmt.Errorf("%w: doc %s", ErrNotAnchored, record.DocID)
	}

	if err := s.audit.Emit(ctx, s.auditEvent(ctx, audit.ActionAnchorRetried, record, true)); err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "append audit event")
	}
	s.metrics.IncrementOutcome("anchor_retried")
	s.logger.InfoContext(ctx, "anchor retried",
		"doc_id", record.DocID,
		"digest", record.ContentDigest,
	)
	return Result{Record: record, Anchored: true, AnchorRetried: true}, nil
}

func (s *Service) sign(ctx context.Context, record *document.Record) error {
	if s.signer == nil {
		return nil
	}
	message, err := signature.BuildMessage(record.DocKey, record.ContentDigest, record.IssuedAt)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build attestation message")
	}
	sig, err := s.signer.Sign(message)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "sign attestation")
	}
	if err := s.docs.AttachSignature(ctx, record.DocID, sig, s.signer.Address()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "attach signature")
	}
	record.Signature = sig
	record.IssuerAddress = s.signer.Address()
	return nil
}

// anchor writes the single ledger entry for the record's current digest and
// attaches the receipt. Failure is reported, not raised: the caller decides
// how to surface the unanchored state.
func (s *Service) anchor(ctx context.Context, record *document.Record) bool {
	start := time.Now()
	receipt, err := s.ledger.Anchor(ctx, record.DocKey, record.ContentDigest, record.Reason)
	s.metrics.ObserveAnchorLatency(time.Since(start))
	if err != nil {
		s.metrics.IncrementAnchorFailure()
		s.logger.ErrorContext(ctx, "ledger anchor failed",
			"doc_id", record.DocID,
			"digest", record.ContentDigest,
			"error", err,
		)
		return false
	}

	anchor := document.AnchorRef{
		TxRef:       receipt.TxRef,
		BlockRef:    receipt.BlockRef,
		Chain:       receipt.Chain,
		ExplorerURL: receipt.ExplorerURL,
	}
	if err := s.docs.AttachAnchor(ctx, record.DocID, anchor); err != nil {
		// The ledger write stands; only the local receipt is missing.
		// The next replay sees digest equality plus a found anchor.
		s.logger.ErrorContext(ctx, "anchor receipt attach failed",
			"doc_id", record.DocID,
			"tx_ref", receipt.TxRef,
			"error", err,
		)
		return false
	}
	record.Anchor = &anchor
	return true
}

func (s *Service) auditEvent(ctx context.Context, action audit.Action, record document.Record, anchored bool) audit.Event {
	actor, _ := requestcontext.PrincipalFrom(ctx)
	return audit.Event{
		Action:      action,
		ActorID:     actor.ID,
		Role:        actor.Role,
		TargetDocID: record.DocID.String(),
		Details: map[string]any{
			"digest":   record.ContentDigest.String(),
			"anchored": anchored,
			"reason":   record.Reason,
		},
	}
}
