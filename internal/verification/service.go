package verification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sigil/internal/audit"
	"sigil/internal/contentstore"
	"sigil/internal/document"
	docstore "sigil/internal/document/store"
	"sigil/internal/forensics"
	"sigil/internal/hashing"
	"sigil/internal/keyregistry"
	"sigil/internal/ledger"
	"sigil/internal/notify"
	"sigil/internal/verification/metrics"
	"sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/platform/sentinel"
	"sigil/pkg/requestcontext"
)

// EventStore is the persistence contract for verification events; defined
// here so the service does not import its own store implementations.
type EventStore interface {
	Append(ctx context.Context, event Event) error
}

// Service runs the full verification flow: load the local record, gather
// evidence in parallel, reconcile, and record the attempt.
type Service struct {
	docs      docstore.Store
	content   contentstore.Store
	ledger    ledger.Client
	registry  keyregistry.Registry
	forensics forensics.Analyzer
	events    EventStore
	audit     *audit.Publisher
	notifier  notify.Sink
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer

	requireRegistry bool
}

// Options carries the optional collaborators and policy switches.
type Options struct {
	Registry        keyregistry.Registry
	Forensics       forensics.Analyzer
	Metrics         *metrics.Metrics
	RequireRegistry bool
}

func NewService(
	docs docstore.Store,
	content contentstore.Store,
	ledgerClient ledger.Client,
	events EventStore,
	auditPublisher *audit.Publisher,
	notifier notify.Sink,
	logger *slog.Logger,
	opts Options,
) *Service {
	return &Service{
		docs:            docs,
		content:         content,
		ledger:          ledgerClient,
		registry:        opts.Registry,
		forensics:       opts.Forensics,
		events:          events,
		audit:           auditPublisher,
		notifier:        notifier,
		metrics:         opts.Metrics,
		logger:          logger,
		tracer:          otel.Tracer("sigil/verification"),
		requireRegistry: opts.RequireRegistry,
	}
}

// Verify reconciles all evidence for one document into a verdict. It returns
// an error only when the attempt itself could not run (bad input, no content
// source, trail write failure); every evaluable attempt yields a Result, even
// an all-negative one.
func (s *Service) Verify(ctx context.Context, req Request) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Verify",
		trace.WithAttributes(attribute.String("doc_id", req.DocID.String())))
	defer span.End()

	start := time.Now()

	record, err := s.docs.FindByID(ctx, req.DocID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Terminal: without a local record there is no digest to
			// compare and no key to look up. No adapter calls happen.
			return s.conclude(ctx, req, gathered{}, start)
		}
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "load document record")
	}

	checked, err := s.resolveDigest(ctx, record, req)
	if err != nil {
		return Result{}, err
	}
	req.Digest = checked

	out := s.gatherEvidence(ctx, record, req)
	return s.conclude(ctx, req, out, start)
}

// resolveDigest picks the digest under check: computed from the presented
// bytes when given, else the caller-supplied digest, else computed from the
// stored artifact.
func (s *Service) resolveDigest(ctx context.Context, record document.Record, req Request) (domain.Digest, error) {
	if len(req.Bytes) > 0 {
		return hashing.Digest(req.Bytes), nil
	}
	if !req.Digest.IsZero() {
		return req.Digest, nil
	}
	data, err := s.content.Download(ctx, record.ContentRef)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeInternal, "stored artifact missing")
		}
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "stored artifact unavailable")
	}
	return hashing.Digest(data), nil
}

// conclude reconciles, records the attempt, and fans out notifications.
func (s *Service) conclude(ctx context.Context, req Request, out gathered, start time.Time) (Result, error) {
	outcome := Reconcile(out.Evidence)

	result := Result{
		DocID:          req.DocID,
		Verdict:        outcome.Verdict,
		Reasons:        outcome.Codes.Slice(),
		HashMatch:      outcome.HashMatch,
		IssuerVerified: outcome.IssuerVerified,
		CheckedDigest:  out.Evidence.CheckedDigest,
		Ledger:         out.Detail,
		Forensics:      out.Forensics,
		EvaluatedAt:    requestcontext.Now(ctx),
	}
	if result.Reasons == nil {
		result.Reasons = []ReasonCode{}
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("verdict", string(result.Verdict)),
		attribute.Int("reason_count", len(result.Reasons)),
	)

	// The trail write is fail-closed: an attempt that cannot be recorded
	// must not hand out a verdict.
	event := Event{
		ID:             uuid.New(),
		DocID:          req.DocID,
		RequesterID:    req.RequesterID,
		Verdict:        result.Verdict,
		Reasons:        result.Reasons,
		HashMatch:      result.HashMatch,
		IssuerVerified: result.IssuerVerified,
		Timestamp:      result.EvaluatedAt,
	}
	if err := s.events.Append(ctx, event); err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "record verification event")
	}

	if err := s.audit.Emit(ctx, audit.Event{
		Action:      audit.ActionDocumentVerified,
		ActorID:     req.RequesterID,
		TargetDocID: req.DocID.String(),
		Details: map[string]any{
			"verdict":         string(result.Verdict),
			"reasons":         reasonStrings(result.Reasons),
			"hash_match":      result.HashMatch,
			"issuer_verified": result.IssuerVerified,
		},
	}); err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "append audit event")
	}

	s.notifier.NotifyVerificationResult(ctx, req.DocID.String(), req.RequesterID, string(result.Verdict))
	if result.Verdict != VerdictPass {
		s.notifier.NotifyAdminVerificationFailed(ctx, req.DocID.String(), req.RequesterID, reasonStrings(result.Reasons))
	}

	s.metrics.IncrementVerdict(string(result.Verdict))
	for _, code := range result.Reasons {
		s.metrics.IncrementReason(string(code))
	}
	s.metrics.ObserveVerifyLatency(time.Since(start))

	s.logger.InfoContext(ctx, "verification concluded",
		"doc_id", req.DocID,
		"requester_id", req.RequesterID,
		"verdict", result.Verdict,
		"reasons", reasonStrings(result.Reasons),
	)
	return result, nil
}

func reasonStrings(codes []ReasonCode) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = string(c)
	}
	return out
}
