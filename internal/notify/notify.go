// Package notify defines the outbound notification sink. Delivery is
// fire-and-forget: failures are logged by implementations, never propagated
// into issuance or verification outcomes.
package notify

import (
	"context"
	"log/slog"
)

// Sink receives notification hooks. Formatting and transport (email, chat)
// live behind implementations outside the core.
type Sink interface {
	NotifyIssueSuccess(ctx context.Context, docID, issuerID string)
	NotifyVerificationResult(ctx context.Context, docID, requesterID, verdict string)
	NotifyAdminVerificationFailed(ctx context.Context, docID, requesterID string, reasons []string)
	NotifyRevoked(ctx context.Context, docID, actorID, reason string)
}

// LogSink writes notifications to the structured log; the default sink when
// no delivery channel is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) NotifyIssueSuccess(ctx context.Context, docID, issuerID string) {
	s.logger.InfoContext(ctx, "notify: document issued", "doc_id", docID, "issuer_id", issuerID)
}

func (s *LogSink) NotifyVerificationResult(ctx context.Context, docID, requesterID, verdict string) {
	s.logger.InfoContext(ctx, "notify: verification result",
		"doc_id", docID, "requester_id", requesterID, "verdict", verdict)
}

func (s *LogSink) NotifyAdminVerificationFailed(ctx context.Context, docID, requesterID string, reasons []string) {
	s.logger.WarnContext(ctx, "notify: verification failed",
		"doc_id", docID, "requester_id", requesterID, "reasons", reasons)
}

func (s *LogSink) NotifyRevoked(ctx context.Context, docID, actorID, reason string) {
	s.logger.InfoContext(ctx, "notify: document revoked",
		"doc_id", docID, "actor_id", actorID, "reason", reason)
}

var _ Sink = (*LogSink)(nil)
