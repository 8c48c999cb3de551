// Package verification reconciles evidence from the local record, the
// external ledger, the cryptographic attestation, and the revocation flag
// into a single explainable verdict.
package verification

import (
	"time"

	"github.com/google/uuid"

	"sigil/internal/forensics"
	"sigil/internal/ledger"
	"sigil/pkg/domain"
)

// Verdict is the final outcome of a verification.
type Verdict string

const (
	VerdictPass    Verdict = "PASS"
	VerdictFail    Verdict = "FAIL"
	VerdictRevoked Verdict = "REVOKED"
)

// ReasonCode is a named piece of negative evidence. Codes are accumulated
// into a set, never thrown: they mean "evaluated and found a problem",
// whereas errors mean "could not evaluate".
type ReasonCode string

const (
	ReasonCertNotFound       ReasonCode = "CERT_NOT_FOUND"
	ReasonHashMismatch       ReasonCode = "HASH_MISMATCH"
	ReasonChainMiss          ReasonCode = "CHAIN_MISS"
	ReasonSigInvalid         ReasonCode = "SIG_INVALID"
	ReasonRevoked            ReasonCode = "REVOKED"
	ReasonAdapterUnavailable ReasonCode = "ADAPTER_UNAVAILABLE"
)

// CodeSet is an insertion-ordered set of reason codes. The same code arising
// from two different causes appears once.
type CodeSet struct {
	codes []ReasonCode
	seen  map[ReasonCode]bool
}

func NewCodeSet(codes ...ReasonCode) *CodeSet {
	set := &CodeSet{seen: make(map[ReasonCode]bool)}
	for _, c := range codes {
		set.Add(c)
	}
	return set
}

func (s *CodeSet) Add(code ReasonCode) {
	if s.seen[code] {
		return
	}
	s.seen[code] = true
	s.codes = append(s.codes, code)
}

func (s *CodeSet) Has(code ReasonCode) bool { return s.seen[code] }

func (s *CodeSet) Empty() bool { return len(s.codes) == 0 }

// Slice returns the codes in evaluation order.
func (s *CodeSet) Slice() []ReasonCode {
	out := make([]ReasonCode, len(s.codes))
	copy(out, s.codes)
	return out
}

// Request is one verification attempt. Exactly one content source applies:
// raw bytes, a caller-supplied digest, or (when both are absent) the stored
// artifact.
type Request struct {
	DocID       domain.DocID
	RequesterID string
	Bytes       []byte
	Digest      domain.Digest
}

// LedgerDetail surfaces what the ledger reported, for diagnostic output.
type LedgerDetail struct {
	Found   bool             `json:"found"`
	Index   int              `json:"index,omitempty"`
	Version *ledger.Version  `json:"version,omitempty"`
	History []ledger.Version `json:"history,omitempty"`
}

// Result is the full reconciliation outcome returned to callers. Reasons are
// always included, even when dominated by REVOKED, so callers and audits
// retain full diagnostic context.
type Result struct {
	DocID          domain.DocID     `json:"doc_id"`
	Verdict        Verdict          `json:"verdict"`
	Reasons        []ReasonCode     `json:"reasons"`
	HashMatch      bool             `json:"hash_match"`
	IssuerVerified bool             `json:"issuer_verified"`
	CheckedDigest  domain.Digest    `json:"checked_digest"`
	Ledger         *LedgerDetail    `json:"ledger,omitempty"`
	Forensics      forensics.Report `json:"forensics"`
	EvaluatedAt    time.Time        `json:"evaluated_at"`
}

// Event is the immutable record of one verification attempt, written for
// every attempt including failed ones.
type Event struct {
	ID             uuid.UUID
	DocID          domain.DocID
	RequesterID    string
	Verdict        Verdict
	Reasons        []ReasonCode
	HashMatch      bool
	IssuerVerified bool
	Timestamp      time.Time
}
