// Package document holds the locally persisted record of an issued document
// and its administrative lifecycle. A record is created exactly once by the
// issuance pipeline, optionally updated in place as the asynchronous signing
// and anchoring steps complete, later transitioned to revoked, and never
// deleted.
package document

import (
	"time"

	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/domain"
)

// Status is the locally authoritative lifecycle state. Revocation is
// monotonic: there is no transition back to active.
type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

// Kind tags the metadata union. Each document kind carries its own structured
// metadata instead of an open-ended map.
type Kind string

const (
	KindCertificate Kind = "certificate"
	KindTranscript  Kind = "transcript"
)

// CertificateMeta describes a certificate-kind document.
type CertificateMeta struct {
	ProgramName string `json:"program_name,omitempty"`
	AwardedTo   string `json:"awarded_to,omitempty"`
	GradeLabel  string `json:"grade_label,omitempty"`
}

// TranscriptMeta describes a transcript-kind document.
type TranscriptMeta struct {
	StudentRef   string `json:"student_ref,omitempty"`
	AcademicYear string `json:"academic_year,omitempty"`
	TermCount    int    `json:"term_count,omitempty"`
}

// Meta is a small tagged union: exactly the variant matching Kind is set.
type Meta struct {
	Kind        Kind             `json:"kind"`
	Certificate *CertificateMeta `json:"certificate,omitempty"`
	Transcript  *TranscriptMeta  `json:"transcript,omitempty"`
}

// Validate enforces the union invariant.
func (m Meta) Validate() error {
	switch m.Kind {
	case KindCertificate:
		if m.Transcript != nil {
			return dErrors.New(dErrors.CodeBadRequest, "certificate document carries transcript metadata")
		}
	case KindTranscript:
		if m.Certificate != nil {
			return dErrors.New(dErrors.CodeBadRequest, "transcript document carries certificate metadata")
		}
	case "":
		return dErrors.New(dErrors.CodeBadRequest, "document kind is required")
	default:
		return dErrors.New(dErrors.CodeBadRequest, "unknown document kind")
	}
	return nil
}

// AnchorRef references the ledger entry attached once anchoring succeeds.
// A nil AnchorRef on an active record means the anchor step is still owed.
type AnchorRef struct {
	TxRef       string `json:"tx_ref"`
	BlockRef    int64  `json:"block_ref"`
	Chain       string `json:"chain"`
	ExplorerURL string `json:"explorer_url,omitempty"`
}

// Record is the locally persisted document record. Once a digest is anchored
// for the derived DocKey it is never overwritten; a revision is a new ledger
// entry.
type Record struct {
	DocID         domain.DocID
	DocKey        domain.DocKey
	IssuerID      string
	Title         string
	Reason        string
	Meta          Meta
	ContentRef    string
	ContentDigest domain.Digest
	IssuedAt      int64
	Status        Status

	// Signature and IssuerAddress are attached when a signing key is
	// configured; both empty otherwise.
	Signature     []byte
	IssuerAddress domain.Address

	Anchor *AnchorRef

	RevokedAt        int64
	RevocationReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Anchored reports whether the ledger anchor step completed for this record.
func (r Record) Anchored() bool { return r.Anchor != nil }

// Signed reports whether an attestation signature is attached.
func (r Record) Signed() bool { return len(r.Signature) > 0 && !r.IssuerAddress.IsZero() }
