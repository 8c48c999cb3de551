// Package issuance owns the write path: stamp, digest, persist, sign, and
// anchor a document. Persistence comes first; anchoring is the step that can
// fail without losing the record.
package issuance

import (
	"errors"

	"sigil/internal/document"
	"sigil/pkg/domain"
)

// ErrNotAnchored reports that the record was persisted (and signed, when a
// key is configured) but the ledger anchor did not complete. The
// accompanying IssueResult is still valid; re-presenting the same document
// retries only the anchor step.
var ErrNotAnchored = errors.New("document persisted but not anchored")

// Request is one issuance submission.
type Request struct {
	// DocID is optional; a fresh one is generated when absent.
	DocID    domain.DocID
	IssuerID string
	Title    string
	Reason   string
	Meta     document.Meta
	FileName string
	Bytes    []byte
}

// Result reports what the pipeline did. Anchored is false only in the
// ErrNotAnchored case.
type Result struct {
	Record   document.Record
	Anchored bool
	// Reissued is set when an existing record was re-issued with new
	// content, adding a version to the ledger.
	Reissued bool
	// AnchorRetried is set when an earlier issuance had persisted the
	// record and this call completed only the missing anchor.
	AnchorRetried bool
}
