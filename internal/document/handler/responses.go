package handler

import (
	"sigil/internal/document"
	"sigil/internal/ledger"
)

// RecordResponse is the transport shape of a document record. The raw
// signature bytes stay internal; callers see the issuer identity instead.
type RecordResponse struct {
	DocID            string           `json:"doc_id"`
	DocKey           string           `json:"doc_key"`
	IssuerID         string           `json:"issuer_id"`
	Title            string           `json:"title"`
	Reason           string           `json:"reason,omitempty"`
	Meta             document.Meta    `json:"meta"`
	ContentDigest    string           `json:"content_digest"`
	IssuedAt         int64            `json:"issued_at"`
	Status           string           `json:"status"`
	Signed           bool             `json:"signed"`
	IssuerAddress    string           `json:"issuer_address,omitempty"`
	Anchor           *AnchorResponse  `json:"anchor,omitempty"`
	RevokedAt        int64            `json:"revoked_at,omitempty"`
	RevocationReason string           `json:"revocation_reason,omitempty"`
}

type AnchorResponse struct {
	TxRef       string `json:"tx_ref"`
	BlockRef    int64  `json:"block_ref"`
	Chain       string `json:"chain"`
	ExplorerURL string `json:"explorer_url,omitempty"`
}

// FromRecord converts a domain record to its transport shape.
func FromRecord(record document.Record) RecordResponse {
	resp := RecordResponse{
		DocID:            record.DocID.String(),
		DocKey:           record.DocKey.String(),
		IssuerID:         record.IssuerID,
		Title:            record.Title,
		Reason:           record.Reason,
		Meta:             record.Meta,
		ContentDigest:    record.ContentDigest.String(),
		IssuedAt:         record.IssuedAt,
		Status:           string(record.Status),
		Signed:           record.Signed(),
		IssuerAddress:    record.IssuerAddress.String(),
		RevokedAt:        record.RevokedAt,
		RevocationReason: record.RevocationReason,
	}
	if record.Anchor != nil {
		resp.Anchor = &AnchorResponse{
			TxRef:       record.Anchor.TxRef,
			BlockRef:    record.Anchor.BlockRef,
			Chain:       record.Anchor.Chain,
			ExplorerURL: record.Anchor.ExplorerURL,
		}
	}
	return resp
}

// HistoryResponse lists the anchored version sequence.
type HistoryResponse struct {
	DocID    string           `json:"doc_id"`
	Versions []ledger.Version `json:"versions"`
}
