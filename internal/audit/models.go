// Package audit records an append-only trail of every issuance, verification,
// and administrative action. Entries are never mutated or pruned here;
// retention and rotation are deployment concerns.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action names follow verb-last snake case so downstream consumers can route
// on prefix.
type Action string

const (
	ActionDocumentIssued   Action = "document_issued"
	ActionDocumentReissued Action = "document_reissued"
	ActionAnchorRetried    Action = "document_anchor_retried"
	ActionDocumentVerified Action = "document_verified"
	ActionDocumentRevoked  Action = "document_revoked"
	ActionIssuerAdded      Action = "issuer_added"
	ActionIssuerRemoved    Action = "issuer_removed"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID          uuid.UUID
	Action      Action
	ActorID     string
	Role        string
	TargetDocID string
	Details     map[string]any
	Timestamp   time.Time
}
