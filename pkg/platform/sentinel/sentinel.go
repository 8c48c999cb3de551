package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, the ledger client, and
// other adapters return these (optionally wrapped) so services can translate
// them into domain errors or reason codes.
//
// ErrNotFound and ErrUnavailable must never be conflated: a missing ledger
// entry is evidence of forgery, while an unreachable ledger is evidence of
// nothing.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
