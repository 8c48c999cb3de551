package verification

import "sigil/pkg/domain"

// Evidence is everything the engine collected before deciding. The engine
// evaluates all of it rather than short-circuiting on the first failure, so
// both the verdict and the audit trail explain every applicable reason.
type Evidence struct {
	// RecordFound is false when no local record exists for the docId.
	// Terminal: no other evidence is consulted.
	RecordFound bool

	StoredDigest  domain.Digest
	CheckedDigest domain.Digest

	Ledger    LedgerEvidence
	Signature SignatureEvidence

	Revoked bool
}

// LedgerEvidence is the outcome of the latest-anchor lookup.
type LedgerEvidence struct {
	// Unavailable means the adapter could not be evaluated; recorded for
	// audit via ErrClass, never re-raised to the caller.
	Unavailable bool
	ErrClass    string

	Found   bool
	Digest  domain.Digest
	Revoked bool
}

// SignatureEvidence is the outcome of the attestation check. Zero value means
// no signature was attached and the check did not run.
type SignatureEvidence struct {
	Present bool
	// RecoveredMatch is true when the recovered signer equals the claimed
	// (or registry-resolved) identity.
	RecoveredMatch bool

	// Registry fields apply only when the membership policy is enabled.
	RegistryChecked     bool
	RegistryActive      bool
	RegistryUnavailable bool
}

// Outcome is the engine's decision plus its derived summary flags.
type Outcome struct {
	Verdict        Verdict
	Codes          *CodeSet
	HashMatch      bool
	IssuerVerified bool
}

// Reconcile derives the verdict from accumulated evidence. Pure domain logic:
// no I/O, no side effects.
func Reconcile(ev Evidence) Outcome {
	codes := NewCodeSet()

	if !ev.RecordFound {
		return Outcome{Verdict: VerdictFail, Codes: NewCodeSet(ReasonCertNotFound)}
	}

	if !ev.CheckedDigest.Equal(ev.StoredDigest) {
		codes.Add(ReasonHashMismatch)
	}

	switch {
	case ev.Ledger.Unavailable:
		codes.Add(ReasonAdapterUnavailable)
	case !ev.Ledger.Found:
		codes.Add(ReasonChainMiss)
	case !ev.Ledger.Digest.Equal(ev.CheckedDigest):
		// Deduplicated with the local mismatch above: the set records
		// HASH_MISMATCH once regardless of cause.
		codes.Add(ReasonHashMismatch)
	}

	issuerVerified := false
	if ev.Signature.Present {
		switch {
		case ev.Signature.RegistryUnavailable:
			// The membership policy could not be evaluated; that is
			// adapter evidence, not signature evidence.
			codes.Add(ReasonAdapterUnavailable)
		case !ev.Signature.RecoveredMatch,
			ev.Signature.RegistryChecked && !ev.Signature.RegistryActive:
			codes.Add(ReasonSigInvalid)
		default:
			issuerVerified = true
		}
	}

	// Revocation from either authority counts; the ledger flag matters even
	// when the local record has not caught up.
	if ev.Revoked || ev.Ledger.Revoked {
		codes.Add(ReasonRevoked)
	}

	verdict := VerdictPass
	switch {
	case codes.Has(ReasonRevoked):
		// Revocation dominates: a revoked-but-otherwise-valid document
		// must never read as PASS. Other codes stay in the set.
		verdict = VerdictRevoked
	case !codes.Empty():
		verdict = VerdictFail
	}

	return Outcome{
		Verdict:        verdict,
		Codes:          codes,
		HashMatch:      !codes.Has(ReasonHashMismatch),
		IssuerVerified: issuerVerified,
	}
}
