package verification

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sigil/internal/hashing"
)

func matchingEvidence() Evidence {
	digest := hashing.Digest([]byte("artifact bytes"))
	return Evidence{
		RecordFound:   true,
		StoredDigest:  digest,
		CheckedDigest: digest,
		Ledger: LedgerEvidence{
			Found:  true,
			Digest: digest,
		},
		Signature: SignatureEvidence{
			Present:        true,
			RecoveredMatch: true,
		},
	}
}

func TestReconcile(t *testing.T) {
	t.Run("all evidence matching yields PASS with no reasons", func(t *testing.T) {
		out := Reconcile(matchingEvidence())
		assert.Equal(t, VerdictPass, out.Verdict)
		assert.Empty(t, out.Codes.Slice())
		assert.True(t, out.HashMatch)
		assert.True(t, out.IssuerVerified)
	})

	t.Run("missing record is terminal", func(t *testing.T) {
		ev := matchingEvidence()
		ev.RecordFound = false
		// Everything else looks healthy; none of it may be consulted.
		out := Reconcile(ev)
		assert.Equal(t, VerdictFail, out.Verdict)
		assert.Equal(t, []ReasonCode{ReasonCertNotFound}, out.Codes.Slice())
		assert.False(t, out.IssuerVerified)
	})

	t.Run("tampered bytes yield HASH_MISMATCH", func(t *testing.T) {
		ev := matchingEvidence()
		ev.CheckedDigest = hashing.Digest([]byte("tampered bytes"))
		out := Reconcile(ev)
		assert.Equal(t, VerdictFail, out.Verdict)
		assert.True(t, out.Codes.Has(ReasonHashMismatch))
		assert.False(t, out.HashMatch)
	})

	t.Run("local and ledger mismatch deduplicate to one HASH_MISMATCH", func(t *testing.T) {
		ev := matchingEvidence()
		ev.CheckedDigest = hashing.Digest([]byte("tampered bytes"))
		// The ledger digest now also differs from the checked one.
		out := Reconcile(ev)
		assert.Equal(t, []ReasonCode{ReasonHashMismatch}, out.Codes.Slice())
	})

	t.Run("no anchor on ledger yields CHAIN_MISS", func(t *testing.T) {
		ev := matchingEvidence()
		ev.Ledger = LedgerEvidence{Found: false}
		out := Reconcile(ev)
		assert.Equal(t, VerdictFail, out.Verdict)
		assert.True(t, out.Codes.Has(ReasonChainMiss))
	})

	t.Run("ledger unavailable yields ADAPTER_UNAVAILABLE and never PASS", func(t *testing.T) {
		ev := matchingEvidence()
		ev.Ledger = LedgerEvidence{Unavailable: true, ErrClass: "connection refused"}
		out := Reconcile(ev)
		assert.Equal(t, VerdictFail, out.Verdict)
		assert.Equal(t, []ReasonCode{ReasonAdapterUnavailable}, out.Codes.Slice())
		assert.False(t, out.Codes.Has(ReasonChainMiss))
	})

	t.Run("signature mismatch yields SIG_INVALID", func(t *testing.T) {
		ev := matchingEvidence()
		ev.Signature.RecoveredMatch = false
		out := Reconcile(ev)
		assert.Equal(t, VerdictFail, out.Verdict)
		assert.True(t, out.Codes.Has(ReasonSigInvalid))
		assert.False(t, out.IssuerVerified)
	})

	t.Run("inactive registry membership yields SIG_INVALID", func(t *testing.T) {
		ev := matchingEvidence()
		ev.Signature.RegistryChecked = true
		ev.Signature.RegistryActive = false
		out := Reconcile(ev)
		assert.True(t, out.Codes.Has(ReasonSigInvalid))
		assert.False(t, out.IssuerVerified)
	})

	t.Run("registry unavailable yields ADAPTER_UNAVAILABLE not SIG_INVALID", func(t *testing.T) {
		ev := matchingEvidence()
		ev.Signature.RegistryUnavailable = true
		out := Reconcile(ev)
		assert.True(t, out.Codes.Has(ReasonAdapterUnavailable))
		assert.False(t, out.Codes.Has(ReasonSigInvalid))
	})

	t.Run("absent signature runs no signature check", func(t *testing.T) {
		ev := matchingEvidence()
		ev.Signature = SignatureEvidence{}
		out := Reconcile(ev)
		assert.Equal(t, VerdictPass, out.Verdict)
		assert.False(t, out.IssuerVerified)
	})

	t.Run("revocation dominates the verdict", func(t *testing.T) {
		ev := matchingEvidence()
		ev.Revoked = true
		out := Reconcile(ev)
		assert.Equal(t, VerdictRevoked, out.Verdict)
		assert.True(t, out.Codes.Has(ReasonRevoked))
	})

	t.Run("revocation dominates while other reasons remain in the set", func(t *testing.T) {
		ev := matchingEvidence()
		ev.Revoked = true
		ev.CheckedDigest = hashing.Digest([]byte("tampered bytes"))
		ev.Signature.RecoveredMatch = false
		out := Reconcile(ev)
		assert.Equal(t, VerdictRevoked, out.Verdict)
		assert.True(t, out.Codes.Has(ReasonHashMismatch))
		assert.True(t, out.Codes.Has(ReasonSigInvalid))
		assert.True(t, out.Codes.Has(ReasonRevoked))
	})

	t.Run("ledger-side revocation flag also dominates", func(t *testing.T) {
		ev := matchingEvidence()
		ev.Ledger.Revoked = true
		out := Reconcile(ev)
		assert.Equal(t, VerdictRevoked, out.Verdict)
	})

	t.Run("hash match with chain miss reports HashMatch true", func(t *testing.T) {
		ev := matchingEvidence()
		ev.Ledger = LedgerEvidence{Found: false}
		out := Reconcile(ev)
		assert.True(t, out.HashMatch)
		assert.Equal(t, VerdictFail, out.Verdict)
	})
}

func TestCodeSet(t *testing.T) {
	t.Run("preserves insertion order and deduplicates", func(t *testing.T) {
		set := NewCodeSet()
		set.Add(ReasonHashMismatch)
		set.Add(ReasonChainMiss)
		set.Add(ReasonHashMismatch)
		assert.Equal(t, []ReasonCode{ReasonHashMismatch, ReasonChainMiss}, set.Slice())
	})

	t.Run("empty set reports empty", func(t *testing.T) {
		assert.True(t, NewCodeSet().Empty())
		assert.False(t, NewCodeSet(ReasonRevoked).Empty())
	})
}
