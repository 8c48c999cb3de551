// Package hashing provides the deterministic content digest and ledger key
// derivation used identically at issuance and verification time.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/sha3"

	"sigil/pkg/domain"
)

// Digest computes the sha256 content fingerprint of raw document bytes.
// Pure function: same bytes, same digest.
func Digest(data []byte) domain.Digest {
	sum := sha256.Sum256(data)
	return domain.Digest(hex.EncodeToString(sum[:]))
}

// DocKey derives the ledger lookup key from a document identifier. The key is
// a one-way function of the docId; the engine never anchors under a
// caller-supplied key.
func DocKey(docID domain.DocID) domain.DocKey {
	sum := Keccak256([]byte(docID))
	return domain.DocKey("0x" + hex.EncodeToString(sum))
}

// Keccak256 hashes data with the legacy Keccak-256 used by the anchor
// contract (not the finalized SHA3-256).
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}
