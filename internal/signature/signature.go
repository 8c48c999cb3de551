// Package signature builds the canonical attestation message and produces
// recoverable secp256k1 signatures over it. Verifiers recover the signer
// identity from the signature itself, so no public-key distribution is needed;
// trust is anchored in the ledger's issuer registry instead.
package signature

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"sigil/internal/hashing"
	"sigil/pkg/domain"
)

// SignatureLen is the byte length of an encoded signature: r (32) || s (32)
// || recovery id (1). The recovery byte uses the 27/28 convention the anchor
// contract tooling expects.
const SignatureLen = 65

var (
	ErrMalformedSignature = errors.New("malformed signature")
	ErrInvalidPrivateKey  = errors.New("invalid private key")
)

// BuildMessage produces the canonical 32-byte message hash signed at issuance
// and recomputed at verification: keccak256 over the tightly packed
// docKey (32 bytes) || digest (32 bytes) || issuedAt (uint64 big-endian).
// The packing is order-fixed so verification reproduces the exact bytes the
// issuer signed.
func BuildMessage(docKey domain.DocKey, digest domain.Digest, issuedAt int64) ([]byte, error) {
	keyBytes, err := hex.DecodeString(strings.TrimPrefix(docKey.String(), "0x"))
	if err != nil || len(keyBytes) != 32 {
		return nil, fmt.Errorf("doc key must be 32 bytes of hex: %q", docKey)
	}
	digestBytes, err := hex.DecodeString(digest.String())
	if err != nil || len(digestBytes) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes of hex: %q", digest)
	}

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(issuedAt))

	return hashing.Keccak256(keyBytes, digestBytes, ts[:]), nil
}

// Signer holds an issuer private key and its derived address.
type Signer struct {
	key  *secp256k1.PrivateKey
	addr domain.Address
}

// NewSigner parses a hex-encoded secp256k1 private key (0x prefix optional).
func NewSigner(privateKeyHex string) (*Signer, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil || len(raw) != 32 {
		return nil, ErrInvalidPrivateKey
	}
	key := secp256k1.PrivKeyFromBytes(raw)
	if key.Key.IsZero() {
		return nil, ErrInvalidPrivateKey
	}
	return &Signer{key: key, addr: addressOf(key.PubKey())}, nil
}

// Address returns the identity recoverable from this signer's signatures.
func (s *Signer) Address() domain.Address { return s.addr }

// Sign produces a 65-byte recoverable signature over a 32-byte message hash.
func (s *Signer) Sign(messageHash []byte) ([]byte, error) {
	if len(messageHash) != 32 {
		return nil, fmt.Errorf("message hash must be 32 bytes, got %d", len(messageHash))
	}
	// SignCompact emits header || r || s with header = 27 + recovery id for
	// an uncompressed key; re-order to r || s || v wire format.
	compact := secpecdsa.SignCompact(s.key, messageHash, false)
	sig := make([]byte, SignatureLen)
	copy(sig[:64], compact[1:])
	sig[64] = compact[0]
	return sig, nil
}

// RecoverSigner recovers the signer identity from a signature over the given
// message hash.
func RecoverSigner(messageHash, sig []byte) (domain.Address, error) {
	if len(messageHash) != 32 || len(sig) != SignatureLen {
		return "", ErrMalformedSignature
	}
	v := sig[64]
	if v < 27 || v > 30 {
		return "", ErrMalformedSignature
	}

	compact := make([]byte, SignatureLen)
	compact[0] = v
	copy(compact[1:], sig[:64])

	pub, _, err := secpecdsa.RecoverCompact(compact, messageHash)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	return addressOf(pub), nil
}

// Verify recovers the signer and compares it to the expected identity.
// Malformed signature bytes verify false; this never propagates an error.
// Registry membership is layered on by the reconciliation engine, not here.
func Verify(messageHash, sig []byte, expected domain.Address) bool {
	recovered, err := RecoverSigner(messageHash, sig)
	if err != nil {
		return false
	}
	return recovered.Equal(expected)
}

// addressOf derives the 20-byte identity from a public key: the trailing 20
// bytes of keccak256 over the uncompressed point (without the 0x04 prefix).
func addressOf(pub *secp256k1.PublicKey) domain.Address {
	uncompressed := pub.SerializeUncompressed()
	sum := hashing.Keccak256(uncompressed[1:])
	return domain.Address("0x" + hex.EncodeToString(sum[12:]))
}
