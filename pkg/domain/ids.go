// Package domain holds the typed identifiers shared across modules.
//
// IDs are validated at trust boundaries (HTTP handlers, store reads) so the
// rest of the code can rely on well-formed values. Distinct types keep a
// DocID from being passed where an Address is expected.
package domain

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	dErrors "sigil/pkg/domain-errors"
)

// DocID is the caller-facing opaque document identifier. Callers may supply
// their own or let the issuance pipeline generate one.
type DocID string

// Digest is a lowercase 64-char hex sha256 content fingerprint.
type Digest string

// DocKey is the ledger lookup key: 0x-prefixed keccak256 of the DocID.
// It is always derived, never caller-supplied.
type DocKey string

// Address is a 0x-prefixed 20-byte hex signer identity, recoverable from a
// signature.
type Address string

const maxDocIDLen = 200

var (
	digestPattern  = regexp.MustCompile(`^[0-9a-f]{64}$`)
	docKeyPattern  = regexp.MustCompile(`^0x[0-9a-f]{64}$`)
	addressPattern = regexp.MustCompile(`^0x[0-9a-f]{40}$`)
)

// NewDocID generates a fresh random document identifier.
func NewDocID() DocID {
	return DocID(uuid.NewString())
}

// ParseDocID validates a caller-supplied document identifier.
func ParseDocID(raw string) (DocID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "doc id must not be empty")
	}
	if len(trimmed) > maxDocIDLen {
		return "", dErrors.New(dErrors.CodeBadRequest, "doc id exceeds maximum length")
	}
	for _, r := range trimmed {
		if r < 0x20 || r == 0x7f {
			return "", dErrors.New(dErrors.CodeBadRequest, "doc id contains control characters")
		}
	}
	return DocID(trimmed), nil
}

func (d DocID) String() string { return string(d) }

// ParseDigest validates and normalizes a sha256 hex digest.
func ParseDigest(raw string) (Digest, error) {
	normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if !digestPattern.MatchString(normalized) {
		return "", dErrors.New(dErrors.CodeBadRequest, "digest must be 64 hex characters")
	}
	return Digest(normalized), nil
}

func (d Digest) String() string { return string(d) }

// IsZero reports whether the digest is unset.
func (d Digest) IsZero() bool { return d == "" }

// Equal compares digests case-insensitively; stored digests are normalized
// but external systems may report uppercase hex.
func (d Digest) Equal(other Digest) bool {
	return strings.EqualFold(string(d), string(other))
}

// ParseDocKey validates a derived ledger key.
func ParseDocKey(raw string) (DocKey, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if !docKeyPattern.MatchString(normalized) {
		return "", dErrors.New(dErrors.CodeBadRequest, "doc key must be 0x-prefixed 32-byte hex")
	}
	return DocKey(normalized), nil
}

func (k DocKey) String() string { return string(k) }

// ParseAddress validates and normalizes a signer address.
func ParseAddress(raw string) (Address, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if !addressPattern.MatchString(normalized) {
		return "", dErrors.New(dErrors.CodeBadRequest, "address must be 0x-prefixed 20-byte hex")
	}
	return Address(normalized), nil
}

func (a Address) String() string { return string(a) }

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == "" }

// Equal compares addresses case-insensitively.
func (a Address) Equal(other Address) bool {
	return strings.EqualFold(string(a), string(other))
}
