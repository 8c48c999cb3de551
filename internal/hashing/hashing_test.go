package hashing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigil/pkg/domain"
)

func TestDigest(t *testing.T) {
	t.Run("matches known sha256 reference", func(t *testing.T) {
		got := Digest([]byte("hello"))
		assert.Equal(t,
			domain.Digest("2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"),
			got,
		)
	})

	t.Run("is deterministic", func(t *testing.T) {
		data := []byte("the quick brown fox")
		assert.Equal(t, Digest(data), Digest(data))
	})

	t.Run("single byte flip changes digest", func(t *testing.T) {
		data := []byte("original artifact bytes")
		tampered := append([]byte(nil), data...)
		tampered[3] ^= 0x01
		assert.NotEqual(t, Digest(data), Digest(tampered))
	})
}

func TestDocKey(t *testing.T) {
	t.Run("is deterministic and well-formed", func(t *testing.T) {
		key := DocKey("doc-123")
		assert.Equal(t, key, DocKey("doc-123"))

		parsed, err := domain.ParseDocKey(key.String())
		require.NoError(t, err)
		assert.Equal(t, key, parsed)
	})

	t.Run("distinct doc ids map to distinct keys", func(t *testing.T) {
		assert.NotEqual(t, DocKey("doc-123"), DocKey("doc-124"))
	})

	t.Run("matches keccak256 reference", func(t *testing.T) {
		// keccak256("") is a fixed constant; guards against accidentally
		// swapping in the finalized SHA3 variant.
		assert.Equal(t,
			domain.DocKey("0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"),
			DocKey(""),
		)
	})
}
