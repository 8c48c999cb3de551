package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvIssuerRegistry(t *testing.T) {
	t.Run("parses id=address pairs", func(t *testing.T) {
		t.Setenv("SIGIL_ISSUER_REGISTRY",
			"issuer-1=0x1111111111111111111111111111111111111111, issuer-2=0x2222222222222222222222222222222222222222")

		cfg := FromEnv()
		require.Len(t, cfg.Issuer.Registry, 2)
		assert.Equal(t, "0x1111111111111111111111111111111111111111", cfg.Issuer.Registry["issuer-1"])
		assert.Equal(t, "0x2222222222222222222222222222222222222222", cfg.Issuer.Registry["issuer-2"])
	})

	t.Run("drops malformed entries", func(t *testing.T) {
		t.Setenv("SIGIL_ISSUER_REGISTRY", "no-equals-sign,=0xabc,issuer-3=,issuer-4=0x4444")

		cfg := FromEnv()
		require.Len(t, cfg.Issuer.Registry, 1)
		assert.Equal(t, "0x4444", cfg.Issuer.Registry["issuer-4"])
	})

	t.Run("empty when unset", func(t *testing.T) {
		t.Setenv("SIGIL_ISSUER_REGISTRY", "")

		cfg := FromEnv()
		assert.Nil(t, cfg.Issuer.Registry)
	})
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("SIGIL_LEDGER_TIMEOUT", "5s")
	cfg := FromEnv()
	assert.Equal(t, "5s", cfg.Ledger.Timeout.String())

	t.Setenv("SIGIL_LEDGER_TIMEOUT", "45")
	cfg = FromEnv()
	assert.Equal(t, "45s", cfg.Ledger.Timeout.String())
}
