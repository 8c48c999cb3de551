package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration. FromEnv keeps main lean; every
// value has a development default except secrets, which stay empty when unset.
type Server struct {
	Addr          string
	JWTSigningKey string

	PostgresURL string
	RedisURL    string

	KafkaBrokers string
	AuditTopic   string

	Ledger    Ledger
	Forensics Forensics

	Issuer  Issuer
	Storage Storage
}

// Ledger configures the chain-adapter RPC client.
type Ledger struct {
	BaseURL string
	Timeout time.Duration
	// RequireRegistry enables the issuer-registry membership check during
	// signature verification.
	RequireRegistry bool
	// CacheTTL bounds how long a latest-anchor lookup may be served from
	// Redis before going back to the ledger.
	CacheTTL time.Duration
}

// Forensics configures the optional visual-authenticity analysis service.
// Best-effort only: verification never fails because of it.
type Forensics struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Issuer holds the signing identity for issued documents. When PrivateKeyHex
// is empty, documents are issued unsigned.
type Issuer struct {
	PrivateKeyHex string
	Address       string
	// Registry maps issuer IDs to their registered signing identity.
	// Verification falls back to it for records that carry a signature
	// without a claimed signer address.
	Registry map[string]string
}

// Storage configures the filesystem content store.
type Storage struct {
	Dir string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	return Server{
		Addr:          envOr("SIGIL_ADDR", ":8080"),
		JWTSigningKey: envOr("SIGIL_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresURL:   os.Getenv("SIGIL_POSTGRES_URL"),
		RedisURL:      os.Getenv("SIGIL_REDIS_URL"),
		KafkaBrokers:  os.Getenv("SIGIL_KAFKA_BROKERS"),
		AuditTopic:    envOr("SIGIL_AUDIT_TOPIC", "sigil.audit.events"),
		Ledger: Ledger{
			BaseURL:         envOr("SIGIL_LEDGER_URL", "http://localhost:8088"),
			Timeout:         envDuration("SIGIL_LEDGER_TIMEOUT", 30*time.Second),
			RequireRegistry: os.Getenv("SIGIL_REQUIRE_ISSUER_REGISTRY") == "true",
			CacheTTL:        envDuration("SIGIL_LEDGER_CACHE_TTL", 30*time.Second),
		},
		Forensics: Forensics{
			BaseURL: os.Getenv("SIGIL_FORENSICS_URL"),
			APIKey:  os.Getenv("SIGIL_FORENSICS_API_KEY"),
			Timeout: envDuration("SIGIL_FORENSICS_TIMEOUT", 20*time.Second),
		},
		Issuer: Issuer{
			PrivateKeyHex: os.Getenv("SIGIL_ISSUER_PRIVATE_KEY"),
			Address:       os.Getenv("SIGIL_ISSUER_ADDRESS"),
			Registry:      envPairs("SIGIL_ISSUER_REGISTRY"),
		},
		Storage: Storage{
			Dir: envOr("SIGIL_STORAGE_DIR", "data/files"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envPairs parses a comma-separated "key=value" list. Entries without an
// equals sign or with an empty side are dropped; values are validated by the
// consumer, which owns the failure policy.
func envPairs(key string) map[string]string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	pairs := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || k == "" || v == "" {
			continue
		}
		pairs[k] = v
	}
	if len(pairs) == 0 {
		return nil
	}
	return pairs
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
