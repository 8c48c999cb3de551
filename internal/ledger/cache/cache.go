// Package cache decorates the ledger client with a Redis read-through cache
// for latest-anchor lookups, the one call on the verification hot path.
// Entries are TTL-bounded so a stale read can never outlive the configured
// window, and anchor writes invalidate their key immediately. Negative
// answers are never cached: "no anchor" is forgery evidence and must always
// come straight from the ledger.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"sigil/internal/ledger"
	"sigil/pkg/domain"
)

type cachedLatest struct {
	Version ledger.Version `json:"version"`
	Index   int            `json:"index"`
}

// CachedClient wraps a ledger.Client; all calls pass through except Latest.
type CachedClient struct {
	ledger.Client
	redis  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New builds a caching decorator. Callers should pass the raw client through
// unchanged when Redis is not configured.
func New(inner ledger.Client, redisClient *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedClient {
	return &CachedClient{Client: inner, redis: redisClient, ttl: ttl, logger: logger}
}

func latestKey(docKey domain.DocKey) string {
	return "ledger:latest:" + docKey.String()
}

func (c *CachedClient) Latest(ctx context.Context, docKey domain.DocKey) (ledger.Version, int, error) {
	key := latestKey(docKey)

	raw, err := c.redis.Get(ctx, key).Bytes()
	if err == nil {
		var entry cachedLatest
		if jsonErr := json.Unmarshal(raw, &entry); jsonErr == nil {
			return entry.Version, entry.Index, nil
		}
		// Corrupt entry; fall through to the ledger and overwrite.
	} else if err != redis.Nil {
		c.logger.WarnContext(ctx, "ledger cache read failed, falling through",
			"doc_key", docKey,
			"error", err,
		)
	}

	version, index, err := c.Client.Latest(ctx, docKey)
	if err != nil {
		return ledger.Version{}, 0, err
	}

	if payload, jsonErr := json.Marshal(cachedLatest{Version: version, Index: index}); jsonErr == nil {
		if setErr := c.redis.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			c.logger.WarnContext(ctx, "ledger cache write failed",
				"doc_key", docKey,
				"error", setErr,
			)
		}
	}
	return version, index, nil
}

// Anchor writes through and drops the cached latest entry for the key.
func (c *CachedClient) Anchor(ctx context.Context, docKey domain.DocKey, digest domain.Digest, reason string) (ledger.Receipt, error) {
	receipt, err := c.Client.Anchor(ctx, docKey, digest, reason)
	if err != nil {
		return receipt, err
	}
	if delErr := c.redis.Del(ctx, latestKey(docKey)).Err(); delErr != nil {
		c.logger.WarnContext(ctx, "ledger cache invalidation failed",
			"doc_key", docKey,
			"error", delErr,
		)
	}
	return receipt, err
}

var _ ledger.Client = (*CachedClient)(nil)
