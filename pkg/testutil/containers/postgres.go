//go:build integration

// Package containers manages throwaway infrastructure for integration tests.
package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// schema holds every table the stores expect. Kept in one place so
// integration suites start from the same shape the deployment migrations
// produce.
const schema = `
CREATE TABLE IF NOT EXISTS documents (
    doc_id            TEXT PRIMARY KEY,
    doc_key           TEXT NOT NULL,
    issuer_id         TEXT NOT NULL,
    title             TEXT NOT NULL,
    reason            TEXT NOT NULL DEFAULT '',
    meta              JSONB NOT NULL,
    content_ref       TEXT NOT NULL DEFAULT '',
    content_digest    TEXT NOT NULL,
    issued_at         BIGINT NOT NULL,
    status            TEXT NOT NULL,
    signature         BYTEA,
    issuer_address    TEXT NOT NULL DEFAULT '',
    anchor            JSONB,
    revoked_at        BIGINT NOT NULL DEFAULT 0,
    revocation_reason TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL,
    updated_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_events (
    id            UUID PRIMARY KEY,
    action        TEXT NOT NULL,
    actor_id      TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT '',
    target_doc_id TEXT NOT NULL DEFAULT '',
    details       JSONB,
    timestamp     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS verification_events (
    id              UUID PRIMARY KEY,
    doc_id          TEXT NOT NULL,
    requester_id    TEXT NOT NULL DEFAULT '',
    verdict         TEXT NOT NULL,
    reasons         TEXT[] NOT NULL DEFAULT '{}',
    hash_match      BOOLEAN NOT NULL,
    issuer_verified BOOLEAN NOT NULL,
    timestamp       TIMESTAMPTZ NOT NULL
);
`

// PostgresContainer wraps a testcontainers PostgreSQL instance with an open
// database handle.
type PostgresContainer struct {
	Container testcontainers.Container
	DB        *sql.DB
	URL       string
}

// NewPostgresContainer starts a PostgreSQL container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("sigil_test"),
		tcpostgres.WithUsername("sigil"),
		tcpostgres.WithPassword("sigil"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("pgx", url)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	// Note: We don't register t.Cleanup here because the container is managed
	// by the singleton Manager and shared across test suites. Ryuk handles
	// cleanup.
	return &PostgresContainer{Container: container, DB: db, URL: url}
}

// TruncateTables empties the given tables between tests.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s", strings.Join(tables, ", ")))
	return err
}
