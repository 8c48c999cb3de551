package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sigil/internal/audit"
)

// PostgresStore persists audit events in PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE audit_events (
//	    id            UUID PRIMARY KEY,
//	    action        TEXT NOT NULL,
//	    actor_id      TEXT NOT NULL,
//	    role          TEXT NOT NULL DEFAULT '',
//	    target_doc_id TEXT NOT NULL DEFAULT '',
//	    details       JSONB,
//	    timestamp     TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	var details []byte
	if event.Details != nil {
		var err error
		details, err = json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
	}

	query := `
		INSERT INTO audit_events (id, action, actor_id, role, target_doc_id, details, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID, string(event.Action), event.ActorID, event.Role,
		event.TargetDocID, details, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByActor(ctx context.Context, actorID string, limit, offset int) ([]audit.Event, error) {
	return s.list(ctx, `actor_id = $1`, actorID, limit, offset)
}

func (s *PostgresStore) ListByDoc(ctx context.Context, docID string, limit, offset int) ([]audit.Event, error) {
	return s.list(ctx, `target_doc_id = $1`, docID, limit, offset)
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit, offset int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, action, actor_id, role, target_doc_id, details, timestamp
		FROM audit_events
		ORDER BY timestamp DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *PostgresStore) list(ctx context.Context, where, arg string, limit, offset int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, action, actor_id, role, target_doc_id, details, timestamp
		FROM audit_events
		WHERE ` + where + `
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.db.QueryContext(ctx, query, arg, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			event   audit.Event
			action  string
			details []byte
		)
		if err := rows.Scan(&event.ID, &action, &event.ActorID, &event.Role,
			&event.TargetDocID, &details, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Action = audit.Action(action)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &event.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
