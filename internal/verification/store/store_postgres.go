package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"sigil/internal/verification"
	"sigil/pkg/domain"
)

// PostgresStore persists verification events in PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE verification_events (
//	    id              UUID PRIMARY KEY,
//	    doc_id          TEXT NOT NULL,
//	    requester_id    TEXT NOT NULL DEFAULT '',
//	    verdict         TEXT NOT NULL,
//	    reasons         TEXT[] NOT NULL DEFAULT '{}',
//	    hash_match      BOOLEAN NOT NULL,
//	    issuer_verified BOOLEAN NOT NULL,
//	    timestamp       TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event verification.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	query := `
		INSERT INTO verification_events
			(id, doc_id, requester_id, verdict, reasons, hash_match, issuer_verified, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	reasons := make([]string, len(event.Reasons))
	for i, r := range event.Reasons {
		reasons[i] = string(r)
	}
	_, err := s.db.ExecContext(ctx, query,
		event.ID, event.DocID.String(), event.RequesterID, string(event.Verdict),
		encodeTextArray(reasons), event.HashMatch, event.IssuerVerified, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert verification event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByDoc(ctx context.Context, docID domain.DocID, limit int) ([]verification.Event, error) {
	return s.list(ctx, `doc_id = $1`, docID.String(), limit)
}

func (s *PostgresStore) ListByRequester(ctx context.Context, requesterID string, limit int) ([]verification.Event, error) {
	return s.list(ctx, `requester_id = $1`, requesterID, limit)
}

func (s *PostgresStore) list(ctx context.Context, where, arg string, limit int) ([]verification.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, doc_id, requester_id, verdict, reasons, hash_match, issuer_verified, timestamp
		FROM verification_events
		WHERE ` + where + `
		ORDER BY timestamp DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, arg, limit)
	if err != nil {
		return nil, fmt.Errorf("list verification events: %w", err)
	}
	defer rows.Close()

	var events []verification.Event
	for rows.Next() {
		var (
			event   verification.Event
			docID   string
			verdict string
			reasons []byte
		)
		if err := rows.Scan(&event.ID, &docID, &event.RequesterID, &verdict,
			&reasons, &event.HashMatch, &event.IssuerVerified, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scan verification event: %w", err)
		}
		event.DocID = domain.DocID(docID)
		event.Verdict = verification.Verdict(verdict)
		for _, r := range decodeTextArray(reasons) {
			event.Reasons = append(event.Reasons, verification.ReasonCode(r))
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// encodeTextArray renders a postgres text[] literal. Reason codes are a
// closed set of identifiers, so no quoting is needed.
func encodeTextArray(values []string) string {
	out := "{"
	for i, v := range values {
		if i > 0 {
			out += ","
		}
		out += v
	}
	return out + "}"
}

func decodeTextArray(raw []byte) []string {
	s := string(raw)
	if len(s) < 2 || s == "{}" {
		return nil
	}
	s = s[1 : len(s)-1]
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

var _ Store = (*PostgresStore)(nil)
