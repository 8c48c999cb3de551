package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"sigil/internal/document"
	"sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
)

// PostgresStore persists document records in PostgreSQL.
//
// Expected schema (migrations live with the deployment):
//
//	CREATE TABLE documents (
//	    doc_id            TEXT PRIMARY KEY,
//	    doc_key           TEXT NOT NULL,
//	    issuer_id         TEXT NOT NULL,
//	    title             TEXT NOT NULL DEFAULT '',
//	    reason            TEXT NOT NULL DEFAULT '',
//	    meta              JSONB NOT NULL,
//	    content_ref       TEXT NOT NULL,
//	    content_digest    TEXT NOT NULL,
//	    issued_at         BIGINT NOT NULL,
//	    status            TEXT NOT NULL,
//	    signature         BYTEA,
//	    issuer_address    TEXT NOT NULL DEFAULT '',
//	    anchor            JSONB,
//	    revoked_at        BIGINT NOT NULL DEFAULT 0,
//	    revocation_reason TEXT NOT NULL DEFAULT '',
//	    created_at        TIMESTAMPTZ NOT NULL,
//	    updated_at        TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, record document.Record) error {
	meta, err := json.Marshal(record.Meta)
	if err != nil {
		return fmt.Errorf("marshal document meta: %w", err)
	}
	var anchor any
	if record.Anchor != nil {
		anchor, err = json.Marshal(record.Anchor)
		if err != nil {
			return fmt.Errorf("marshal anchor ref: %w", err)
		}
	}

	now := time.Now()
	query := `
		INSERT INTO documents (
			doc_id, doc_key, issuer_id, title, reason, meta,
			content_ref, content_digest, issued_at, status,
			signature, issuer_address, anchor,
			revoked_at, revocation_reason, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = s.db.ExecContext(ctx, query,
		record.DocID.String(), record.DocKey.String(), record.IssuerID,
		record.Title, record.Reason, meta,
		record.ContentRef, record.ContentDigest.String(), record.IssuedAt, string(record.Status),
		record.Signature, record.IssuerAddress.String(), anchor,
		record.RevokedAt, record.RevocationReason, now, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, docID domain.DocID) (document.Record, error) {
	query := `
		SELECT doc_id, doc_key, issuer_id, title, reason, meta,
		       content_ref, content_digest, issued_at, status,
		       signature, issuer_address, anchor,
		       revoked_at, revocation_reason, created_at, updated_at
		FROM documents
		WHERE doc_id = $1
	`
	row := s.db.QueryRowContext(ctx, query, docID.String())
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return document.Record{}, ErrNotFound
		}
		return document.Record{}, fmt.Errorf("find document: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) AttachSignature(ctx context.Context, docID domain.DocID, sig []byte, identity domain.Address) error {
	query := `
		UPDATE documents
		SET signature = $2, issuer_address = $3, updated_at = $4
		WHERE doc_id = $1
	`
	return s.exec(ctx, "attach signature", query, docID.String(), sig, identity.String(), time.Now())
}

func (s *PostgresStore) AttachAnchor(ctx context.Context, docID domain.DocID, anchor document.AnchorRef) error {
	payload, err := json.Marshal(anchor)
	if err != nil {
		return fmt.Errorf("marshal anchor ref: %w", err)
	}
	query := `
		UPDATE documents
		SET anchor = $2, updated_at = $3
		WHERE doc_id = $1
	`
	return s.exec(ctx, "attach anchor", query, docID.String(), payload, time.Now())
}

func (s *PostgresStore) Reissue(ctx context.Context, docID domain.DocID, digest domain.Digest, contentRef, reason string, issuedAt int64) error {
	query := `
		UPDATE documents
		SET content_digest = $2, content_ref = $3, reason = $4, issued_at = $5,
		    signature = NULL, issuer_address = '', anchor = NULL, updated_at = $6
		WHERE doc_id = $1
	`
	return s.exec(ctx, "reissue document", query, docID.String(), digest.String(), contentRef, reason, issuedAt, time.Now())
}

func (s *PostgresStore) Revoke(ctx context.Context, docID domain.DocID, reason string, revokedAt time.Time) error {
	query := `
		UPDATE documents
		SET status = $2, revoked_at = $3, revocation_reason = $4, updated_at = $5
		WHERE doc_id = $1 AND status <> $2
	`
	// Zero rows affected is legal here: revoking an already-revoked record
	// is a no-op. A missing record must still surface, so existence is
	// checked first.
	if _, err := s.FindByID(ctx, docID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, query,
		docID.String(), string(document.StatusRevoked), revokedAt.Unix(), reason, time.Now())
	if err != nil {
		return fmt.Errorf("revoke document: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit, offset int) ([]document.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT doc_id, doc_key, issuer_id, title, reason, meta,
		       content_ref, content_digest, issued_at, status,
		       signature, issuer_address, anchor,
		       revoked_at, revocation_reason, created_at, updated_at
		FROM documents
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var records []document.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *PostgresStore) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (document.Record, error) {
	var (
		record     document.Record
		docID      string
		docKey     string
		digest     string
		status     string
		issuerAddr string
		meta       []byte
		anchor     []byte
		signature  []byte
	)
	err := row.Scan(
		&docID, &docKey, &record.IssuerID, &record.Title, &record.Reason, &meta,
		&record.ContentRef, &digest, &record.IssuedAt, &status,
		&signature, &issuerAddr, &anchor,
		&record.RevokedAt, &record.RevocationReason, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return document.Record{}, err
	}

	record.DocID = domain.DocID(docID)
	record.DocKey = domain.DocKey(docKey)
	record.ContentDigest = domain.Digest(digest)
	record.Status = document.Status(status)
	record.IssuerAddress = domain.Address(issuerAddr)
	record.Signature = signature

	if err := json.Unmarshal(meta, &record.Meta); err != nil {
		return document.Record{}, fmt.Errorf("unmarshal document meta: %w", err)
	}
	if len(anchor) > 0 {
		ref := document.AnchorRef{}
		if err := json.Unmarshal(anchor, &ref); err != nil {
			return document.Record{}, fmt.Errorf("unmarshal anchor ref: %w", err)
		}
		record.Anchor = &ref
	}
	return record, nil
}

var _ Store = (*PostgresStore)(nil)
