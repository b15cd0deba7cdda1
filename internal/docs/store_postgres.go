package docs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chefmate/pkg/platform/sentinel"
)

// PostgresStore implements Store on the user_documents table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, userID string, docType DocType) (*Document, error) {
	doc := Document{UserID: userID, Type: docType}
	err := s.db.QueryRowContext(ctx,
		`SELECT body, updated_at FROM user_documents WHERE user_id = $1 AND doc_type = $2`,
		userID, string(docType),
	).Scan(&doc.Body, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

func (s *PostgresStore) Put(ctx context.Context, userID string, docType DocType, body json.RawMessage, now time.Time) (*Document, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_documents (user_id, doc_type, body, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, doc_type)
		 DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
		userID, string(docType), []byte(body), now)
	if err != nil {
		return nil, fmt.Errorf("upsert document: %w", err)
	}
	return &Document{UserID: userID, Type: docType, Body: body, UpdatedAt: now}, nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID string, docType DocType) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_documents WHERE user_id = $1 AND doc_type = $2`,
		userID, string(docType))
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
