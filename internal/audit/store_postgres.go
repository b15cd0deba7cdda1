package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore implements Store on the billing_audit_outbox table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	var payload any
	if len(entry.Payload) > 0 {
		payload = entry.Payload
	}
	var userID any
	if entry.UserID != "" {
		userID = entry.UserID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO billing_audit_outbox
		     (id, event_id, event_type, channel, user_id, outcome, detail, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.EventID, entry.EventType, entry.Channel, userID,
		entry.Outcome, entry.Detail, payload, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListUnpublished(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event_id, event_type, channel, user_id, outcome, detail, payload, created_at
		 FROM billing_audit_outbox
		 WHERE published_at IS NULL
		 ORDER BY created_at
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unpublished audit entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var channel, userID, detail sql.NullString
		if err := rows.Scan(&e.ID, &e.EventID, &e.EventType, &channel, &userID,
			&e.Outcome, &detail, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Channel = channel.String
		e.UserID = userID.String
		e.Detail = detail.String
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) MarkPublished(ctx context.Context, ids []uuid.UUID, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE billing_audit_outbox SET published_at = $2
		 WHERE id = ANY($1) AND published_at IS NULL`,
		pq.Array(strIDs), now)
	if err != nil {
		return fmt.Errorf("mark audit entries published: %w", err)
	}
	return nil
}
