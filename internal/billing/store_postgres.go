package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chefmate/pkg/platform/sentinel"
)

// PostgresEntitlementStore implements EntitlementStore on the entitlements
// table. Patches run in a transaction with a row lock so concurrent events
// for the same user serialize; the merge itself is the shared Apply function.
type PostgresEntitlementStore struct {
	db *sql.DB
}

func NewPostgresEntitlementStore(db *sql.DB) *PostgresEntitlementStore {
	return &PostgresEntitlementStore{db: db}
}

const entitlementColumns = `user_id, premium, premium_since, premium_until,
	stripe_customer_id, last_subscription_id, cancel_pending, cancel_at, updated_at`

func (s *PostgresEntitlementStore) Get(ctx context.Context, userID string) (*Entitlement, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entitlementColumns+` FROM entitlements WHERE user_id = $1`, userID)
	return scanEntitlement(row)
}

func (s *PostgresEntitlementStore) ApplyPatch(ctx context.Context, userID string, patch Patch, now time.Time) (*Entitlement, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin entitlement patch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Create-if-absent, then lock the row for the merge.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO entitlements (user_id, updated_at) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO NOTHING`, userID, now); err != nil {
		return nil, fmt.Errorf("ensure entitlement row: %w", err)
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+entitlementColumns+` FROM entitlements WHERE user_id = $1 FOR UPDATE`, userID)
	rec, err := scanEntitlement(row)
	if err != nil {
		return nil, err
	}

	merged := Apply(*rec, patch, now)

	var customerID, subscriptionID any
	if merged.StripeCustomerID != "" {
		customerID = merged.StripeCustomerID
	}
	if merged.LastSubscriptionID != "" {
		subscriptionID = merged.LastSubscriptionID
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE entitlements
		 SET premium = $2, premium_since = $3, premium_until = $4,
		     stripe_customer_id = $5, last_subscription_id = $6,
		     cancel_pending = $7, cancel_at = $8, updated_at = $9
		 WHERE user_id = $1`,
		userID, merged.Premium, merged.PremiumSince, merged.PremiumUntil,
		customerID, subscriptionID, merged.CancelPending, merged.CancelAt, merged.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("update entitlement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit entitlement patch: %w", err)
	}
	return &merged, nil
}

func (s *PostgresEntitlementStore) FindByCustomerID(ctx context.Context, customerID string) (*Entitlement, error) {
	if customerID == "" {
		return nil, sentinel.ErrNotFound
	}

	// The partial unique index makes more than one row impossible, but the
	// query still caps at two and reports ambiguity rather than trusting it.
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entitlementColumns+` FROM entitlements WHERE stripe_customer_id = $1 LIMIT 2`,
		customerID)
	if err != nil {
		return nil, fmt.Errorf("query entitlements by customer: %w", err)
	}
	defer rows.Close()

	var found *Entitlement
	for rows.Next() {
		if found != nil {
			return nil, sentinel.ErrAmbiguous
		}
		rec, err := scanEntitlementRows(rows)
		if err != nil {
			return nil, err
		}
		found = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan entitlements by customer: %w", err)
	}
	if found == nil {
		return nil, sentinel.ErrNotFound
	}
	return found, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntitlement(row *sql.Row) (*Entitlement, error) {
	rec, err := scanEntitlementRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return rec, err
}

func scanEntitlementRows(row rowScanner) (*Entitlement, error) {
	var rec Entitlement
	var customerID, subscriptionID sql.NullString
	if err := row.Scan(
		&rec.UserID, &rec.Premium, &rec.PremiumSince, &rec.PremiumUntil,
		&customerID, &subscriptionID, &rec.CancelPending, &rec.CancelAt, &rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan entitlement: %w", err)
	}
	rec.StripeCustomerID = customerID.String
	rec.LastSubscriptionID = subscriptionID.String
	return &rec, nil
}

// PostgresLedgerStore implements LedgerStore on the webhook_events table.
// Acquire is a conditional insert so the check and the claim are one atomic
// statement; a separate existence check would reopen the duplicate-delivery
// race.
type PostgresLedgerStore struct {
	db *sql.DB
}

func NewPostgresLedgerStore(db *sql.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{db: db}
}

func (s *PostgresLedgerStore) Acquire(ctx context.Context, eventID, eventType string, now time.Time, lockTTL time.Duration) (AcquireResult, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO webhook_events (event_id, event_type, locked_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (event_id) DO NOTHING`,
		eventID, eventType, now)
	if err != nil {
		return AlreadyLocked, fmt.Errorf("insert webhook event lock: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return FreshLock, nil
	}

	var processedAt sql.NullTime
	err = s.db.QueryRowContext(ctx,
		`SELECT processed_at FROM webhook_events WHERE event_id = $1`, eventID,
	).Scan(&processedAt)
	if err != nil {
		return AlreadyLocked, fmt.Errorf("read webhook event lock: %w", err)
	}
	if processedAt.Valid {
		return AlreadyProcessed, nil
	}

	// Reclaim abandoned locks (crashed attempt) with the same atomic
	// conditional-write discipline.
	res, err = s.db.ExecContext(ctx,
		`UPDATE webhook_events SET locked_at = $2
		 WHERE event_id = $1 AND processed_at IS NULL AND locked_at < $3`,
		eventID, now, now.Add(-lockTTL))
	if err != nil {
		return AlreadyLocked, fmt.Errorf("reclaim webhook event lock: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return FreshLock, nil
	}
	return AlreadyLocked, nil
}

func (s *PostgresLedgerStore) MarkProcessed(ctx context.Context, eventID string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE webhook_events SET processed_at = $2
		 WHERE event_id = $1 AND processed_at IS NULL`,
		eventID, now)
	if err != nil {
		return fmt.Errorf("mark webhook event processed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Either unknown id or already finalized; both are harmless here.
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM webhook_events WHERE event_id = $1)`, eventID,
		).Scan(&exists); err == nil && !exists {
			return sentinel.ErrNotFound
		}
	}
	return nil
}
