package billing

import (
	"context"
	"time"
)

// EntitlementStore persists per-user entitlement records. Implementations
// must provide per-record atomic read-modify-write for ApplyPatch and return
// sentinel.ErrNotFound / sentinel.ErrAmbiguous for the lookup methods.
type EntitlementStore interface {
	// Get returns the record for a user, or sentinel.ErrNotFound.
	Get(ctx context.Context, userID string) (*Entitlement, error)

	// ApplyPatch merges the patch into the user's record atomically, creating
	// the record if it does not exist yet, and returns the resulting state.
	ApplyPatch(ctx context.Context, userID string, patch Patch, now time.Time) (*Entitlement, error)

	// FindByCustomerID is the reverse lookup for the identity resolver.
	// Returns sentinel.ErrNotFound on zero matches and sentinel.ErrAmbiguous
	// when more than one record carries the customer id; it never guesses.
	FindByCustomerID(ctx context.Context, customerID string) (*Entitlement, error)
}

// LedgerStore is the idempotency gate. Acquire must be a single atomic
// conditional write: two concurrent calls for the same unseen event id must
// yield exactly one FreshLock.
type LedgerStore interface {
	// Acquire claims the event id. A lock older than lockTTL with no
	// processed mark is considered abandoned and may be reclaimed.
	Acquire(ctx context.Context, eventID, eventType string, now time.Time, lockTTL time.Duration) (AcquireResult, error)

	// MarkProcessed finalizes the event. After this the id is permanently
	// AlreadyProcessed.
	MarkProcessed(ctx context.Context, eventID string, now time.Time) error
}

// SubscriptionInfo is the slice of a payments-API subscription the resolver
// and transitions need.
type SubscriptionInfo struct {
	ID                string
	CustomerID        string
	Metadata          map[string]string
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
	CancelAt          *time.Time
}

// SubscriptionFetcher retrieves a subscription from the external payments
// API. Implementations should wrap transport failures in
// sentinel.ErrUnavailable so the pipeline can defer instead of dropping.
type SubscriptionFetcher interface {
	FetchSubscription(ctx context.Context, subscriptionID string) (*SubscriptionInfo, error)
}

// MenuSwitcher applies the entitlement side effect on the messaging platform.
// Best effort: failures are logged and audited, never retried inline.
type MenuSwitcher interface {
	SwitchMenu(ctx context.Context, userID string, variant MenuVariant) error
}
