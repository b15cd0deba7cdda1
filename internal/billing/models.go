// Package billing implements the payment-event reconciliation pipeline:
// webhook signature verification, exactly-once event processing through the
// ledger gate, identity resolution, and idempotent entitlement transitions.
package billing

import "time"

// Entitlement is the per-user subscription record. Created implicitly on the
// first billing event, mutated only by event transitions, never deleted.
type Entitlement struct {
	UserID             string
	Premium            bool
	PremiumSince       *time.Time
	PremiumUntil       *time.Time
	StripeCustomerID   string
	LastSubscriptionID string
	CancelPending      *bool
	CancelAt           *time.Time
	UpdatedAt          time.Time
}

// IsEntitled reports whether the record grants premium at the given time.
// Lazy expiry: a set premiumUntil in the past makes the record non-premium
// without any store mutation.
func (e *Entitlement) IsEntitled(now time.Time) bool {
	if e == nil || !e.Premium {
		return false
	}
	if e.PremiumUntil == nil {
		return true
	}
	return now.Before(*e.PremiumUntil)
}

// Patch is a partial-merge mutation of an Entitlement. Nil fields leave the
// record untouched; Clear flags set nullable fields back to null. Applying
// the same patch twice yields the same record.
type Patch struct {
	Premium *bool

	// PremiumSince is applied only when the record has none (set once).
	PremiumSince *time.Time

	PremiumUntil      *time.Time
	ClearPremiumUntil bool

	// StripeCustomerID is applied only when the record has none (set once).
	StripeCustomerID *string

	LastSubscriptionID *string

	// ScheduleCancelAt sets cancelPending=true with the given cancellation
	// time. ClearCancellation nulls both fields.
	ScheduleCancelAt  *time.Time
	ClearCancellation bool
}

// IsZero reports whether the patch would not touch any field.
func (p Patch) IsZero() bool {
	return p.Premium == nil &&
		p.PremiumSince == nil &&
		p.PremiumUntil == nil && !p.ClearPremiumUntil &&
		p.StripeCustomerID == nil &&
		p.LastSubscriptionID == nil &&
		p.ScheduleCancelAt == nil && !p.ClearCancellation
}

// Apply merges the patch into a copy of the record. Pure function; both store
// implementations funnel their read-modify-write through it so the merge
// semantics live in exactly one place.
//
// premiumUntil never moves backwards: an out-of-order older event must not
// overwrite a newer period end. The only way down is ClearPremiumUntil
// (subscription deleted).
func Apply(rec Entitlement, p Patch, now time.Time) Entitlement {
	if p.Premium != nil {
		rec.Premium = *p.Premium
	}
	if p.PremiumSince != nil && rec.PremiumSince == nil {
		t := *p.PremiumSince
		rec.PremiumSince = &t
	}
	if p.ClearPremiumUntil {
		rec.PremiumUntil = nil
	} else if p.PremiumUntil != nil {
		if rec.PremiumUntil == nil || p.PremiumUntil.After(*rec.PremiumUntil) {
			t := *p.PremiumUntil
			rec.PremiumUntil = &t
		}
	}
	if p.StripeCustomerID != nil && rec.StripeCustomerID == "" {
		rec.StripeCustomerID = *p.StripeCustomerID
	}
	if p.LastSubscriptionID != nil {
		rec.LastSubscriptionID = *p.LastSubscriptionID
	}
	if p.ClearCancellation {
		rec.CancelPending = nil
		rec.CancelAt = nil
	} else if p.ScheduleCancelAt != nil {
		pending := true
		rec.CancelPending = &pending
		t := *p.ScheduleCancelAt
		rec.CancelAt = &t
	}
	rec.UpdatedAt = now
	return rec
}

// MenuVariant names the bot menu a user should see.
type MenuVariant string

const (
	MenuPremium MenuVariant = "premium"
	MenuRegular MenuVariant = "regular"
)

// AcquireResult is the outcome of the atomic ledger gate.
type AcquireResult int

const (
	// FreshLock: caller owns the event and must process then MarkProcessed.
	FreshLock AcquireResult = iota
	// AlreadyProcessed: the event completed earlier; skip and report success.
	AlreadyProcessed
	// AlreadyLocked: a concurrent or recently crashed attempt holds the lock.
	AlreadyLocked
)

func (r AcquireResult) String() string {
	switch r {
	case FreshLock:
		return "fresh_lock"
	case AlreadyProcessed:
		return "already_processed"
	case AlreadyLocked:
		return "already_locked"
	default:
		return "unknown"
	}
}

// LedgerRecord is the dedup marker for one external event id.
type LedgerRecord struct {
	EventID     string
	EventType   string
	LockedAt    time.Time
	ProcessedAt *time.Time
}
