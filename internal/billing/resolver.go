package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"chefmate/pkg/platform/sentinel"
)

// resolveInput is the identity material a payment event carries. Depending on
// event type and on how old the subscription is, the user tag may sit in the
// event's own metadata, in the referenced subscription's metadata, or nowhere.
type resolveInput struct {
	Metadata       map[string]string
	SubscriptionID string
	CustomerID     string
}

// Resolver recovers the internal user id from a payment event through a
// prioritized chain: own metadata tag, fetched subscription metadata tag,
// reverse customer-id lookup. Each step runs only if the previous one yields
// nothing.
type Resolver struct {
	entitlements EntitlementStore
	payments     SubscriptionFetcher
	logger       *slog.Logger
}

func NewResolver(entitlements EntitlementStore, payments SubscriptionFetcher, logger *slog.Logger) *Resolver {
	return &Resolver{entitlements: entitlements, payments: payments, logger: logger}
}

// ErrIdentityNotFound and ErrAmbiguousIdentity classify resolution failures.
// Both are terminal for the event: it is marked processed-with-warning so a
// permanently unresolvable event cannot wedge the ledger.
var (
	ErrIdentityNotFound  = errors.New("identity not found")
	ErrAmbiguousIdentity = errors.New("ambiguous identity")
)

func (r *Resolver) Resolve(ctx context.Context, in resolveInput) (string, error) {
	if id := strings.TrimSpace(in.Metadata[metadataUserIDKey]); id != "" {
		return id, nil
	}

	if in.SubscriptionID != "" && r.payments != nil {
		sub, err := r.payments.FetchSubscription(ctx, in.SubscriptionID)
		if err != nil {
			if errors.Is(err, sentinel.ErrUnavailable) {
				return "", fmt.Errorf("fetch subscription %s: %w", in.SubscriptionID, err)
			}
			// A missing subscription is not transient; fall through to the
			// reverse lookup.
			r.logger.WarnContext(ctx, "subscription lookup failed during identity resolution",
				"subscription_id", in.SubscriptionID,
				"error", err,
			)
		} else if id := strings.TrimSpace(sub.Metadata[metadataUserIDKey]); id != "" {
			return id, nil
		}
	}

	if in.CustomerID != "" {
		rec, err := r.entitlements.FindByCustomerID(ctx, in.CustomerID)
		switch {
		case err == nil:
			return rec.UserID, nil
		case errors.Is(err, sentinel.ErrAmbiguous):
			return "", fmt.Errorf("customer %s: %w", in.CustomerID, ErrAmbiguousIdentity)
		case errors.Is(err, sentinel.ErrNotFound):
			// fall through
		default:
			// Store trouble is transient; let the lock expire and redelivery
			// retry rather than discarding the event.
			return "", errors.Join(sentinel.ErrUnavailable, fmt.Errorf("reverse customer lookup %s: %w", in.CustomerID, err))
		}
	}

	return "", ErrIdentityNotFound
}
