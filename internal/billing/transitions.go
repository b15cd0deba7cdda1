package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chefmate/pkg/platform/sentinel"
)

// transitionResult is what a transition hands back to the pipeline: who to
// patch, how, and which menu variant to switch the user to ("" = none).
type transitionResult struct {
	userID string
	patch  Patch
	menu   MenuVariant
}

type transitionFunc func(ctx context.Context, s *Service, ev Event, now time.Time) (*transitionResult, error)

// transitions is the routing table. Event types absent here are a logged
// no-op. Every transition builds a partial-merge patch that is safe to apply
// in any order relative to the other event types and safe to reapply.
var transitions = map[string]transitionFunc{
	EventCheckoutCompleted:   transitionCheckoutCompleted,
	EventSubscriptionUpdated: transitionSubscriptionUpdated,
	EventInvoicePaid:         transitionInvoicePaid,
	EventSubscriptionDeleted: transitionSubscriptionDeleted,
}

// transitionCheckoutCompleted activates premium. The session is the
// originating event, so the user tag must be present; there is no fallback.
// The linked subscription supplies the period end when reachable, otherwise
// the activation proceeds with no expiry and a later invoice event fills it.
func transitionCheckoutCompleted(ctx context.Context, s *Service, ev Event, now time.Time) (*transitionResult, error) {
	var session checkoutSession
	if err := json.Unmarshal(ev.Raw, &session); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}

	userID := session.userID()
	if userID == "" {
		return nil, fmt.Errorf("checkout session %s: %w", session.ID, ErrIdentityNotFound)
	}

	var premiumUntil *time.Time
	if session.Subscription != "" && s.payments != nil {
		sub, err := s.payments.FetchSubscription(ctx, session.Subscription)
		if err != nil {
			s.logger.WarnContext(ctx, "period-end lookup failed, activating without expiry",
				"event_id", ev.ID,
				"subscription_id", session.Subscription,
				"error", err,
			)
		} else {
			premiumUntil = sub.CurrentPeriodEnd
		}
	}

	premium := true
	patch := Patch{
		Premium:           &premium,
		PremiumSince:      &now,
		PremiumUntil:      premiumUntil,
		ClearCancellation: true,
	}
	if session.Customer != "" {
		patch.StripeCustomerID = &session.Customer
	}
	if session.Subscription != "" {
		patch.LastSubscriptionID = &session.Subscription
	}

	return &transitionResult{userID: userID, patch: patch, menu: MenuPremium}, nil
}

func transitionSubscriptionUpdated(ctx context.Context, s *Service, ev Event, now time.Time) (*transitionResult, error) {
	var sub subscriptionPayload
	if err := json.Unmarshal(ev.Raw, &sub); err != nil {
		return nil, fmt.Errorf("decode subscription: %w", err)
	}

	// The subscription object is inlined, so its metadata is step one of the
	// chain and no API fetch is needed.
	userID, err := s.resolver.Resolve(ctx, resolveInput{
		Metadata:   sub.Metadata,
		CustomerID: sub.Customer,
	})
	if err != nil {
		return nil, err
	}

	patch := Patch{PremiumUntil: sub.periodEnd()}
	if sub.ID != "" {
		patch.LastSubscriptionID = &sub.ID
	}
	if sub.Customer != "" {
		patch.StripeCustomerID = &sub.Customer
	}
	menu := MenuPremium
	if sub.CancelAtPeriodEnd {
		cancelAt := sub.cancelAt()
		if cancelAt == nil {
			cancelAt = sub.periodEnd()
		}
		if cancelAt == nil {
			cancelAt = &now
		}
		patch.ScheduleCancelAt = cancelAt
	} else {
		patch.ClearCancellation = true
	}

	return &transitionResult{userID: userID, patch: patch, menu: menu}, nil
}

func transitionInvoicePaid(ctx context.Context, s *Service, ev Event, now time.Time) (*transitionResult, error) {
	var inv invoicePayload
	if err := json.Unmarshal(ev.Raw, &inv); err != nil {
		return nil, fmt.Errorf("decode invoice: %w", err)
	}

	userID, err := s.resolver.Resolve(ctx, resolveInput{
		Metadata:       inv.metadata(),
		SubscriptionID: inv.Subscription,
		CustomerID:     inv.Customer,
	})
	if err != nil {
		return nil, err
	}

	premium := true
	patch := Patch{
		Premium:      &premium,
		PremiumUntil: inv.periodEnd(),
	}
	if inv.Subscription != "" {
		patch.LastSubscriptionID = &inv.Subscription
	}
	if inv.Customer != "" {
		patch.StripeCustomerID = &inv.Customer
	}

	return &transitionResult{userID: userID, patch: patch, menu: MenuPremium}, nil
}

func transitionSubscriptionDeleted(ctx context.Context, s *Service, ev Event, now time.Time) (*transitionResult, error) {
	var sub subscriptionPayload
	if err := json.Unmarshal(ev.Raw, &sub); err != nil {
		return nil, fmt.Errorf("decode subscription: %w", err)
	}

	userID, err := s.resolver.Resolve(ctx, resolveInput{
		Metadata:   sub.Metadata,
		CustomerID: sub.Customer,
	})
	if err != nil {
		return nil, err
	}

	premium := false
	patch := Patch{
		Premium:           &premium,
		ClearPremiumUntil: true,
		ClearCancellation: true,
	}

	return &transitionResult{userID: userID, patch: patch, menu: MenuRegular}, nil
}

// isTerminalResolveErr reports whether a resolution failure is permanent
// (mark processed-with-warning) rather than transient (leave locked for
// redelivery).
func isTerminalResolveErr(err error) bool {
	if errors.Is(err, ErrIdentityNotFound) || errors.Is(err, ErrAmbiguousIdentity) {
		return true
	}
	return !errors.Is(err, sentinel.ErrUnavailable)
}
