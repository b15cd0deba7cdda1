// Package stripeapi adapts the Stripe API client to the billing
// SubscriptionFetcher interface.
package stripeapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"chefmate/internal/billing"
	"chefmate/pkg/platform/sentinel"
)

// Client fetches subscriptions from Stripe.
type Client struct {
	api *client.API
}

// New builds a Stripe client. Returns nil when no API key is configured, in
// which case the resolver simply skips the fetch step.
func New(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	api := &client.API{}
	api.Init(apiKey, nil)
	return &Client{api: api}
}

// FetchSubscription retrieves a subscription and maps it to the slice the
// pipeline needs. Transport failures come back wrapped in
// sentinel.ErrUnavailable so callers defer instead of dropping the event.
func (c *Client) FetchSubscription(ctx context.Context, subscriptionID string) (*billing.SubscriptionInfo, error) {
	params := &stripe.SubscriptionParams{Params: stripe.Params{Context: ctx}}
	sub, err := c.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("subscription %s: %w", subscriptionID, sentinel.ErrNotFound)
		}
		return nil, errors.Join(sentinel.ErrUnavailable, fmt.Errorf("fetch subscription %s: %w", subscriptionID, err))
	}

	info := &billing.SubscriptionInfo{
		ID:                sub.ID,
		Metadata:          sub.Metadata,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		CurrentPeriodEnd:  periodEnd(sub),
	}
	if sub.Customer != nil {
		info.CustomerID = sub.Customer.ID
	}
	if sub.CancelAt > 0 {
		t := time.Unix(sub.CancelAt, 0).UTC()
		info.CancelAt = &t
	}
	return info, nil
}

// periodEnd takes the latest period end across subscription items (the field
// lives on items since the basil API versions).
func periodEnd(sub *stripe.Subscription) *time.Time {
	if sub.Items == nil {
		return nil
	}
	var end int64
	for _, item := range sub.Items.Data {
		if item != nil && item.CurrentPeriodEnd > end {
			end = item.CurrentPeriodEnd
		}
	}
	if end <= 0 {
		return nil
	}
	t := time.Unix(end, 0).UTC()
	return &t
}
