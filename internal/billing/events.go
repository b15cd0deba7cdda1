package billing

import (
	"encoding/json"
	"strings"
	"time"
)

// Event is a verified webhook event. Raw is the event's data object exactly
// as delivered; transitions unmarshal it into the payload structs below.
type Event struct {
	ID      string
	Type    string
	Channel string
	Raw     json.RawMessage
}

// Event types the dispatcher routes. Anything else is a logged no-op.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventInvoicePaid         = "invoice.payment_succeeded"
)

// metadataUserIDKey is the metadata tag carrying the internal user id.
// Checkout sessions and subscriptions created by this backend always set it;
// older subscriptions may not, hence the resolver fallback chain.
const metadataUserIDKey = "user_id"

// checkoutSession is the slice of a checkout.session.completed payload this
// pipeline reads.
type checkoutSession struct {
	ID              string            `json:"id"`
	Customer        string            `json:"customer"`
	Subscription    string            `json:"subscription"`
	ClientReference string            `json:"client_reference_id"`
	Metadata        map[string]string `json:"metadata"`
}

// userID returns the explicit user tag. Checkout is the originating event, so
// the tag is required; there is no fallback.
func (s checkoutSession) userID() string {
	if id := strings.TrimSpace(s.Metadata[metadataUserIDKey]); id != "" {
		return id
	}
	return strings.TrimSpace(s.ClientReference)
}

// subscriptionPayload is the slice of a customer.subscription.* payload this
// pipeline reads.
type subscriptionPayload struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Status            string            `json:"status"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	CancelAt          int64             `json:"cancel_at"`
	CurrentPeriodEnd  int64             `json:"current_period_end"`
	Metadata          map[string]string `json:"metadata"`
	Items             struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

// periodEnd returns the subscription's current period end, preferring the
// top-level field and falling back to the newest item (the field moved to
// items in newer API versions).
func (s subscriptionPayload) periodEnd() *time.Time {
	end := s.CurrentPeriodEnd
	for _, item := range s.Items.Data {
		if item.CurrentPeriodEnd > end {
			end = item.CurrentPeriodEnd
		}
	}
	return unixTime(end)
}

func (s subscriptionPayload) cancelAt() *time.Time {
	return unixTime(s.CancelAt)
}

// invoicePayload is the slice of an invoice.payment_succeeded payload this
// pipeline reads.
type invoicePayload struct {
	ID                  string `json:"id"`
	Customer            string `json:"customer"`
	Subscription        string `json:"subscription"`
	PeriodEnd           int64  `json:"period_end"`
	SubscriptionDetails struct {
		Metadata map[string]string `json:"metadata"`
	} `json:"subscription_details"`
	Lines struct {
		Data []struct {
			Period struct {
				End int64 `json:"end"`
			} `json:"period"`
		} `json:"data"`
	} `json:"lines"`
}

// periodEnd returns the paid period's end, preferring line periods over the
// invoice-level timestamp (which is the billing timestamp, not the coverage
// end, on some API versions).
func (i invoicePayload) periodEnd() *time.Time {
	var end int64
	for _, line := range i.Lines.Data {
		if line.Period.End > end {
			end = line.Period.End
		}
	}
	if end == 0 {
		end = i.PeriodEnd
	}
	return unixTime(end)
}

func (i invoicePayload) metadata() map[string]string {
	return i.SubscriptionDetails.Metadata
}

func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
