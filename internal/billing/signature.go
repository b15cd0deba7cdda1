package billing

import (
	"strings"

	"github.com/stripe/stripe-go/v82/webhook"

	dErrors "chefmate/pkg/domain-errors"
)

// Channel names one webhook ingress (live vs CLI/test). Both run the exact
// same receiver; only the shared secret differs.
type Channel struct {
	Name   string
	Secret string
}

// VerifyWebhook authenticates the raw payload against the channel secret and
// returns the parsed event. It must see the bytes exactly as received: any
// re-encoding before this point invalidates every legitimate signature.
//
// A missing header is rejected before any parsing: it marks a request that
// never came from the payment platform, not a corrupted one.
func VerifyWebhook(payload []byte, sigHeader string, ch Channel) (Event, error) {
	if strings.TrimSpace(sigHeader) == "" {
		return Event{}, dErrors.New(dErrors.CodeSignatureMissing, "signature header is required")
	}

	ev, err := webhook.ConstructEventWithOptions(payload, sigHeader, ch.Secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, dErrors.New(dErrors.CodeSignatureInvalid, "invalid webhook signature")
	}

	return Event{
		ID:      ev.ID,
		Type:    string(ev.Type),
		Channel: ch.Name,
		Raw:     ev.Data.Raw,
	}, nil
}
