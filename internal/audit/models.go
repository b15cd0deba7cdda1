// Package audit keeps the durable trail of billing event decisions. Entries
// land in a Postgres outbox first and a background publisher drains them to
// Kafka, so the webhook pipeline never blocks on the broker.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one recorded pipeline decision. Payload carries the raw event data
// object so deferred and unresolved events can be replayed by hand.
type Entry struct {
	ID          uuid.UUID
	EventID     string
	EventType   string
	Channel     string
	UserID      string
	Outcome     string
	Detail      string
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time
}
