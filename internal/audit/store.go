package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the outbox persistence layer. Append-only; published entries are
// marked, never deleted.
type Store interface {
	Append(ctx context.Context, entry Entry) error

	// ListUnpublished returns up to limit entries with no published mark,
	// oldest first.
	ListUnpublished(ctx context.Context, limit int) ([]Entry, error)

	MarkPublished(ctx context.Context, ids []uuid.UUID, now time.Time) error
}
