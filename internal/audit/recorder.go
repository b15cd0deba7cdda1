package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"chefmate/internal/billing"
	"chefmate/pkg/requestcontext"
)

// Recorder adapts the outbox store to the billing pipeline's audit sink.
// Strictly best effort: a failed append is logged and dropped, never bubbled
// into event processing.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

func (r *Recorder) Record(ctx context.Context, entry billing.AuditEntry) {
	err := r.store.Append(ctx, Entry{
		ID:        uuid.New(),
		EventID:   entry.EventID,
		EventType: entry.EventType,
		Channel:   entry.Channel,
		UserID:    entry.UserID,
		Outcome:   entry.Outcome,
		Detail:    entry.Detail,
		Payload:   entry.Payload,
		CreatedAt: requestcontext.Now(ctx),
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to append audit entry",
			"event_id", entry.EventID,
			"outcome", entry.Outcome,
			"error", err,
		)
	}
}
