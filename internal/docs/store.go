package docs

import (
	"context"
	"encoding/json"
	"time"
)

// Store persists user documents. Get returns sentinel.ErrNotFound for an
// empty slot; Put is an unconditional upsert (last write wins).
type Store interface {
	Get(ctx context.Context, userID string, docType DocType) (*Document, error)
	Put(ctx context.Context, userID string, docType DocType, body json.RawMessage, now time.Time) (*Document, error)
	Delete(ctx context.Context, userID string, docType DocType) error
}
