package docs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	dErrors "chefmate/pkg/domain-errors"
	"chefmate/pkg/platform/sentinel"
	"chefmate/pkg/requestcontext"
)

// maxDocumentBytes caps a stored document. Documents feed prompt context, so
// unbounded bodies would also blow up completion requests.
const maxDocumentBytes = 64 << 10

// Service validates and persists user documents.
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

func (s *Service) Get(ctx context.Context, userID string, docType DocType) (*Document, error) {
	if !docType.Valid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown document type")
	}
	doc, err := s.store.Get(ctx, userID, docType)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "document not found")
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "document read failed",
			"user_id", userID,
			"doc_type", string(docType),
			"error", err,
		)
		return nil, dErrors.New(dErrors.CodeInternal, "document read failed")
	}
	return doc, nil
}

func (s *Service) Put(ctx context.Context, userID string, docType DocType, body json.RawMessage) (*Document, error) {
	if !docType.Valid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown document type")
	}
	if len(body) > maxDocumentBytes {
		return nil, dErrors.New(dErrors.CodeBadRequest, "document too large")
	}
	if !json.Valid(body) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "document body must be valid JSON")
	}

	doc, err := s.store.Put(ctx, userID, docType, body, requestcontext.Now(ctx))
	if err != nil {
		s.logger.ErrorContext(ctx, "document write failed",
			"user_id", userID,
			"doc_type", string(docType),
			"error", err,
		)
		return nil, dErrors.New(dErrors.CodeInternal, "document write failed")
	}
	return doc, nil
}

func (s *Service) Delete(ctx context.Context, userID string, docType DocType) error {
	if !docType.Valid() {
		return dErrors.New(dErrors.CodeBadRequest, "unknown document type")
	}
	err := s.store.Delete(ctx, userID, docType)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "document not found")
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "document delete failed",
			"user_id", userID,
			"doc_type", string(docType),
			"error", err,
		)
		return dErrors.New(dErrors.CodeInternal, "document delete failed")
	}
	return nil
}
