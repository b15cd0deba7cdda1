// Package handler exposes the user-document endpoints. All routes require an
// authenticated user; the user id comes from the request context, never from
// the URL.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"chefmate/internal/docs"
	dErrors "chefmate/pkg/domain-errors"
	"chefmate/pkg/platform/httputil"
	"chefmate/pkg/requestcontext"
)

// Service defines the document operations the HTTP layer needs.
type Service interface {
	Get(ctx context.Context, userID string, docType docs.DocType) (*docs.Document, error)
	Put(ctx context.Context, userID string, docType docs.DocType, body json.RawMessage) (*docs.Document, error)
	Delete(ctx context.Context, userID string, docType docs.DocType) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts document endpoints on the router. The caller wraps them in
// the auth middleware.
func (h *Handler) Register(r chi.Router) {
	r.Get("/users/me/documents/{docType}", h.handleGet)
	r.Put("/users/me/documents/{docType}", h.handlePut)
	r.Delete("/users/me/documents/{docType}", h.handleDelete)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	doc, err := h.service.Get(ctx, userID, docs.DocType(chi.URLParam(r, "docType")))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to read document body",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "failed to read request body"))
		return
	}

	doc, err := h.service.Put(ctx, userID, docs.DocType(chi.URLParam(r, "docType")), body)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	if err := h.service.Delete(ctx, userID, docs.DocType(chi.URLParam(r, "docType"))); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
