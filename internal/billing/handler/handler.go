// Package handler wires the billing endpoints: the webhook receivers and the
// entitlement projection read.
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"chefmate/internal/billing"
	dErrors "chefmate/pkg/domain-errors"
	"chefmate/pkg/platform/httputil"
	"chefmate/pkg/requestcontext"
)

const webhookBodyLimit = 1 << 20 // 1MiB

// Service defines the billing operations the HTTP layer needs.
type Service interface {
	ProcessEvent(ctx context.Context, ev billing.Event) error
	Entitlement(ctx context.Context, userID string) (billing.EntitlementView, error)
}

// Handler wires billing endpoints to the billing service.
type Handler struct {
	service Service
	logger  *slog.Logger
	live    billing.Channel
	test    billing.Channel
}

// New constructs a billing handler. The live and test channels share one
// receiver implementation; only the verification secret differs.
func New(service Service, logger *slog.Logger, live, test billing.Channel) *Handler {
	return &Handler{service: service, logger: logger, live: live, test: test}
}

// Register mounts billing endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/billing/webhook", h.HandleWebhook(h.live))
	r.Post("/billing/webhook/test", h.HandleWebhook(h.test))
	r.Get("/users/{userID}/entitlement", h.HandleEntitlement)
}

// HandleWebhook is the webhook receiver for one channel. Order is fixed:
// read raw body, verify signature, ack 200, then run the reconciliation
// pipeline. The early ack stops sender retries-on-timeout; correctness under
// redelivery rests entirely on the ledger gate, not on response timing.
func (h *Handler) HandleWebhook(ch billing.Channel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := requestcontext.RequestID(ctx)

		r.Body = http.MaxBytesReader(w, r.Body, webhookBodyLimit)
		payload, err := io.ReadAll(r.Body)
		if err != nil {
			h.logger.WarnContext(ctx, "failed to read webhook body",
				"request_id", requestID,
				"channel", ch.Name,
				"error", err,
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "failed to read request body"))
			return
		}

		ev, err := billing.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"), ch)
		if err != nil {
			h.logger.WarnContext(ctx, "webhook signature rejected",
				"request_id", requestID,
				"channel", ch.Name,
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}

		httputil.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		// The ack is out; the client context may cancel as soon as the
		// sender hangs up, so processing runs on a detached context.
		_ = h.service.ProcessEvent(context.WithoutCancel(ctx), ev)
	}
}

// HandleEntitlement handles GET /users/{userID}/entitlement.
func (h *Handler) HandleEntitlement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "user id is required"))
		return
	}

	view, err := h.service.Entitlement(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "entitlement read failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}
