// Package handler wires the messaging-platform webhook endpoint.
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"chefmate/internal/chat"
	dErrors "chefmate/pkg/domain-errors"
	"chefmate/pkg/platform/httputil"
	"chefmate/pkg/requestcontext"
)

const webhookBodyLimit = 1 << 20 // 1MiB

// Service defines the chat operations the HTTP layer needs.
type Service interface {
	HandleEvents(ctx context.Context, payload chat.WebhookPayload)
}

type Handler struct {
	service       Service
	logger        *slog.Logger
	channelSecret string
}

func New(service Service, logger *slog.Logger, channelSecret string) *Handler {
	return &Handler{service: service, logger: logger, channelSecret: channelSecret}
}

// Register mounts the chat webhook on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/chat/webhook", h.HandleWebhook)
}

// HandleWebhook verifies the platform signature over the raw body, acks, and
// processes the batch on a detached context. The platform retries slow or
// non-200 deliveries, so the ack goes out before any completion call.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, webhookBodyLimit)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to read chat webhook body",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "failed to read request body"))
		return
	}

	if err := chat.VerifySignature(body, r.Header.Get("X-Line-Signature"), h.channelSecret); err != nil {
		h.logger.WarnContext(ctx, "chat webhook signature rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	payload, err := chat.ParsePayload(body)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to decode chat webhook payload",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid webhook payload"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	h.service.HandleEvents(context.WithoutCancel(ctx), payload)
}
