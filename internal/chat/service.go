package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chefmate/internal/billing"
	"chefmate/internal/chat/metrics"
	"chefmate/internal/docs"
	"chefmate/internal/notify"
	"chefmate/internal/ratelimit"
	"chefmate/pkg/platform/sentinel"
)

// Handling outcomes for the messages metric.
const (
	outcomeReplied     = "replied"
	outcomeSkipped     = "skipped"
	outcomeRateLimited = "rate_limited"
	outcomeFailed      = "failed"
)

const (
	fallbackReply    = "Sorry, the kitchen is a bit busy right now. Please try again in a moment."
	rateLimitedReply = "You're sending messages very quickly. Give me a few seconds to catch up."
)

// CompletionRequest is what the service hands to the completion provider.
type CompletionRequest struct {
	Model     string
	System    string
	UserText  string
	MaxTokens int
}

// Completer produces one assistant reply.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Replier is the slice of the bot client the service needs.
type Replier interface {
	Reply(ctx context.Context, replyToken string, messages ...notify.Message) error
}

// EntitlementReader projects a user's premium state.
type EntitlementReader interface {
	Entitlement(ctx context.Context, userID string) (billing.EntitlementView, error)
}

// DocReader loads prompt-context documents, satisfied by the docs store. A
// sentinel.ErrNotFound is a normal empty state.
type DocReader interface {
	Get(ctx context.Context, userID string, docType docs.DocType) (*docs.Document, error)
}

// Models selects the completion model per entitlement tier.
type Models struct {
	Regular string
	Premium string
}

// Service turns verified webhook events into assistant replies.
type Service struct {
	completer    Completer
	replier      Replier
	entitlements EntitlementReader
	documents    DocReader
	limiter      ratelimit.Limiter
	models       Models
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// NewService constructs the chat service. documents, entitlements, limiter,
// and metrics may be nil; the service degrades to an untiered, uncontexted
// assistant.
func NewService(
	completer Completer,
	replier Replier,
	entitlements EntitlementReader,
	documents DocReader,
	limiter ratelimit.Limiter,
	models Models,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		completer:    completer,
		replier:      replier,
		entitlements: entitlements,
		documents:    documents,
		limiter:      limiter,
		models:       models,
		logger:       logger,
		metrics:      m,
	}
}

// HandleEvents processes one verified webhook delivery. Events are handled
// independently; a failure on one never blocks the rest.
func (s *Service) HandleEvents(ctx context.Context, payload WebhookPayload) {
	for _, ev := range payload.Events {
		s.handleEvent(ctx, ev)
	}
}

func (s *Service) handleEvent(ctx context.Context, ev WebhookEvent) {
	if !ev.IsTextMessage() {
		s.metrics.ObserveMessage(outcomeSkipped)
		return
	}
	userID := ev.Source.UserID

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, "chat:"+userID)
		if err != nil {
			// Fail open: a broken limiter should not silence the bot.
			s.logger.WarnContext(ctx, "rate limiter unavailable, allowing message",
				"user_id", userID,
				"error", err,
			)
		} else if !allowed {
			s.metrics.ObserveMessage(outcomeRateLimited)
			s.reply(ctx, ev.ReplyToken, rateLimitedReply)
			return
		}
	}

	text, err := s.answer(ctx, userID, ev.Message.Text)
	if err != nil {
		s.metrics.ObserveMessage(outcomeFailed)
		s.logger.ErrorContext(ctx, "assistant reply failed",
			"user_id", userID,
			"message_id", ev.Message.ID,
			"error", err,
		)
		s.reply(ctx, ev.ReplyToken, fallbackReply)
		return
	}

	s.metrics.ObserveMessage(outcomeReplied)
	s.reply(ctx, ev.ReplyToken, text)
}

func (s *Service) answer(ctx context.Context, userID, userText string) (string, error) {
	premium := s.isPremium(ctx, userID)

	model := s.models.Regular
	if premium && s.models.Premium != "" {
		model = s.models.Premium
	}

	req := CompletionRequest{
		Model:    model,
		System:   s.buildSystemPrompt(ctx, userID, premium),
		UserText: userText,
	}

	start := time.Now()
	text, err := s.completer.Complete(ctx, req)
	s.metrics.ObserveCompletion(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("empty completion")
	}
	return text, nil
}

// isPremium errs on the free tier when the projection is unreachable.
func (s *Service) isPremium(ctx context.Context, userID string) bool {
	if s.entitlements == nil {
		return false
	}
	view, err := s.entitlements.Entitlement(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "entitlement lookup failed, treating as regular",
			"user_id", userID,
			"error", err,
		)
		return false
	}
	return view.Premium
}

func (s *Service) buildSystemPrompt(ctx context.Context, userID string, premium bool) string {
	var b strings.Builder
	b.WriteString("You are a helpful meal-planning assistant. Suggest dishes the user can cook, ")
	b.WriteString("favoring ingredients they already have and respecting their dietary profile.")
	if premium {
		b.WriteString(" Provide full step-by-step recipes with quantities and substitutions.")
	} else {
		b.WriteString(" Keep suggestions short; detailed recipes are a premium feature.")
	}

	if s.documents == nil {
		return b.String()
	}
	for _, docType := range []docs.DocType{docs.DocProfile, docs.DocIngredients} {
		doc, err := s.documents.Get(ctx, userID, docType)
		if err != nil {
			if !errors.Is(err, sentinel.ErrNotFound) {
				s.logger.WarnContext(ctx, "prompt context lookup failed",
					"user_id", userID,
					"doc_type", string(docType),
					"error", err,
				)
			}
			continue
		}
		fmt.Fprintf(&b, "\n\nUser %s (JSON):\n%s", docType, doc.Body)
	}
	return b.String()
}

func (s *Service) reply(ctx context.Context, replyToken, text string) {
	if err := s.replier.Reply(ctx, replyToken, notify.TextMessage(text)); err != nil {
		s.logger.ErrorContext(ctx, "failed to send reply", "error", err)
	}
}
