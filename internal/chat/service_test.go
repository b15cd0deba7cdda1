package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chefmate/internal/billing"
	"chefmate/internal/docs"
	"chefmate/internal/notify"
	"chefmate/internal/ratelimit"
)

type stubCompleter struct {
	reply string
	err   error
	last  CompletionRequest
	calls int
}

func (c *stubCompleter) Complete(_ context.Context, req CompletionRequest) (string, error) {
	c.calls++
	c.last = req
	return c.reply, c.err
}

type recordingReplier struct {
	tokens   []string
	messages []notify.Message
	err      error
}

func (r *recordingReplier) Reply(_ context.Context, replyToken string, messages ...notify.Message) error {
	r.tokens = append(r.tokens, replyToken)
	r.messages = append(r.messages, messages...)
	return r.err
}

type stubEntitlements struct {
	view billing.EntitlementView
	err  error
}

func (s *stubEntitlements) Entitlement(context.Context, string) (billing.EntitlementView, error) {
	return s.view, s.err
}

func textEvent(userID, text string) WebhookEvent {
	var ev WebhookEvent
	ev.Type = "message"
	ev.ReplyToken = "rt-" + userID
	ev.Source.Type = "user"
	ev.Source.UserID = userID
	ev.Message.ID = "m1"
	ev.Message.Type = "text"
	ev.Message.Text = text
	return ev
}

type chatFixture struct {
	completer    *stubCompleter
	replier      *recordingReplier
	entitlements *stubEntitlements
	docs         *docs.InMemoryStore
	limiter      ratelimit.Limiter
}

func newChatService(f *chatFixture) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(
		f.completer,
		f.replier,
		f.entitlements,
		f.docs,
		f.limiter,
		Models{Regular: "gpt-4o-mini", Premium: "gpt-4o"},
		logger,
		nil,
	)
}

func TestHandleEventsRepliesWithCompletion(t *testing.T) {
	f := &chatFixture{
		completer:    &stubCompleter{reply: "Try a mushroom risotto."},
		replier:      &recordingReplier{},
		entitlements: &stubEntitlements{},
		docs:         docs.NewInMemoryStore(),
	}
	s := newChatService(f)

	s.HandleEvents(context.Background(), WebhookPayload{Events: []WebhookEvent{textEvent("u1", "what's for dinner?")}})

	require.Len(t, f.replier.messages, 1)
	assert.Equal(t, "Try a mushroom risotto.", f.replier.messages[0].Text)
	assert.Equal(t, "rt-u1", f.replier.tokens[0])
	assert.Equal(t, "gpt-4o-mini", f.completer.last.Model)
	assert.Equal(t, "what's for dinner?", f.completer.last.UserText)
}

func TestHandleEventsPremiumGetsRicherModel(t *testing.T) {
	f := &chatFixture{
		completer:    &stubCompleter{reply: "Here is a full recipe..."},
		replier:      &recordingReplier{},
		entitlements: &stubEntitlements{view: billing.EntitlementView{Exists: true, Premium: true}},
		docs:         docs.NewInMemoryStore(),
	}
	s := newChatService(f)

	s.HandleEvents(context.Background(), WebhookPayload{Events: []WebhookEvent{textEvent("u1", "dinner?")}})

	assert.Equal(t, "gpt-4o", f.completer.last.Model)
	assert.Contains(t, f.completer.last.System, "step-by-step")
}

func TestHandleEventsEntitlementFailureFallsBackToRegular(t *testing.T) {
	f := &chatFixture{
		completer:    &stubCompleter{reply: "ok"},
		replier:      &recordingReplier{},
		entitlements: &stubEntitlements{err: errors.New("db down")},
		docs:         docs.NewInMemoryStore(),
	}
	s := newChatService(f)

	s.HandleEvents(context.Background(), WebhookPayload{Events: []WebhookEvent{textEvent("u1", "hi")}})

	assert.Equal(t, "gpt-4o-mini", f.completer.last.Model)
}

func TestHandleEventsIncludesDocumentContext(t *testing.T) {
	store := docs.NewInMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	_, err := store.Put(ctx, "u1", docs.DocProfile, []byte(`{"diet":"vegetarian"}`), now)
	require.NoError(t, err)
	_, err = store.Put(ctx, "u1", docs.DocIngredients, []byte(`["rice","mushrooms"]`), now)
	require.NoError(t, err)

	f := &chatFixture{
		completer:    &stubCompleter{reply: "ok"},
		replier:      &recordingReplier{},
		entitlements: &stubEntitlements{},
		docs:         store,
	}
	s := newChatService(f)

	s.HandleEvents(ctx, WebhookPayload{Events: []WebhookEvent{textEvent("u1", "dinner?")}})

	assert.Contains(t, f.completer.last.System, "vegetarian")
	assert.Contains(t, f.completer.last.System, "mushrooms")
}

func TestHandleEventsSkipsNonTextEvents(t *testing.T) {
	f := &chatFixture{
		completer:    &stubCompleter{reply: "ok"},
		replier:      &recordingReplier{},
		entitlements: &stubEntitlements{},
		docs:         docs.NewInMemoryStore(),
	}
	s := newChatService(f)

	var follow WebhookEvent
	follow.Type = "follow"
	follow.Source.UserID = "u1"

	sticker := textEvent("u2", "")
	sticker.Message.Type = "sticker"

	s.HandleEvents(context.Background(), WebhookPayload{Events: []WebhookEvent{follow, sticker}})

	assert.Zero(t, f.completer.calls)
	assert.Empty(t, f.replier.messages)
}

func TestHandleEventsRateLimited(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Limit{Limit: 1, Window: time.Minute})
	f := &chatFixture{
		completer:    &stubCompleter{reply: "ok"},
		replier:      &recordingReplier{},
		entitlements: &stubEntitlements{},
		docs:         docs.NewInMemoryStore(),
		limiter:      limiter,
	}
	s := newChatService(f)

	payload := WebhookPayload{Events: []WebhookEvent{
		textEvent("u1", "first"),
		textEvent("u1", "second"),
	}}
	s.HandleEvents(context.Background(), payload)

	assert.Equal(t, 1, f.completer.calls, "second message hits the limit")
	require.Len(t, f.replier.messages, 2)
	assert.Equal(t, rateLimitedReply, f.replier.messages[1].Text)
}

func TestHandleEventsCompletionFailureSendsFallback(t *testing.T) {
	f := &chatFixture{
		completer:    &stubCompleter{err: errors.New("provider down")},
		replier:      &recordingReplier{},
		entitlements: &stubEntitlements{},
		docs:         docs.NewInMemoryStore(),
	}
	s := newChatService(f)

	s.HandleEvents(context.Background(), WebhookPayload{Events: []WebhookEvent{textEvent("u1", "hi")}})

	require.Len(t, f.replier.messages, 1)
	assert.Equal(t, fallbackReply, f.replier.messages[0].Text)
}

func TestHandleEventsBlankCompletionSendsFallback(t *testing.T) {
	f := &chatFixture{
		completer:    &stubCompleter{reply: "   "},
		replier:      &recordingReplier{},
		entitlements: &stubEntitlements{},
		docs:         docs.NewInMemoryStore(),
	}
	s := newChatService(f)

	s.HandleEvents(context.Background(), WebhookPayload{Events: []WebhookEvent{textEvent("u1", "hi")}})

	require.Len(t, f.replier.messages, 1)
	assert.Equal(t, fallbackReply, f.replier.messages[0].Text)
}

func TestParsePayload(t *testing.T) {
	body := []byte(`{"destination":"bot-1","events":[{"type":"message","replyToken":"rt","source":{"type":"user","userId":"u1"},"message":{"id":"m1","type":"text","text":"hi"}}]}`)
	payload, err := ParsePayload(body)
	require.NoError(t, err)
	require.Len(t, payload.Events, 1)
	assert.True(t, payload.Events[0].IsTextMessage())
	assert.Equal(t, "hi", payload.Events[0].Message.Text)

	_, err = ParsePayload([]byte(`not json`))
	assert.Error(t, err)

	var noToken WebhookEvent
	noToken.Type = "message"
	noToken.Message.Type = "text"
	noToken.Source.UserID = "u1"
	assert.False(t, noToken.IsTextMessage(), "a text message without a reply token cannot be answered")
}
