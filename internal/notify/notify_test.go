package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chefmate/internal/billing"
	"chefmate/pkg/platform/sentinel"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClientPush(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "token-1", testLogger())
	err := client.Push(context.Background(), "u1", TextMessage("hello"))
	require.NoError(t, err)

	assert.Equal(t, "/v2/bot/message/push", gotPath)
	assert.Equal(t, "Bearer token-1", gotAuth)
	assert.Equal(t, "u1", gotBody["to"])
	messages := gotBody["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].(map[string]any)["text"])
}

func TestClientLinkMenuEscapesPath(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "token-1", testLogger())
	require.NoError(t, client.LinkMenu(context.Background(), "user/1", "menu-1"))
	assert.Equal(t, "/v2/bot/user/user%2F1/richmenu/menu-1", gotPath)
}

func TestClientServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "token-1", testLogger())
	err := client.Push(context.Background(), "u1", TextMessage("hi"))
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestClientRejectionIsNotUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL, "token-1", testLogger())
	err := client.Reply(context.Background(), "rt-1", TextMessage("hi"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, sentinel.ErrUnavailable)
}

type fakeLinker struct {
	userID string
	menuID string
	err    error
}

func (f *fakeLinker) LinkMenu(_ context.Context, userID, menuID string) error {
	f.userID = userID
	f.menuID = menuID
	return f.err
}

func TestSwitcherMapsVariants(t *testing.T) {
	linker := &fakeLinker{}
	s := NewSwitcher(linker, "menu-premium", "menu-regular", testLogger())

	require.NoError(t, s.SwitchMenu(context.Background(), "u1", billing.MenuPremium))
	assert.Equal(t, "menu-premium", linker.menuID)
	assert.Equal(t, "u1", linker.userID)

	require.NoError(t, s.SwitchMenu(context.Background(), "u1", billing.MenuRegular))
	assert.Equal(t, "menu-regular", linker.menuID)

	err := s.SwitchMenu(context.Background(), "u1", billing.MenuVariant("bogus"))
	assert.Error(t, err)
}

func TestSwitcherSkipsWhenUnconfigured(t *testing.T) {
	linker := &fakeLinker{}
	s := NewSwitcher(linker, "", "", testLogger())

	require.NoError(t, s.SwitchMenu(context.Background(), "u1", billing.MenuPremium))
	assert.Empty(t, linker.menuID, "no call when menu ids are not configured")
}
