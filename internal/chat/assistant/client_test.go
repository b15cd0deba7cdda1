package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chefmate/internal/chat"
	"chefmate/pkg/platform/sentinel"
)

func TestCompleteSendsWireFormat(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "Cook a frittata."}},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk-test")
	text, err := client.Complete(context.Background(), chat.CompletionRequest{
		Model:    "gpt-4o-mini",
		System:   "You are a meal assistant.",
		UserText: "dinner ideas?",
	})
	require.NoError(t, err)
	assert.Equal(t, "Cook a frittata.", text)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotBody["model"])
	messages := gotBody["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
	assert.Equal(t, "dinner ideas?", messages[1].(map[string]any)["content"])
}

func TestCompleteServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk-test")
	_, err := client.Complete(context.Background(), chat.CompletionRequest{Model: "m", UserText: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestCompleteRejectionIsNotUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk-test")
	_, err := client.Complete(context.Background(), chat.CompletionRequest{Model: "nope", UserText: "hi"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestCompleteEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk-test")
	_, err := client.Complete(context.Background(), chat.CompletionRequest{Model: "m", UserText: "hi"})
	assert.Error(t, err)
}
