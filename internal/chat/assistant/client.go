// Package assistant is the completion-provider client. It speaks the
// chat-completions wire format over plain HTTP so the provider can be swapped
// by configuration alone.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"chefmate/internal/chat"
	"chefmate/pkg/platform/sentinel"
)

// Client implements chat.Completer against a chat-completions endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends one completion request and returns the assistant text.
// Transport failures, 429s, and 5xx responses come back wrapped in
// sentinel.ErrUnavailable so callers can degrade gracefully.
func (c *Client) Complete(ctx context.Context, req chat.CompletionRequest) (string, error) {
	wire := completionRequest{
		Model:       req.Model,
		Temperature: 0.7,
		MaxTokens:   req.MaxTokens,
	}
	if req.System != "" {
		wire.Messages = append(wire.Messages, wireMessage{Role: "system", Content: req.System})
	}
	wire.Messages = append(wire.Messages, wireMessage{Role: "user", Content: req.UserText})

	encoded, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", errors.Join(sentinel.ErrUnavailable, fmt.Errorf("completion request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Join(sentinel.ErrUnavailable, fmt.Errorf("read completion response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("completion api: status %d: %s", resp.StatusCode, body)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return "", errors.Join(sentinel.ErrUnavailable, err)
		}
		return "", err
	}

	var decoded completionResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("completion api: %s", decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("completion api: empty choices")
	}
	return decoded.Choices[0].Message.Content, nil
}
