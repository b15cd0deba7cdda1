// Package notify talks to the messaging platform's bot API: pushing texts,
// replying to webhook events, and linking per-user rich menus.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"chefmate/pkg/platform/sentinel"
)

// Message is one outgoing bot message.
type Message struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextMessage builds a plain text message.
func TextMessage(text string) Message {
	return Message{Type: "text", Text: text}
}

// Client is a minimal bot-API client. All methods wrap transport and 5xx
// failures in sentinel.ErrUnavailable so callers can tell retryable trouble
// from rejected requests.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger
}

func NewClient(baseURL, channelToken string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		token:      channelToken,
		logger:     logger,
	}
}

// Push sends messages to a user outside a reply window.
func (c *Client) Push(ctx context.Context, userID string, messages ...Message) error {
	body := map[string]any{"to": userID, "messages": messages}
	return c.post(ctx, "/v2/bot/message/push", body)
}

// Reply answers an incoming webhook event within its reply window.
func (c *Client) Reply(ctx context.Context, replyToken string, messages ...Message) error {
	body := map[string]any{"replyToken": replyToken, "messages": messages}
	return c.post(ctx, "/v2/bot/message/reply", body)
}

// LinkMenu binds a rich menu to one user.
func (c *Client) LinkMenu(ctx context.Context, userID, menuID string) error {
	path := fmt.Sprintf("/v2/bot/user/%s/richmenu/%s", url.PathEscape(userID), url.PathEscape(menuID))
	return c.post(ctx, path, nil)
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Join(sentinel.ErrUnavailable, fmt.Errorf("messaging api %s: %w", path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	err = fmt.Errorf("messaging api %s: status %d: %s", path, resp.StatusCode, detail)
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return errors.Join(sentinel.ErrUnavailable, err)
	}
	return err
}
