package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// ChatSender posts messages to a chat webhook as {"text": "..."}.
type ChatSender struct {
	url    string
	client *http.Client
}

// NewChatSender creates a webhook sender. The caller's context bounds each request.
func NewChatSender(url string) *ChatSender {
	return &ChatSender{url: url, client: &http.Client{}}
}

func (c *ChatSender) Channel() string { return "chat" }

// Send posts msg to the webhook.
func (c *ChatSender) Send(ctx context.Context, msg Message) error {
	text := msg.Body
	if msg.Title != "" {
		text = msg.Title + "\n" + msg.Body
	}
	jsonBody, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("received non-2xx status code: %d", resp.StatusCode)
	}
	return nil
}
