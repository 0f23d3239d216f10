// Package chat posts operator messages to the arena and keeps the visible
// message list consistent while a post is in flight.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stockton/pkg/protocol"
)

const service = "Webhook"

// Post is the webhook request body.
type Post struct {
	Message  string  `json:"message"`
	AgentID  string  `json:"agent_id"`
	ReplyTo  *string `json:"reply_to"`
	ThreadID string  `json:"thread_id"`
}

// Sender delivers posts to the chat webhook, which inserts the arena row.
type Sender struct {
	url        string
	httpClient *http.Client
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) SenderOption {
	return func(s *Sender) { s.httpClient = hc }
}

// NewSender returns a sender for webhookURL.
func NewSender(webhookURL string, opts ...SenderOption) (*Sender, error) {
	u := strings.TrimSpace(webhookURL)
	if u == "" {
		return nil, &protocol.ValidationError{Fields: []string{"webhook_url"}}
	}
	s := &Sender{url: u, httpClient: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Send posts p and returns the inserted row. A 2xx with an empty body is
// accepted and yields a nil row.
func (s *Sender) Send(ctx context.Context, p Post) (protocol.Row, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode post: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &protocol.TransportError{Service: "chat webhook", URL: s.url, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &protocol.TransportError{Service: "chat webhook", URL: s.url, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &protocol.APIError{
			Service: service,
			Status:  resp.StatusCode,
			Message: protocol.Truncate(string(data), protocol.ErrorBodyLimit),
		}
	}
	return decodeInserted(data)
}

// decodeInserted accepts an object or a one-element array.
func decodeInserted(data []byte) (protocol.Row, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if data[0] == '[' {
		var rows []protocol.Row
		if err := dec.Decode(&rows); err != nil {
			return nil, fmt.Errorf("decode webhook response: %w", err)
		}
		if len(rows) == 0 {
			return nil, nil
		}
		return rows[0], nil
	}
	var row protocol.Row
	if err := dec.Decode(&row); err != nil {
		return nil, fmt.Errorf("decode webhook response: %w", err)
	}
	return row, nil
}
