// Package backend talks to the hosted PostgREST backend that owns agents,
// tasks, cron jobs, token usage and the chat arena.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stockton/pkg/protocol"
)

const service = "backend"

// Client is a minimal PostgREST client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient constructs a client for the project at baseURL (for example
// https://abc.supabase.co). The anon key is sent both as apikey and as bearer.
func NewClient(baseURL, apiKey string, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, &protocol.ValidationError{Fields: []string{"backend_url"}}
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &protocol.ValidationError{Message: fmt.Sprintf("backend url %q must include scheme and host", baseURL)}
	}
	c := &Client{
		baseURL:    base,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized project URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Query narrows a Select.
type Query struct {
	Columns    string            // select list; "*" when empty
	OrderBy    string            // column to order by; none when empty
	Descending bool              // order direction
	Limit      int               // 0 means no limit
	Eq         map[string]string // column equality filters
}

func (q Query) values() url.Values {
	v := url.Values{}
	cols := q.Columns
	if cols == "" {
		cols = "*"
	}
	v.Set("select", cols)
	if q.OrderBy != "" {
		dir := "asc"
		if q.Descending {
			dir = "desc"
		}
		v.Set("order", q.OrderBy+"."+dir)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	for col, val := range q.Eq {
		v.Set(col, "eq."+val)
	}
	return v
}

// Select reads rows from table.
func (c *Client) Select(ctx context.Context, table string, q Query) ([]protocol.Row, error) {
	var rows []protocol.Row
	if err := c.do(ctx, http.MethodGet, table, q.values(), nil, &rows); err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return rows, nil
}

// Insert creates one row and returns it as stored.
func (c *Client) Insert(ctx context.Context, table string, row any) (protocol.Row, error) {
	var rows []protocol.Row
	if err := c.do(ctx, http.MethodPost, table, nil, row, &rows); err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	return first(rows), nil
}

// Update patches the row with the given id and returns it as stored.
func (c *Client) Update(ctx context.Context, table, id string, fields any) (protocol.Row, error) {
	var rows []protocol.Row
	if err := c.do(ctx, http.MethodPatch, table, idFilter(id), fields, &rows); err != nil {
		return nil, fmt.Errorf("update %s %s: %w", table, id, err)
	}
	return first(rows), nil
}

// Delete removes the row with the given id.
func (c *Client) Delete(ctx context.Context, table, id string) error {
	if err := c.do(ctx, http.MethodDelete, table, idFilter(id), nil, nil); err != nil {
		return fmt.Errorf("delete %s %s: %w", table, id, err)
	}
	return nil
}

func idFilter(id string) url.Values {
	return url.Values{"id": {"eq." + id}}
}

func first(rows []protocol.Row) protocol.Row {
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}

func (c *Client) do(ctx context.Context, method, table string, query url.Values, reqBody, respBody any) error {
	endpoint := c.baseURL + "/rest/v1/" + url.PathEscape(table)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &protocol.TransportError{Service: service, URL: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &protocol.TransportError{Service: service, URL: c.baseURL, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &protocol.APIError{Service: service, Status: resp.StatusCode, Message: errorMessage(data)}
	}
	if respBody == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(respBody); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type errorPayload struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Hint    string `json:"hint"`
}

// errorMessage extracts a readable message from a rejected response body.
func errorMessage(data []byte) string {
	var p errorPayload
	if err := json.Unmarshal(data, &p); err == nil {
		for _, s := range []string{p.Message, p.Error, p.Hint} {
			if s = strings.TrimSpace(s); s != "" {
				return protocol.Truncate(s, protocol.ErrorBodyLimit)
			}
		}
	}
	return protocol.Truncate(strings.TrimSpace(string(data)), protocol.ErrorBodyLimit)
}
