// Package workflows lists automations from an n8n instance.
package workflows

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"stockton/pkg/protocol"
)

const service = "n8n"

// ListLimit is the page size requested from the workflows endpoint.
const ListLimit = 250

// Config identifies an n8n instance.
type Config struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
}

// Validate reports a missing URL or key.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.BaseURL) == "" {
		missing = append(missing, "base_url")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		missing = append(missing, "api_key")
	}
	if len(missing) > 0 {
		return &protocol.ValidationError{Fields: missing, Message: "Missing n8n URL or API key"}
	}
	return nil
}

var (
	uiSuffixes   = []string{"/home/workflows", "/workflows", "/home", "/signin", "/api/v1"}
	workflowPath = regexp.MustCompile(`/workflow/[^/]+$`)
)

// NormalizeBaseURL reduces a pasted n8n address to the instance root. Editor
// paths such as /home/workflows or /workflow/<id> and a trailing /api/v1 are
// stripped so the API path can be appended.
func NormalizeBaseURL(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", &protocol.ValidationError{Fields: []string{"base_url"}, Message: "n8n url cannot be empty"}
	}
	u, err := url.Parse(value)
	if err != nil {
		return "", &protocol.ValidationError{Fields: []string{"base_url"}, Message: fmt.Sprintf("invalid n8n url: %v", err)}
	}
	if u.Scheme == "" || u.Host == "" {
		return "", &protocol.ValidationError{Fields: []string{"base_url"}, Message: "n8n url must include scheme (https://)"}
	}
	u.RawQuery, u.Fragment = "", ""

	path := strings.TrimRight(u.Path, "/")
	for {
		before := path
		path = workflowPath.ReplaceAllString(path, "")
		for _, suffix := range uiSuffixes {
			path = strings.TrimSuffix(path, suffix)
		}
		path = strings.TrimRight(path, "/")
		if path == before {
			break
		}
	}
	u.Path, u.RawPath = path, ""
	return u.String(), nil
}

// EditorURL links to a workflow in the n8n editor.
func EditorURL(baseURL, id string) string {
	return strings.TrimRight(baseURL, "/") + "/workflow/" + url.PathEscape(id)
}

// Client reads workflows from one instance.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient validates cfg and normalizes its base URL.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := NormalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		cfg:        Config{BaseURL: base, APIKey: strings.TrimSpace(cfg.APIKey)},
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized instance URL.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// List fetches every workflow the key can see.
func (c *Client) List(ctx context.Context) ([]protocol.Workflow, error) {
	endpoint := fmt.Sprintf("%s/api/v1/workflows?limit=%d", c.cfg.BaseURL, ListLimit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-N8N-API-KEY", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &protocol.TransportError{Service: service, URL: c.cfg.BaseURL, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &protocol.TransportError{Service: service, URL: c.cfg.BaseURL, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &protocol.APIError{
			Service: service + " API",
			Status:  resp.StatusCode,
			Message: protocol.Truncate(string(data), protocol.ErrorBodyLimit),
		}
	}
	return decodeList(data)
}

// decodeList accepts {"data": [...]} or a bare array; anything else is empty.
func decodeList(data []byte) ([]protocol.Workflow, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []protocol.Workflow{}, nil
	}
	if data[0] == '[' {
		var list []protocol.Workflow
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decode workflows: %w", err)
		}
		return list, nil
	}
	var wrapped struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decode workflows: %w", err)
	}
	inner := bytes.TrimSpace(wrapped.Data)
	if len(inner) == 0 || inner[0] != '[' {
		return []protocol.Workflow{}, nil
	}
	var list []protocol.Workflow
	if err := json.Unmarshal(inner, &list); err != nil {
		return nil, fmt.Errorf("decode workflows: %w", err)
	}
	return list, nil
}

// Filter keeps workflows whose name or id contains query, ignoring case. A
// blank query returns list unchanged.
func Filter(list []protocol.Workflow, query string) []protocol.Workflow {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return list
	}
	out := make([]protocol.Workflow, 0, len(list))
	for _, wf := range list {
		if strings.Contains(strings.ToLower(wf.Name), q) || strings.Contains(strings.ToLower(wf.ID.String()), q) {
			out = append(out, wf)
		}
	}
	return out
}

// ActiveCount counts active workflows.
func ActiveCount(list []protocol.Workflow) int {
	n := 0
	for _, wf := range list {
		if wf.Active {
			n++
		}
	}
	return n
}
