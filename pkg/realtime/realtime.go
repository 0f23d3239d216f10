// Package realtime consumes row-change pushes from the backend's Phoenix
// channel endpoint. It implements feed.Subscriber and does not reconnect:
// a dropped socket is logged and the feed falls back to polling.
package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"stockton/pkg/feed"
	"stockton/pkg/protocol"
)

// Phoenix protocol event names.
const (
	eventJoin      = "phx_join"
	eventReply     = "phx_reply"
	eventLeave     = "phx_leave"
	eventHeartbeat = "heartbeat"
	eventChanges   = "postgres_changes"
	topicPhoenix   = "phoenix"
)

// DefaultHeartbeat is the keepalive period expected by the server.
const DefaultHeartbeat = 25 * time.Second

const joinTimeout = 10 * time.Second

// Filter selects which row changes a channel receives.
type Filter struct {
	Event  string `json:"event"`            // INSERT, UPDATE, DELETE or *
	Schema string `json:"schema"`           // defaults to public
	Table  string `json:"table"`            // required
	Filter string `json:"filter,omitempty"` // e.g. "thread_id=eq.stockton-chat"
}

// Endpoint derives the websocket URL from the backend project URL.
func Endpoint(backendURL, apiKey string) (string, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(backendURL), "/"))
	if err != nil {
		return "", fmt.Errorf("parse backend url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("backend url %q must use http or https", backendURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime/v1/websocket"
	q := url.Values{}
	q.Set("apikey", apiKey)
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Subscriber opens one channel per Subscribe call.
type Subscriber struct {
	endpoint   string
	apiKey     string
	channel    string
	filter     Filter
	heartbeat  time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Subscriber.
type Option func(*Subscriber)

// WithLogger sets the logger for socket failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Subscriber) { s.logger = l }
}

// WithHeartbeat overrides DefaultHeartbeat.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Subscriber) { s.heartbeat = d }
}

// WithHTTPClient sets the client used for the websocket handshake.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Subscriber) { s.httpClient = hc }
}

// New returns a subscriber for channel on endpoint (see Endpoint).
func New(endpoint, apiKey, channel string, f Filter, opts ...Option) *Subscriber {
	if f.Schema == "" {
		f.Schema = "public"
	}
	if f.Event == "" {
		f.Event = protocol.ChangeAll
	}
	s := &Subscriber{
		endpoint:  endpoint,
		apiKey:    apiKey,
		channel:   channel,
		filter:    f,
		heartbeat: DefaultHeartbeat,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ feed.Subscriber = (*Subscriber)(nil)

type frame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
	JoinRef string          `json:"join_ref,omitempty"`
}

type joinPayload struct {
	Config      joinConfig `json:"config"`
	AccessToken string     `json:"access_token,omitempty"`
}

type joinConfig struct {
	Broadcast       map[string]any `json:"broadcast"`
	Presence        map[string]any `json:"presence"`
	PostgresChanges []Filter       `json:"postgres_changes"`
}

type replyPayload struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

func (s *Subscriber) topic() string { return "realtime:" + s.channel }

// Subscribe dials, joins the channel and waits for the join to be accepted.
// handler runs on the socket's read goroutine.
func (s *Subscriber) Subscribe(ctx context.Context, handler func(protocol.Change)) (feed.Subscription, error) {
	if s.filter.Table == "" {
		return nil, &protocol.ValidationError{Fields: []string{"table"}}
	}
	conn, _, err := websocket.Dial(ctx, s.endpoint, &websocket.DialOptions{HTTPClient: s.httpClient})
	if err != nil {
		return nil, &protocol.TransportError{Service: "realtime", URL: redact(s.endpoint), Err: err}
	}
	conn.SetReadLimit(1 << 20)

	if err := s.join(ctx, conn); err != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "join failed")
		return nil, err
	}

	subCtx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		conn:   conn,
		cancel: cancel,
		topic:  s.topic(),
		done:   make(chan struct{}),
	}
	sub.ref.Store(1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.heartbeatLoop(subCtx, sub)
	}()
	go func() {
		defer wg.Done()
		s.readLoop(subCtx, sub, handler)
	}()
	go func() {
		wg.Wait()
		close(sub.done)
	}()
	// Tie the subscription to the caller's context as well as Close.
	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-subCtx.Done():
		}
	}()
	return sub, nil
}

func (s *Subscriber) join(ctx context.Context, conn *websocket.Conn) error {
	payload, err := json.Marshal(joinPayload{
		Config: joinConfig{
			Broadcast:       map[string]any{"self": false},
			Presence:        map[string]any{"key": ""},
			PostgresChanges: []Filter{s.filter},
		},
		AccessToken: s.apiKey,
	})
	if err != nil {
		return fmt.Errorf("encode join: %w", err)
	}
	joinCtx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()

	msg := frame{Topic: s.topic(), Event: eventJoin, Payload: payload, Ref: "1", JoinRef: "1"}
	if err := wsjson.Write(joinCtx, conn, msg); err != nil {
		return &protocol.TransportError{Service: "realtime", URL: redact(s.endpoint), Err: err}
	}
	for {
		var in frame
		if err := wsjson.Read(joinCtx, conn, &in); err != nil {
			return &protocol.TransportError{Service: "realtime", URL: redact(s.endpoint), Err: err}
		}
		if in.Event != eventReply || in.Ref != "1" {
			continue
		}
		var reply replyPayload
		if err := json.Unmarshal(in.Payload, &reply); err != nil {
			return fmt.Errorf("decode join reply: %w", err)
		}
		if reply.Status != "ok" {
			return &protocol.APIError{
				Service: "realtime",
				Message: protocol.Truncate(fmt.Sprintf("join %s %s: %s", s.topic(), reply.Status, reply.Response), protocol.ErrorBodyLimit),
			}
		}
		return nil
	}
}

func (s *Subscriber) heartbeatLoop(ctx context.Context, sub *subscription) {
	if s.heartbeat <= 0 {
		return
	}
	t := time.NewTicker(s.heartbeat)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			ref := strconv.FormatInt(sub.ref.Add(1), 10)
			msg := frame{Topic: topicPhoenix, Event: eventHeartbeat, Payload: json.RawMessage(`{}`), Ref: ref}
			if err := wsjson.Write(ctx, sub.conn, msg); err != nil {
				if ctx.Err() == nil {
					s.logger.Warn("realtime heartbeat failed", "channel", s.channel, "error", err)
				}
				return
			}
		}
	}
}

func (s *Subscriber) readLoop(ctx context.Context, sub *subscription, handler func(protocol.Change)) {
	defer sub.cancel()
	for {
		_, data, err := sub.conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				s.logger.Warn("realtime channel dropped", "channel", s.channel, "error", err)
			}
			return
		}
		change, ok, err := DecodeChange(data)
		if err != nil {
			s.logger.Debug("realtime frame skipped", "channel", s.channel, "error", err)
			continue
		}
		if ok {
			handler(change)
		}
	}
}

type subscription struct {
	conn   *websocket.Conn
	cancel context.CancelFunc
	topic  string
	ref    atomic.Int64
	done   chan struct{}
	once   sync.Once
}

// Close leaves the channel and closes the socket. It waits for the read
// goroutine, so no handler call starts after Close returns.
func (s *subscription) Close() error {
	s.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		ref := strconv.FormatInt(s.ref.Add(1), 10)
		_ = wsjson.Write(ctx, s.conn, frame{Topic: s.topic, Event: eventLeave, Payload: json.RawMessage(`{}`), Ref: ref})
		cancel()
		// Close errors only report an already-dead socket.
		_ = s.conn.Close(websocket.StatusNormalClosure, "")
		s.cancel()
		<-s.done
	})
	return nil
}

type changeData struct {
	Type      string       `json:"type"`
	EventType string       `json:"eventType"`
	Table     string       `json:"table"`
	Record    protocol.Row `json:"record"`
	New       protocol.Row `json:"new"`
	OldRecord protocol.Row `json:"old_record"`
	Old       protocol.Row `json:"old"`
}

// DecodeChange extracts a row change from a raw channel frame. ok is false for
// frames that carry no change (replies, presence, system messages).
func DecodeChange(data []byte) (change protocol.Change, ok bool, err error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return protocol.Change{}, false, fmt.Errorf("decode frame: %w", err)
	}
	if f.Event != eventChanges {
		return protocol.Change{}, false, nil
	}
	var p struct {
		Data changeData `json:"data"`
	}
	dec := json.NewDecoder(bytes.NewReader(f.Payload))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return protocol.Change{}, false, fmt.Errorf("decode change: %w", err)
	}
	d := p.Data
	change = protocol.Change{
		Type:      strings.ToUpper(firstNonEmpty(d.Type, d.EventType)),
		Table:     d.Table,
		Record:    d.Record,
		OldRecord: d.OldRecord,
	}
	if change.Record == nil {
		change.Record = d.New
	}
	if change.OldRecord == nil {
		change.OldRecord = d.Old
	}
	if change.Type == "" {
		return protocol.Change{}, false, errors.New("change without type")
	}
	return change, true, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// redact drops the query string, which carries the api key.
func redact(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "realtime endpoint"
	}
	u.RawQuery = ""
	return u.String()
}
