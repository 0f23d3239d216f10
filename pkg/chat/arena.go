package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"stockton/pkg/feed"
	"stockton/pkg/optimistic"
	"stockton/pkg/protocol"
	"stockton/pkg/reconcile"
)

// Operator identifies the human posting from this dashboard.
type Operator struct {
	ID    string
	Emoji string
}

// ArenaOptions configures an Arena.
type ArenaOptions struct {
	Fetch      feed.Fetcher
	Subscriber feed.Subscriber
	Sender     *Sender
	Operator   Operator
	ThreadID   string
	Interval   time.Duration
	Logger     *slog.Logger
	// Tracker overrides the optimistic tracker, mainly for tests.
	Tracker *optimistic.Tracker
}

// Arena is the live chat arena: a message feed plus optimistic sends.
type Arena struct {
	feed     *feed.Coordinator
	tracker  *optimistic.Tracker
	sender   *Sender
	operator Operator
	thread   string
	logger   *slog.Logger
}

// NewArena wires the message feed and tracker. Call Start to begin loading.
func NewArena(opts ArenaOptions) *Arena {
	if opts.Operator.ID == "" {
		opts.Operator.ID = protocol.DefaultOperatorID
	}
	if opts.Operator.Emoji == "" {
		opts.Operator.Emoji = protocol.OperatorEmoji
	}
	if opts.ThreadID == "" {
		opts.ThreadID = protocol.DefaultThreadID
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tracker := opts.Tracker
	if tracker == nil {
		tracker = optimistic.NewTracker()
	}
	return &Arena{
		feed: feed.New(feed.Options{
			Name:       protocol.TableArena,
			Fetch:      opts.Fetch,
			Subscriber: opts.Subscriber,
			Interval:   opts.Interval,
			Tracker:    tracker,
			Logger:     logger,
		}),
		tracker:  tracker,
		sender:   opts.Sender,
		operator: opts.Operator,
		thread:   opts.ThreadID,
		logger:   logger,
	}
}

// Start loads the message list and opens the push channel.
func (a *Arena) Start(ctx context.Context) error { return a.feed.Start(ctx) }

// Refresh re-fetches the message list.
func (a *Arena) Refresh(ctx context.Context) error { return a.feed.Refresh(ctx) }

// Close stops the feed.
func (a *Arena) Close() error { return a.feed.Close() }

// Updates delivers the visible message rows after every change.
func (a *Arena) Updates() <-chan []protocol.Row { return a.feed.Updates() }

// Rows returns the visible message rows.
func (a *Arena) Rows() []protocol.Row { return a.feed.Snapshot() }

// Messages returns the visible list decoded.
func (a *Arena) Messages() ([]protocol.Message, error) {
	return protocol.DecodeRows[protocol.Message](a.feed.Snapshot())
}

// Submit posts input as the operator. The placeholder appears in the list
// before the request is sent. On failure the placeholder is removed and the
// trimmed text is returned so the caller can put it back in the input box.
// Blank input is rejected without a request.
func (a *Arena) Submit(ctx context.Context, input, replyTo string) (restore string, err error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return "", &protocol.ValidationError{Fields: []string{"message"}, Message: "message is empty"}
	}
	if a.sender == nil {
		return text, &protocol.ValidationError{Fields: []string{"webhook_url"}, Message: "chat webhook is not configured"}
	}

	rec := a.tracker.Begin(optimistic.Draft{Content: text, AgentID: a.operator.ID, ReplyTo: replyTo})
	a.feed.Apply(func(cur []protocol.Row) []protocol.Row {
		return reconcile.Merge(cur, rec.Row)
	})

	post := Post{Message: text, AgentID: a.operator.ID, ThreadID: a.thread}
	if replyTo != "" {
		post.ReplyTo = &replyTo
	}
	ack, sendErr := a.sender.Send(ctx, post)
	if sendErr != nil {
		a.logger.Warn("chat send failed", "local_id", rec.LocalID, "error", sendErr)
		if _, err := a.tracker.Fail(rec.LocalID); err != nil {
			a.logger.Error("drop placeholder", "local_id", rec.LocalID, "error", err)
		}
		a.feed.Apply(func(cur []protocol.Row) []protocol.Row {
			return reconcile.Remove(cur, rec.LocalID)
		})
		return text, sendErr
	}

	ack = ack.Clone()
	if ack == nil {
		ack = protocol.Row{}
	}
	ack["agents"] = map[string]any{"name": a.operator.ID, "emoji": a.operator.Emoji}
	row, err := a.tracker.Commit(rec.LocalID, ack)
	if err != nil {
		return "", err
	}
	a.feed.Apply(func(cur []protocol.Row) []protocol.Row {
		return reconcile.Merge(cur, row)
	})
	return "", nil
}
