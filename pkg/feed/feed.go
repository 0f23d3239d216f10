// Package feed keeps one visible row list fresh from three independent
// triggers: full re-fetches (mount, timer, focus, manual), realtime pushes, and
// optimistic local writes. Every trigger goes through reconcile.Merge; no
// trigger replaces the list wholesale. With Options.Prune a refresh also drops
// rows the backend no longer returns.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"stockton/pkg/optimistic"
	"stockton/pkg/protocol"
	"stockton/pkg/reconcile"
)

// Fetcher returns the authoritative full list.
type Fetcher func(ctx context.Context) ([]protocol.Row, error)

// Subscription is a live push channel.
type Subscription interface {
	Close() error
}

// Subscriber opens push channels. Implementations own reconnection; the
// coordinator never retries a failed Subscribe.
type Subscriber interface {
	Subscribe(ctx context.Context, handler func(protocol.Change)) (Subscription, error)
}

// Options configures a Coordinator.
type Options struct {
	// Name labels log records, e.g. the table name.
	Name       string
	Fetch      Fetcher
	Subscriber Subscriber
	// Interval between timer refreshes. Zero means protocol.DefaultPollInterval;
	// negative disables the timer.
	Interval time.Duration
	// ReloadOnPush re-fetches on every push instead of merging the pushed row.
	ReloadOnPush bool
	// Prune removes rows that were visible when a refresh began and are absent
	// from its result. Rows that arrive during the fetch and local
	// placeholders are kept.
	Prune   bool
	Tracker *optimistic.Tracker
	Logger  *slog.Logger
}

// Coordinator owns the visible list for one entity family.
type Coordinator struct {
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	rows    []protocol.Row
	closed  bool
	started bool
	sub     Subscription
	ctx     context.Context
	cancel  context.CancelFunc

	updates chan []protocol.Row
	wg      sync.WaitGroup
}

// New creates a coordinator. Call Start to begin loading.
func New(opts Options) *Coordinator {
	if opts.Interval == 0 {
		opts.Interval = protocol.DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Name != "" {
		logger = logger.With("feed", opts.Name)
	}
	return &Coordinator{
		opts:    opts,
		logger:  logger,
		updates: make(chan []protocol.Row, 1),
	}
}

// Start performs the initial load, opens the push subscription and starts the
// refresh timer. A failed initial load or subscription is logged and does not
// stop the timer.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("start feed %s: %w", c.opts.Name, protocol.ErrClosed)
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	runCtx, cancel := context.WithCancel(ctx)
	c.ctx, c.cancel = runCtx, cancel
	c.mu.Unlock()

	_ = c.Refresh(runCtx)

	if c.opts.Subscriber != nil {
		sub, err := c.opts.Subscriber.Subscribe(runCtx, c.Push)
		if err != nil {
			c.logger.Warn("subscribe failed; continuing with polling only", "error", err)
		} else {
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				_ = sub.Close()
			} else {
				c.sub = sub
				c.mu.Unlock()
			}
		}
	}

	if c.opts.Interval > 0 {
		c.mu.Lock()
		if !c.closed {
			c.wg.Add(1)
			go c.loop(runCtx)
		}
		c.mu.Unlock()
	}
	return nil
}

func (c *Coordinator) loop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.Refresh(ctx)
		}
	}
}

// Refresh re-fetches the authoritative list and merges it into the visible
// list. On failure the visible list is left untouched and the error is logged
// and returned.
func (c *Coordinator) Refresh(ctx context.Context) error {
	if c.opts.Fetch == nil {
		return nil
	}
	var before map[string]bool
	if c.opts.Prune {
		before = c.visibleIDs()
	}
	rows, err := c.opts.Fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Error("refresh failed", "error", err)
		}
		return fmt.Errorf("refresh %s: %w", c.opts.Name, err)
	}
	c.Apply(func(cur []protocol.Row) []protocol.Row {
		merged := reconcile.Merge(cur, rows...)
		if before != nil {
			merged = prune(merged, before, rows)
		}
		return merged
	})
	return nil
}

func (c *Coordinator) visibleIDs() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]bool, len(c.rows))
	for _, r := range c.rows {
		if id, ok := r.ID(); ok {
			out[id] = true
		}
	}
	return out
}

// prune drops rows listed in before that fetched no longer contains.
func prune(rows []protocol.Row, before map[string]bool, fetched []protocol.Row) []protocol.Row {
	seen := make(map[string]bool, len(fetched))
	for _, r := range fetched {
		if id, ok := r.ID(); ok {
			seen[id] = true
		}
	}
	out := rows[:0:0]
	for _, r := range rows {
		id, ok := r.ID()
		if ok && before[id] && !seen[id] && !optimistic.IsLocalID(id) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Push folds a realtime change into the visible list.
func (c *Coordinator) Push(change protocol.Change) {
	if c.opts.ReloadOnPush {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || c.ctx == nil {
			return
		}
		ctx := c.ctx
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			_ = c.Refresh(ctx)
		}()
		return
	}
	c.Apply(func(cur []protocol.Row) []protocol.Row {
		return reconcile.Apply(cur, change)
	})
}

// Apply atomically replaces the visible list with fn(current). Results are
// applied in the order calls complete. After Close, Apply is a no-op.
func (c *Coordinator) Apply(fn func([]protocol.Row) []protocol.Row) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	next := fn(c.rows)
	if c.opts.Tracker != nil {
		next = c.opts.Tracker.Settle(next)
	}
	c.rows = next
	c.publish(cloneRows(next))
	c.mu.Unlock()
}

// publish hands the latest snapshot to Updates, replacing an unread one.
// Called with c.mu held so snapshots are published in apply order.
func (c *Coordinator) publish(rows []protocol.Row) {
	for {
		select {
		case c.updates <- rows:
			return
		default:
		}
		select {
		case <-c.updates:
		default:
		}
	}
}

// Snapshot returns a copy of the visible list.
func (c *Coordinator) Snapshot() []protocol.Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneRows(c.rows)
}

// Updates delivers the visible list after every change. Unread snapshots are
// replaced by newer ones, so a slow reader only sees the latest state.
func (c *Coordinator) Updates() <-chan []protocol.Row {
	return c.updates
}

// Close stops the timer, releases the subscription and waits for in-flight
// callbacks. No state changes after Close returns.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sub := c.sub
	c.sub = nil
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if sub != nil {
		if cerr := sub.Close(); cerr != nil {
			err = fmt.Errorf("close subscription %s: %w", c.opts.Name, cerr)
		}
	}
	c.wg.Wait()
	return err
}

func cloneRows(rows []protocol.Row) []protocol.Row {
	out := make([]protocol.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
