// Package optimistic tracks locally synthesized placeholder rows for writes
// that are still in flight, and retires them once the authoritative row shows
// up through the regular reconciliation path.
package optimistic

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"stockton/pkg/protocol"
	"stockton/pkg/reconcile"
)

// State is the lifecycle stage of an optimistic record.
type State int

const (
	// Pending means the write was submitted and has not been acknowledged.
	Pending State = iota
	// Confirmed means the backend acknowledged the write; the placeholder stays
	// visible until a refresh delivers the authoritative row.
	Confirmed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// settleSkew tolerates clock drift between this host and the backend when a
// placeholder is matched to its authoritative row by content.
const settleSkew = 2 * time.Second

var (
	// ErrUnknownRecord is returned for a local id the tracker does not hold.
	ErrUnknownRecord = errors.New("unknown optimistic record")
	// ErrAlreadyCommitted is returned when a record is committed or failed twice.
	ErrAlreadyCommitted = errors.New("optimistic record already committed")
)

// Draft is what the user submitted.
type Draft struct {
	Content string
	AgentID string
	ReplyTo string
}

// Record is one tracked placeholder.
type Record struct {
	LocalID  string
	ServerID string // authoritative id from the acknowledgement, if any
	State    State
	Draft    Draft
	Row      protocol.Row
	Began    time.Time
}

// Tracker holds in-flight placeholders. Safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	records map[string]*Record
	now     func() time.Time
	suffix  func() string
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithSuffix overrides the random id suffix source.
func WithSuffix(suffix func() string) Option {
	return func(t *Tracker) { t.suffix = suffix }
}

// NewTracker creates an empty tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		records: make(map[string]*Record),
		now:     time.Now,
		suffix:  randomSuffix,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}

// IsLocalID reports whether id was synthesized locally.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, protocol.OptimisticPrefix)
}

// NewLocalID returns a fresh placeholder id stamped with the tracker's clock.
func (t *Tracker) NewLocalID() string {
	return t.localID(t.now())
}

func (t *Tracker) localID(now time.Time) string {
	return fmt.Sprintf("%s%d-%s", protocol.OptimisticPrefix, now.UnixNano(), t.suffix())
}

// Begin synthesizes a placeholder row for draft and starts tracking it. The
// caller merges the returned row into the visible list immediately.
func (t *Tracker) Begin(draft Draft) Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	localID := t.localID(now)

	var replyTo any
	if draft.ReplyTo != "" {
		replyTo = draft.ReplyTo
	}
	row := protocol.Row{
		"id":           localID,
		"message_id":   localID,
		"content":      draft.Content,
		"agent_id":     draft.AgentID,
		"reply_to":     replyTo,
		"message_type": string(protocol.KindChat),
		"status":       "active",
		"created_at":   now.UTC().Format(time.RFC3339Nano),
		"context":      nil,
	}
	rec := &Record{
		LocalID: localID,
		State:   Pending,
		Draft:   draft,
		Row:     row,
		Began:   now,
	}
	t.records[localID] = rec

	out := *rec
	out.Row = row.Clone()
	return out
}

// Commit marks the record acknowledged and returns the row to merge into the
// visible list. The row keeps the local id as its key; the acknowledgement's
// own id, when present and different, is remembered so Settle can retire the
// placeholder once the authoritative row arrives. The placeholder's
// created_at is kept so the row does not jump in the list.
func (t *Tracker) Commit(localID string, authoritative protocol.Row) (protocol.Row, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[localID]
	if !ok {
		return nil, fmt.Errorf("commit %s: %w", localID, ErrUnknownRecord)
	}
	if rec.State != Pending {
		return nil, fmt.Errorf("commit %s: %w", localID, ErrAlreadyCommitted)
	}

	if id, ok := authoritative.ID(); ok && id != localID {
		rec.ServerID = id
	}
	merged := reconcile.Merge([]protocol.Row{rec.Row}, overlay(localID, rec.Row, authoritative))[0]
	rec.Row = merged
	rec.State = Confirmed
	return merged.Clone(), nil
}

// overlay re-keys an acknowledgement onto the placeholder's id.
func overlay(localID string, placeholder, ack protocol.Row) protocol.Row {
	out := ack.Clone()
	if out == nil {
		out = protocol.Row{}
	}
	out["id"] = localID
	if ts, ok := placeholder["created_at"]; ok {
		out["created_at"] = ts
	}
	return out
}

// Fail drops a pending record and returns its draft so the input can be restored.
func (t *Tracker) Fail(localID string) (Draft, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[localID]
	if !ok {
		return Draft{}, fmt.Errorf("fail %s: %w", localID, ErrUnknownRecord)
	}
	if rec.State != Pending {
		return Draft{}, fmt.Errorf("fail %s: %w", localID, ErrAlreadyCommitted)
	}
	delete(t.records, localID)
	return rec.Draft, nil
}

// Settle removes confirmed placeholders that are superseded by authoritative
// rows in rows, and stops tracking them. A placeholder is superseded when its
// server id is present, or, without a known server id, when a server row has
// the same author and content and was created no earlier than the placeholder
// (minus a small skew). Pending placeholders are never removed here.
func (t *Tracker) Settle(rows []protocol.Row) []protocol.Row {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.records) == 0 {
		return rows
	}

	present := make(map[string]bool, len(rows))
	for _, r := range rows {
		if id, ok := r.ID(); ok && !IsLocalID(id) {
			present[id] = true
		}
	}

	out := rows
	consumed := make(map[string]bool)
	for _, rec := range t.records {
		if rec.ServerID != "" {
			consumed[rec.ServerID] = true
		}
	}
	for _, localID := range t.confirmedByAge() {
		rec := t.records[localID]
		if superseded(rec, rows, present, consumed) {
			out = reconcile.Remove(out, localID)
			delete(t.records, localID)
		}
	}
	return out
}

// confirmedByAge lists confirmed records, oldest first, so content matches
// pair placeholders with server rows in submission order.
func (t *Tracker) confirmedByAge() []string {
	ids := make([]string, 0, len(t.records))
	for localID, rec := range t.records {
		if rec.State == Confirmed {
			ids = append(ids, localID)
		}
	}
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Or(t.records[a].Began.Compare(t.records[b].Began), strings.Compare(a, b))
	})
	return ids
}

// superseded reports whether rec's authoritative row is present. A server row
// matched by content is recorded in consumed and cannot settle a second record.
func superseded(rec *Record, rows []protocol.Row, present, consumed map[string]bool) bool {
	if rec.ServerID != "" {
		return present[rec.ServerID]
	}
	floor := rec.Began.Add(-settleSkew)
	for _, r := range rows {
		id, ok := r.ID()
		if !ok || IsLocalID(id) || consumed[id] {
			continue
		}
		if r.String("content") != rec.Draft.Content || r.String("agent_id") != rec.Draft.AgentID {
			continue
		}
		if created := r.CreatedAt(); created.IsZero() || !created.Before(floor) {
			consumed[id] = true
			return true
		}
	}
	return false
}

// Lookup returns a copy of the record for localID.
func (t *Tracker) Lookup(localID string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[localID]
	if !ok {
		return Record{}, false
	}
	out := *rec
	out.Row = rec.Row.Clone()
	return out, true
}

// Len returns the number of tracked placeholders.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}
