package optimistic_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"stockton/pkg/optimistic"
	"stockton/pkg/protocol"
	"stockton/pkg/reconcile"
)

var t0 = time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)

func newTracker() *optimistic.Tracker {
	return optimistic.NewTracker(
		optimistic.WithClock(func() time.Time { return t0 }),
		optimistic.WithSuffix(func() string { return "abc123" }),
	)
}

func TestBegin_SynthesizesPlaceholder(t *testing.T) {
	t.Parallel()

	tr := newTracker()
	rec := tr.Begin(optimistic.Draft{Content: "hello", AgentID: "ansh", ReplyTo: "42"})

	wantID := "optimistic-" + "1771502400000000000" + "-abc123"
	if rec.LocalID != wantID {
		t.Errorf("LocalID = %q, want %q", rec.LocalID, wantID)
	}
	if !optimistic.IsLocalID(rec.LocalID) {
		t.Error("local id must carry the reserved prefix")
	}
	if rec.State != optimistic.Pending {
		t.Errorf("State = %v, want pending", rec.State)
	}

	id, _ := rec.Row.ID()
	if id != rec.LocalID || rec.Row["message_id"] != rec.LocalID {
		t.Errorf("row ids not set: %v", rec.Row)
	}
	if rec.Row["content"] != "hello" || rec.Row["status"] != "active" || rec.Row["reply_to"] != "42" {
		t.Errorf("unexpected placeholder row: %v", rec.Row)
	}
	if !rec.Row.CreatedAt().Equal(t0) {
		t.Errorf("created_at = %v, want %v", rec.Row.CreatedAt(), t0)
	}
}

func TestNewLocalID(t *testing.T) {
	t.Parallel()

	tr := newTracker()
	if got, want := tr.NewLocalID(), "optimistic-1771502400000000000-abc123"; got != want {
		t.Errorf("NewLocalID = %q, want %q", got, want)
	}
	if tr.Len() != 0 {
		t.Error("NewLocalID must not track a record")
	}
}

func TestBegin_DefaultIDsAreUnique(t *testing.T) {
	t.Parallel()

	tr := optimistic.NewTracker()
	seen := make(map[string]bool)
	for range 100 {
		rec := tr.Begin(optimistic.Draft{Content: "x"})
		if seen[rec.LocalID] {
			t.Fatalf("duplicate local id %s", rec.LocalID)
		}
		seen[rec.LocalID] = true
		parts := strings.Split(strings.TrimPrefix(rec.LocalID, "optimistic-"), "-")
		if len(parts) != 2 || len(parts[1]) != 6 {
			t.Fatalf("malformed local id %q", rec.LocalID)
		}
	}
}

func TestCommit_MergesUnderLocalID(t *testing.T) {
	t.Parallel()

	tr := newTracker()
	rec := tr.Begin(optimistic.Draft{Content: "hello", AgentID: "ansh"})

	row, err := tr.Commit(rec.LocalID, protocol.Row{"id": "srv-1", "content": "hello", "created_at": "2026-02-19T12:00:01Z", "priority": 2})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if id, _ := row.ID(); id != rec.LocalID {
		t.Errorf("committed row id = %q, want local id", id)
	}
	if row["priority"] != 2 || row["status"] != "active" {
		t.Errorf("authoritative fields not merged over placeholder: %v", row)
	}
	if !row.CreatedAt().Equal(t0) {
		t.Error("placeholder created_at should be kept")
	}

	got, ok := tr.Lookup(rec.LocalID)
	if !ok || got.State != optimistic.Confirmed || got.ServerID != "srv-1" {
		t.Errorf("record after commit = %+v", got)
	}

	if _, err := tr.Commit(rec.LocalID, protocol.Row{}); !errors.Is(err, optimistic.ErrAlreadyCommitted) {
		t.Errorf("second commit err = %v, want ErrAlreadyCommitted", err)
	}
}

func TestFail_ReturnsDraftAndForgets(t *testing.T) {
	t.Parallel()

	tr := newTracker()
	rec := tr.Begin(optimistic.Draft{Content: "hello", AgentID: "ansh"})

	draft, err := tr.Fail(rec.LocalID)
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if draft.Content != "hello" {
		t.Errorf("restored content = %q", draft.Content)
	}
	if tr.Len() != 0 {
		t.Error("failed record still tracked")
	}
	if _, err := tr.Fail(rec.LocalID); !errors.Is(err, optimistic.ErrUnknownRecord) {
		t.Errorf("second fail err = %v, want ErrUnknownRecord", err)
	}
	if _, err := tr.Commit("optimistic-nope", nil); !errors.Is(err, optimistic.ErrUnknownRecord) {
		t.Errorf("commit unknown err = %v", err)
	}
}

func TestSettle_ByServerID(t *testing.T) {
	t.Parallel()

	tr := newTracker()
	rec := tr.Begin(optimistic.Draft{Content: "hello", AgentID: "ansh"})
	visible := reconcile.Merge(nil, rec.Row)

	// Pending placeholders survive a refresh that has not seen the write.
	visible = tr.Settle(reconcile.Merge(visible, protocol.Row{"id": "srv-0", "content": "older", "created_at": "2026-02-19T11:00:00Z"}))
	if reconcile.Index(visible, rec.LocalID) < 0 {
		t.Fatal("pending placeholder evicted by refresh")
	}

	committed, err := tr.Commit(rec.LocalID, protocol.Row{"id": "srv-1", "content": "hello"})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	visible = tr.Settle(reconcile.Merge(visible, committed))
	if reconcile.Index(visible, rec.LocalID) < 0 {
		t.Fatal("confirmed placeholder removed before the authoritative row arrived")
	}

	refreshed := reconcile.Merge(visible, protocol.Row{"id": "srv-1", "content": "hello", "agent_id": "ansh", "created_at": "2026-02-19T12:00:01Z"})
	visible = tr.Settle(refreshed)
	if reconcile.Index(visible, rec.LocalID) >= 0 {
		t.Error("placeholder not retired after the authoritative row arrived")
	}
	if len(visible) != 2 {
		t.Errorf("expected 2 rows after settle, got %d", len(visible))
	}
	if tr.Len() != 0 {
		t.Error("settled record still tracked")
	}
}

func TestSettle_ByContentWhenAckHasNoID(t *testing.T) {
	t.Parallel()

	tr := newTracker()
	rec := tr.Begin(optimistic.Draft{Content: "hello", AgentID: "ansh"})
	if _, err := tr.Commit(rec.LocalID, protocol.Row{"ok": true}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	stale := protocol.Row{"id": "srv-old", "content": "hello", "agent_id": "ansh", "created_at": "2026-02-19T10:00:00Z"}
	visible := tr.Settle(reconcile.Merge([]protocol.Row{rec.Row}, stale))
	if reconcile.Index(visible, rec.LocalID) < 0 {
		t.Fatal("an older identical message must not retire the placeholder")
	}

	fresh := protocol.Row{"id": "srv-new", "content": "hello", "agent_id": "ansh", "created_at": "2026-02-19T12:00:00.5Z"}
	visible = tr.Settle(reconcile.Merge(visible, fresh))
	if reconcile.Index(visible, rec.LocalID) >= 0 {
		t.Error("placeholder not retired by matching content")
	}
}

func TestSettle_OneServerRowRetiresOnePlaceholder(t *testing.T) {
	t.Parallel()

	n := 0
	tr := optimistic.NewTracker(
		optimistic.WithClock(func() time.Time { return t0 }),
		optimistic.WithSuffix(func() string { n++; return fmt.Sprintf("s%05d", n) }),
	)
	first := tr.Begin(optimistic.Draft{Content: "ok", AgentID: "ansh"})
	second := tr.Begin(optimistic.Draft{Content: "ok", AgentID: "ansh"})
	for _, rec := range []optimistic.Record{first, second} {
		if _, err := tr.Commit(rec.LocalID, nil); err != nil {
			t.Fatalf("Commit %s: %v", rec.LocalID, err)
		}
	}
	visible := []protocol.Row{first.Row, second.Row}

	one := protocol.Row{"id": "srv-1", "content": "ok", "agent_id": "ansh", "created_at": "2026-02-19T12:00:01Z"}
	visible = tr.Settle(reconcile.Merge(visible, one))
	if len(visible) != 2 {
		t.Fatalf("expected server row plus one placeholder, got %d rows", len(visible))
	}
	if tr.Len() != 1 {
		t.Errorf("tracked = %d, want 1", tr.Len())
	}

	two := protocol.Row{"id": "srv-2", "content": "ok", "agent_id": "ansh", "created_at": "2026-02-19T12:00:02Z"}
	visible = tr.Settle(reconcile.Merge(visible, two))
	for _, r := range visible {
		if id, _ := r.ID(); optimistic.IsLocalID(id) {
			t.Errorf("placeholder %s still visible", id)
		}
	}
	if tr.Len() != 0 {
		t.Errorf("tracked = %d, want 0", tr.Len())
	}
}
