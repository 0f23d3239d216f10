package protocol_test

import (
	"encoding/json"
	"slices"
	"testing"
	"time"

	"stockton/pkg/protocol"
)

func TestAgentRef_ObjectOrArray(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"object":      `{"name":"Andrej","emoji":"🤖"}`,
		"array":       `[{"name":"Andrej","emoji":"🤖"}]`,
		"extra items": `[{"name":"Andrej","emoji":"🤖"},{"name":"Other","emoji":"x"}]`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			var ref protocol.AgentRef
			if err := json.Unmarshal([]byte(raw), &ref); err != nil {
				t.Fatal(err)
			}
			if ref.Name != "Andrej" || ref.Emoji != "🤖" {
				t.Errorf("ref = %+v", ref)
			}
		})
	}

	var empty protocol.AgentRef
	if err := json.Unmarshal([]byte(`[]`), &empty); err != nil || empty.Name != "" {
		t.Errorf("empty array: %+v, %v", empty, err)
	}
}

func TestMessage_DecodesNumericIDs(t *testing.T) {
	t.Parallel()

	var msgs []protocol.Message
	raw := `[{"id":501,"agent_id":"ansh","content":"hi","reply_to":42,"created_at":"2026-03-04T10:00:00Z","agents":[{"name":"ansh","emoji":"👤"}]},
	         {"id":"optimistic-1-abc","agent_id":"ansh","content":"yo","reply_to":null,"created_at":"2026-03-04T10:00:01Z"}]`
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		t.Fatal(err)
	}
	if msgs[0].ID != "501" || msgs[0].ReplyTo == nil || *msgs[0].ReplyTo != "42" {
		t.Errorf("first = %+v", msgs[0])
	}
	if msgs[0].Agent == nil || msgs[0].Agent.Emoji != "👤" {
		t.Errorf("agent join = %+v", msgs[0].Agent)
	}
	if msgs[0].Optimistic() || !msgs[1].Optimistic() {
		t.Error("Optimistic() misclassified")
	}
	if msgs[1].ReplyTo != nil {
		t.Errorf("null reply_to = %v", *msgs[1].ReplyTo)
	}
}

func TestJob_Owner(t *testing.T) {
	t.Parallel()

	owner := "ramon"
	if got := (protocol.Job{CreatedBy: &owner}).Owner(); got != "ramon" {
		t.Errorf("Owner = %q", got)
	}
	if got := (protocol.Job{}).Owner(); got != "" {
		t.Errorf("nil owner = %q", got)
	}
}

func TestTask_TimestampFallsBackToCreated(t *testing.T) {
	t.Parallel()

	task := protocol.Task{CreatedAt: "2026-03-04T10:00:00Z"}
	if got := task.Timestamp(); !got.Equal(time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("Timestamp = %v", got)
	}
	task.UpdatedAt = "2026-03-05T10:00:00Z"
	if got := task.Timestamp(); got.Day() != 5 {
		t.Errorf("Timestamp = %v, want updated_at", got)
	}
}

func TestWorkflow_Fields(t *testing.T) {
	t.Parallel()

	var wf protocol.Workflow
	raw := `{"id":12,"name":"  ","active":true,"updated_at":"2026-03-04T10:00:00Z","tags":[{"name":"crm"},"ops",{"id":"x"},""]}`
	if err := json.Unmarshal([]byte(raw), &wf); err != nil {
		t.Fatal(err)
	}
	if wf.ID != "12" {
		t.Errorf("ID = %q", wf.ID)
	}
	if wf.DisplayName() != "Unnamed workflow" {
		t.Errorf("DisplayName = %q", wf.DisplayName())
	}
	if got := wf.TagNames(); !slices.Equal(got, []string{"crm", "ops"}) {
		t.Errorf("TagNames = %v", got)
	}
	if wf.LastUpdated().IsZero() {
		t.Error("LastUpdated ignored updated_at")
	}
}

func TestEncodeRow_RoundTripsThroughDecode(t *testing.T) {
	t.Parallel()

	desc := "nightly"
	row, err := protocol.EncodeRow(protocol.Job{ID: "3", Name: "Backup", Schedule: "0 0 */1 * *", Description: &desc, Enabled: true})
	if err != nil {
		t.Fatal(err)
	}
	if id, ok := row.ID(); !ok || id != "3" {
		t.Fatalf("row id = %q, %v", id, ok)
	}
	jobs, err := protocol.DecodeRows[protocol.Job]([]protocol.Row{row})
	if err != nil {
		t.Fatal(err)
	}
	if jobs[0].Name != "Backup" || jobs[0].Description == nil || *jobs[0].Description != "nightly" {
		t.Errorf("decoded = %+v", jobs[0])
	}
}
