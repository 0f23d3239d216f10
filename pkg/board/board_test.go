package board_test

import (
	"slices"
	"testing"
	"time"

	"stockton/pkg/board"
	"stockton/pkg/protocol"
)

func intp(n int) *int { return &n }

func taskIDs(tasks []protocol.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID.String()
	}
	return out
}

func TestNormalizeStatus(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"  In Progress ":   "in_progress",
		"DONE":             "done",
		"waiting\t on  QA": "waiting_on_qa",
		"":                 "",
	}
	for in, want := range tests {
		if got := board.NormalizeStatus(in); got != want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", in, got, want)
		}
	}
	if got := board.StatusLabel(""); got != "unknown" {
		t.Errorf("StatusLabel(\"\") = %q", got)
	}
	if got := board.StatusLabel("in progress"); got != "in progress" {
		t.Errorf("StatusLabel = %q", got)
	}
}

func TestSplit(t *testing.T) {
	t.Parallel()

	tasks := []protocol.Task{
		{ID: "q-nopri", Status: "pending", UpdatedAt: "2026-02-19T10:00:00Z"},
		{ID: "d-p2", Status: "In Progress", Priority: intp(2)},
		{ID: "c-old", Status: "done", UpdatedAt: "2026-02-17T10:00:00Z"},
		{ID: "q-p1-old", Status: "todo", Priority: intp(1), CreatedAt: "2026-02-18T10:00:00Z"},
		{ID: "d-p1", Status: "active", Priority: intp(1)},
		{ID: "c-new", Status: "Completed", UpdatedAt: "2026-02-19T10:00:00Z"},
		{ID: "q-p1-new", Status: "", Priority: intp(1), CreatedAt: "2026-02-19T10:00:00Z"},
		{ID: "d-hyphen", Status: "in-progress", Priority: intp(3)},
	}
	b := board.Split(tasks)

	if got, want := taskIDs(b.Doing), []string{"d-p1", "d-p2", "d-hyphen"}; !slices.Equal(got, want) {
		t.Errorf("Doing = %v, want %v", got, want)
	}
	if got, want := taskIDs(b.Queued), []string{"q-p1-new", "q-p1-old", "q-nopri"}; !slices.Equal(got, want) {
		t.Errorf("Queued = %v, want %v", got, want)
	}
	if got, want := taskIDs(b.Done), []string{"c-new", "c-old"}; !slices.Equal(got, want) {
		t.Errorf("Done = %v, want %v", got, want)
	}
	if n := len(b.Doing) + len(b.Queued) + len(b.Done); n != len(tasks) {
		t.Errorf("bucketed %d of %d tasks", n, len(tasks))
	}
}

func TestAssignee(t *testing.T) {
	t.Parallel()

	if got := board.Assignee(protocol.Task{Agent: &protocol.AgentRef{Name: "Ramon", Emoji: "🤖"}}); got != "🤖 Ramon" {
		t.Errorf("Assignee = %q", got)
	}
	if got := board.Assignee(protocol.Task{Assignee: "viper"}); got != "viper" {
		t.Errorf("Assignee = %q", got)
	}
}

func TestLoadLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		load float64
		want board.Level
	}{
		{12, board.LevelCritical},
		{9, board.LevelCritical},
		{8.9, board.LevelHigh},
		{7, board.LevelHigh},
		{4, board.LevelMedium},
		{3.99, board.LevelLow},
		{-1, board.LevelLow},
	}
	for _, tt := range tests {
		if got := board.LoadLevel(tt.load); got != tt.want {
			t.Errorf("LoadLevel(%v) = %v, want %v", tt.load, got, tt.want)
		}
	}
	if board.ClampLoad(12) != 10 || board.ClampLoad(-3) != 0 || board.ClampLoad(5.5) != 5.5 {
		t.Error("ClampLoad out of bounds")
	}
}

func TestWorking(t *testing.T) {
	t.Parallel()

	agents := []protocol.Agent{
		{ID: "zed", Name: "Zed", Status: "idle", CurrentTask: "triage"},
		{ID: "amy", Name: "Amy", Status: "active"},
		{ID: "bob", Name: "Bob", Status: "BUSY"},
		{ID: "al", Name: "Al", Status: "active", CurrentTask: "  deploy "},
		{ID: "cy", Name: "Cy", Status: "busy"},
		{ID: "blank", Name: "Blank", Status: "idle", CurrentTask: "   "},
	}
	var ids []string
	for _, a := range board.Working(agents) {
		ids = append(ids, a.ID)
	}
	if want := []string{"bob", "cy", "al", "zed"}; !slices.Equal(ids, want) {
		t.Errorf("Working = %v, want %v", ids, want)
	}
}

func TestSummarizeAgents(t *testing.T) {
	t.Parallel()

	got := board.SummarizeAgents([]protocol.Agent{
		{Status: "active", Load: 9},
		{Status: "Active", Load: 2},
		{Status: "idle", Load: 10},
		{Status: "offline"},
	})
	want := board.AgentSummary{Total: 4, Active: 2, Idle: 1, Overloaded: 2}
	if got != want {
		t.Errorf("SummarizeAgents = %+v, want %+v", got, want)
	}
}

func TestComputeHome(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 2, 19, 23, 30, 0, 0, time.FixedZone("PST", -8*3600))
	usage := []protocol.TokenUsage{
		{TokensInput: 100, TokensOutput: 50, CreatedAt: "2026-02-20T07:00:00Z"},
		{TokensInput: 10, TokensOutput: 5, CreatedAt: "2026-02-20 01:00:00+00"},
		{TokensInput: 999, CreatedAt: "2026-02-19T23:00:00Z"},
	}
	tasks := []protocol.Task{
		{Status: "pending"}, {Status: "in_progress"}, {Status: "completed"}, {Status: "done"}, {Status: "todo"},
	}
	agents := []protocol.Agent{{Status: "active"}, {Status: "busy"}}

	got := board.ComputeHome(now, agents, tasks, usage)
	want := board.HomeStats{TokensToday: 165, TasksPending: 2, TasksDone: 1, ActiveAgents: 1, TotalAgents: 2}
	if got != want {
		t.Errorf("ComputeHome = %+v, want %+v", got, want)
	}
}

func TestJobs(t *testing.T) {
	t.Parallel()

	ramon := "ramon"
	jobs := []protocol.Job{
		{ID: "1", Enabled: true, CreatedBy: &ramon},
		{ID: "2", Enabled: false, CreatedBy: &ramon},
		{ID: "3", Enabled: true},
	}
	if got, want := board.CountJobs(jobs), (board.JobCounts{Total: 3, Active: 2, Disabled: 1}); got != want {
		t.Errorf("CountJobs = %+v, want %+v", got, want)
	}
	if got := board.FilterJobs(jobs, board.AllAgents); len(got) != 3 {
		t.Errorf("FilterJobs(all) = %d jobs", len(got))
	}
	if got := board.FilterJobs(jobs, "ramon"); len(got) != 2 {
		t.Errorf("FilterJobs(ramon) = %d jobs", len(got))
	}
	if got := board.FilterJobs(jobs, "viper"); len(got) != 0 {
		t.Errorf("FilterJobs(viper) = %d jobs", len(got))
	}
	if got := board.DefaultOwner(nil, "ramon"); got != "ramon" {
		t.Errorf("DefaultOwner(nil) = %q", got)
	}
	if got := board.DefaultOwner([]protocol.Agent{{ID: ""}, {ID: "viper"}}, "ramon"); got != "viper" {
		t.Errorf("DefaultOwner = %q", got)
	}
}
