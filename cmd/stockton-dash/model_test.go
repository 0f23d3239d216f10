package main

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"stockton/pkg/copilot"
	"stockton/pkg/protocol"
	"stockton/pkg/schedule"
)

func testModel() Model {
	return newModel(context.Background(), nil, nil, "ansh", time.Second)
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return nm, cmd
}

func TestViewSwitching(t *testing.T) {
	t.Parallel()

	m := testModel()
	m, _ = update(t, m, keyRunes("3"))
	if m.activeView != CronView {
		t.Fatalf("after 3: view = %v, want Cron", m.activeView)
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.activeView != TasksView {
		t.Fatalf("after shift+tab: view = %v, want Tasks", m.activeView)
	}
	m, _ = update(t, m, keyRunes("6"))
	if m.activeView != ChatView || !m.chatInput.Focused() {
		t.Fatalf("chat view should focus the input")
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.activeView != SettingsView || m.chatInput.Focused() {
		t.Fatalf("tab from chat: view = %v, focused = %v", m.activeView, m.chatInput.Focused())
	}
}

func TestQuitIgnoredWhileTyping(t *testing.T) {
	t.Parallel()

	m := testModel()
	m, _ = update(t, m, keyRunes("6"))
	m, _ = update(t, m, keyRunes("q"))
	if got := m.chatInput.Value(); got != "q" {
		t.Fatalf("input = %q, want q", got)
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	_, cmd := update(t, m, keyRunes("q"))
	if cmd == nil {
		t.Fatal("q outside the input should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not return tea.Quit")
	}
}

func TestChatSubmit_FailureRestoresInput(t *testing.T) {
	t.Parallel()

	m := testModel()
	m, _ = update(t, m, keyRunes("6"))
	m.chatInput.SetValue("  hello arena ")

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.chatInput.Value() != "" || !m.sending {
		t.Fatalf("input not cleared while sending: %q sending=%v", m.chatInput.Value(), m.sending)
	}
	if cmd == nil {
		t.Fatal("submit returned no command")
	}
	sent, ok := cmd().(sentMsg)
	if !ok || sent.err == nil {
		t.Fatalf("send without a connection = %#v", sent)
	}

	m, _ = update(t, m, sent)
	if m.sending {
		t.Error("still sending after result")
	}
	if got := m.chatInput.Value(); got != "hello arena" {
		t.Errorf("restored input = %q, want %q", got, "hello arena")
	}
	if m.errs[ChatView] != "Chat is not connected." {
		t.Errorf("banner = %q", m.errs[ChatView])
	}
}

func TestChatSubmit_BlankSendsNothing(t *testing.T) {
	t.Parallel()

	m := testModel()
	m, _ = update(t, m, keyRunes("6"))
	m.chatInput.SetValue("   ")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil || m.sending {
		t.Error("blank input was submitted")
	}
}

func TestChatReplyPrefixesMention(t *testing.T) {
	t.Parallel()

	m := testModel()
	m.messages = []protocol.Message{
		{ID: "1", AgentID: "andrej", Content: "backup done"},
		{ID: "2", AgentID: "ansh", Content: "thanks"},
	}
	m, _ = update(t, m, keyRunes("6"))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	if m.replyTo == nil || m.replyTo.ID != "1" {
		t.Fatalf("reply target = %+v, want message 1", m.replyTo)
	}

	m.chatInput.SetValue("nice")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.replyTo != nil {
		t.Error("reply target kept after submit")
	}
	sent := cmd().(sentMsg)
	if !strings.HasPrefix(sent.restore, "@andrej ") {
		t.Errorf("sent text = %q, want @andrej prefix", sent.restore)
	}
}

func TestCopilotSuggestsAndCreates(t *testing.T) {
	t.Parallel()

	m := testModel()
	m.agents = []protocol.Agent{{ID: "andrej", Name: "Andrej"}, {ID: "ramon", Name: "Ramon"}}
	m, _ = update(t, m, keyRunes("3"))
	m, _ = update(t, m, keyRunes("/"))
	if !m.copilotInput.Focused() {
		t.Fatal("/ did not focus the copilot")
	}
	m.copilotInput.SetValue("Every 2 hours run health check for @andrej and save summary")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.pending == nil {
		t.Fatal("no suggestion")
	}
	if m.pending.Schedule != "0 */2 * * *" || m.pending.Command != protocol.CommandHealthCheck || m.pending.CreatedBy != "andrej" {
		t.Errorf("suggestion = %+v", *m.pending)
	}
	if !strings.Contains(m.View(), schedule.Humanize("0 */2 * * *")) {
		t.Error("suggestion preview not rendered")
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.pending != nil || m.copilotInput.Value() != "" {
		t.Error("create did not clear the suggestion")
	}
	if m.errs[CronView] != "" {
		t.Errorf("unexpected banner %q", m.errs[CronView])
	}
}

func TestCreateJob_InvalidReportsWithoutRequest(t *testing.T) {
	t.Parallel()

	m := testModel()
	m.activeView = CronView
	m.pending = &copilot.Suggestion{Schedule: "*/5 * * * *"}
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("invalid job produced a command")
	}
	if m.errs[CronView] != "Name, cron schedule, and command are required." {
		t.Errorf("banner = %q", m.errs[CronView])
	}
	if m.pending == nil {
		t.Error("invalid suggestion discarded")
	}
}

func TestCronDeleteNeedsConfirmation(t *testing.T) {
	t.Parallel()

	m := testModel()
	m.activeView = CronView
	m.jobs = []protocol.Job{{ID: "7", Name: "Nightly"}}

	m, _ = update(t, m, keyRunes("d"))
	if !m.confirmDelete {
		t.Fatal("d did not ask for confirmation")
	}
	if !strings.Contains(m.View(), `Delete "Nightly"?`) {
		t.Error("confirmation prompt not rendered")
	}
	m, cmd := update(t, m, keyRunes("n"))
	if m.confirmDelete || cmd != nil {
		t.Error("declined delete still pending")
	}
}

func TestAgentFilterCycles(t *testing.T) {
	t.Parallel()

	agents := []protocol.Agent{{ID: "a"}, {ID: "b"}}
	got := []string{}
	cur := "all"
	for range 3 {
		cur = nextAgentFilter(cur, agents)
		got = append(got, cur)
	}
	if strings.Join(got, ",") != "a,b,all" {
		t.Errorf("cycle = %v", got)
	}
}

func TestRowsMsgDecodesAndClampsCursor(t *testing.T) {
	t.Parallel()

	m := testModel()
	m.jobCursor = 4
	m, _ = update(t, m, rowsMsg{kind: jobsFeed, rows: []protocol.Row{
		{"id": "1", "name": "A", "schedule": "0 * * * *", "enabled": true},
		{"id": "2", "name": "B", "schedule": "0 9 * * *", "enabled": false},
	}})
	if len(m.jobs) != 2 {
		t.Fatalf("jobs = %d", len(m.jobs))
	}
	if m.jobCursor != 1 {
		t.Errorf("cursor = %d, want 1", m.jobCursor)
	}
}

func TestRowsMsgSortsJobsAndAgentsByName(t *testing.T) {
	t.Parallel()

	m := testModel()
	m, _ = update(t, m, rowsMsg{kind: jobsFeed, rows: []protocol.Row{
		{"id": "1", "name": "Sync", "created_at": "2026-02-19T09:00:00Z"},
		{"id": "2", "name": "Backup", "created_at": "2026-02-19T10:00:00Z"},
		{"id": "3", "name": "Report", "created_at": "2026-02-19T11:00:00Z"},
	}})
	var names []string
	for _, j := range m.jobs {
		names = append(names, j.Name)
	}
	if got := strings.Join(names, ","); got != "Backup,Report,Sync" {
		t.Errorf("jobs = %s, want name order", got)
	}
	if !strings.Contains(m.renderCron(), "Backup") {
		t.Error("cron view missing job")
	}

	m, _ = update(t, m, rowsMsg{kind: agentsFeed, rows: []protocol.Row{
		{"id": "v", "name": "Viper", "created_at": "2026-02-19T09:00:00Z"},
		{"id": "a", "name": "Andrej", "created_at": "2026-02-19T10:00:00Z"},
	}})
	if m.agents[0].ID != "a" || m.agents[1].ID != "v" {
		t.Errorf("agents = %+v, want name order", m.agents)
	}
}

func TestRowsMsgDecodeFailureKeepsList(t *testing.T) {
	t.Parallel()

	m := testModel()
	m.jobs = []protocol.Job{{ID: "1", Name: "Backup"}}
	m, _ = update(t, m, rowsMsg{kind: jobsFeed, rows: []protocol.Row{
		{"id": "2", "name": "Report", "enabled": "yes"},
	}})
	if len(m.jobs) != 1 || m.jobs[0].Name != "Backup" {
		t.Errorf("jobs = %+v, want the previous list", m.jobs)
	}
}

func TestWorkflowFilter(t *testing.T) {
	t.Parallel()

	m := testModel()
	m.workflowBase = "https://n8n.example.com"
	m.workflows = []protocol.Workflow{{ID: "a1", Name: "CRM Sync", Active: true}, {ID: "b2", Name: "Digest"}}
	m, _ = update(t, m, keyRunes("4"))
	m, _ = update(t, m, keyRunes("/"))
	m, _ = update(t, m, keyRunes("q"))
	if m.workflowQuery != "q" || m.activeView != WorkflowsView {
		t.Fatalf("q should type into the filter, query = %q", m.workflowQuery)
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	m, _ = update(t, m, keyRunes("crm"))
	out := m.renderWorkflows()
	if !strings.Contains(out, "CRM Sync") || strings.Contains(out, "Digest") {
		t.Errorf("filtered view:\n%s", out)
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.filtering || m.workflowQuery != "" {
		t.Error("esc did not clear the filter")
	}
}

func TestErrorsLandOnTheirViews(t *testing.T) {
	t.Parallel()

	m := testModel()
	m, _ = update(t, m, usageMsg{err: &protocol.APIError{Service: "backend", Status: 500, Message: "boom"}})
	m, _ = update(t, m, workflowsMsg{err: &protocol.ValidationError{Message: "Missing n8n URL or API key"}})
	if m.errs[HomeView] != "backend error 500: boom" {
		t.Errorf("home banner = %q", m.errs[HomeView])
	}
	if m.errs[WorkflowsView] != "Missing n8n URL or API key" {
		t.Errorf("workflows banner = %q", m.errs[WorkflowsView])
	}
	if !strings.Contains(m.View(), "backend error 500") {
		t.Error("home view does not show its banner")
	}
}
