package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"stockton/pkg/board"
	"stockton/pkg/chat"
	"stockton/pkg/protocol"
	"stockton/pkg/schedule"
	"stockton/pkg/settings"
	"stockton/pkg/workflows"
)

// doneLimit caps the completed column, newest first.
const doneLimit = 10

// View implements tea.Model.
func (m Model) View() string {
	parts := []string{m.renderTabs(), m.renderStatusBar()}
	if banner := m.errs[m.activeView]; banner != "" {
		parts = append(parts, m.styles.Banner.Render("⚠ "+banner))
	}

	switch m.activeView {
	case TasksView:
		parts = append(parts, m.renderTasks())
	case CronView:
		parts = append(parts, m.renderCron())
	case WorkflowsView:
		parts = append(parts, m.renderWorkflows())
	case AgentsView:
		parts = append(parts, m.renderAgents())
	case ChatView:
		parts = append(parts, m.renderChat())
	case SettingsView:
		parts = append(parts, m.renderSettings())
	default:
		parts = append(parts, m.renderHome())
	}

	if m.showHelp {
		parts = append(parts, renderHelp(m.activeView, m.styles))
	} else if m.status != "" {
		parts = append(parts, m.styles.Muted.Render(m.status))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, viewCount)
	for v := HomeView; v < viewCount; v++ {
		label := fmt.Sprintf("%d %s", int(v)+1, v)
		if v == m.activeView {
			tabs = append(tabs, m.styles.TabOn.Render(label))
		} else {
			tabs = append(tabs, m.styles.TabOff.Render(label))
		}
	}
	return strings.Join(tabs, "  ")
}

// renderStatusBar renders fleet counters shown on every view.
func (m Model) renderStatusBar() string {
	sum := board.SummarizeAgents(m.agents)
	stats := board.ComputeHome(now(), m.agents, m.tasks, m.usage)

	agentColor := m.theme.Success
	if sum.Active == 0 {
		agentColor = m.theme.Muted
	}
	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		lipgloss.NewStyle().Foreground(agentColor).Render(fmt.Sprintf("agents: %d/%d active", sum.Active, sum.Total)),
		lipgloss.NewStyle().Render(" | Pending: "),
		lipgloss.NewStyle().Foreground(m.theme.Warning).Render(fmt.Sprintf("%d", stats.TasksPending)),
		lipgloss.NewStyle().Render(" | Tokens today: "),
		lipgloss.NewStyle().Foreground(m.theme.Primary).Render(humanize.Comma(stats.TokensToday)),
	)
}

func (m Model) renderHome() string {
	st := board.ComputeHome(now(), m.agents, m.tasks, m.usage)
	cards := []string{
		m.card("Tokens today", humanize.Comma(st.TokensToday)),
		m.card("Pending tasks", fmt.Sprintf("%d", st.TasksPending)),
		m.card("Completed", fmt.Sprintf("%d", st.TasksDone)),
		m.card("Active agents", fmt.Sprintf("%d/%d", st.ActiveAgents, st.TotalAgents)),
	}

	var working strings.Builder
	busy := board.Working(m.agents)
	if len(busy) == 0 {
		working.WriteString(m.styles.Muted.Render("Nobody is working right now"))
	}
	for i, a := range busy {
		if i == 5 {
			break
		}
		task := a.CurrentTask
		if task == "" {
			task = board.StatusLabel(string(a.Status))
		}
		fmt.Fprintf(&working, "%s %s  %s\n", a.Emoji, chat.MentionLabel(a), m.styles.Muted.Render(task))
	}

	recent := m.messages
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, cards...),
		m.styles.Title.Render("Working now"),
		strings.TrimRight(working.String(), "\n"),
		m.styles.Title.Render("Latest in the arena"),
		m.renderMessages(recent),
	)
}

func (m Model) card(label, value string) string {
	return m.styles.Panel.Width(18).Render(
		m.styles.Muted.Render(label) + "\n" + m.styles.Header.Render(value))
}

// renderTasks renders the three task columns side-by-side.
func (m Model) renderTasks() string {
	b := board.Split(m.tasks)
	done := b.Done
	if len(done) > doneLimit {
		done = done[:doneLimit]
	}
	colWidth := 32
	if m.width > 0 {
		colWidth = max(24, m.width/3-2)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderTaskColumn(board.Doing, b.Doing, len(b.Doing), colWidth),
		m.renderTaskColumn(board.Queued, b.Queued, len(b.Queued), colWidth),
		m.renderTaskColumn(board.Done, done, len(b.Done), colWidth),
	)
}

func (m Model) renderTaskColumn(col board.Column, tasks []protocol.Task, total, width int) string {
	var sb strings.Builder
	sb.WriteString(m.styles.Header.Render(fmt.Sprintf("%s (%d)", col, total)))
	sb.WriteString("\n")
	if len(tasks) == 0 {
		sb.WriteString(m.styles.Muted.Render("Nothing here"))
	}
	for _, t := range tasks {
		prio := "  "
		if t.Priority != nil {
			prio = fmt.Sprintf("P%d", *t.Priority)
		}
		line := fmt.Sprintf("%s %s", prio, truncate(t.Title, width-6))
		sb.WriteString(line + "\n")
		if who := board.Assignee(t); who != "" {
			sb.WriteString(m.styles.Muted.Render("   "+truncate(who, width-6)) + "\n")
		}
	}
	return m.styles.Panel.Width(width).Render(strings.TrimRight(sb.String(), "\n"))
}

func (m Model) renderCron() string {
	var sb strings.Builder
	jobs := m.visibleJobs()
	c := board.CountJobs(m.jobs)
	fmt.Fprintf(&sb, "%d jobs · %d active · %d disabled · owner: %s\n\n", c.Total, c.Active, c.Disabled, m.agentFilter)

	if len(jobs) == 0 {
		sb.WriteString(m.styles.Muted.Render("No cron jobs"))
		sb.WriteString("\n")
	}
	for i, j := range jobs {
		state := "●"
		stateStyle := lipgloss.NewStyle().Foreground(m.theme.Success)
		if !j.Enabled {
			state = "○"
			stateStyle = m.styles.Muted
		}
		owner := j.Owner()
		if owner == "" {
			owner = "Unassigned"
		}
		line := fmt.Sprintf("%-24s %-26s %-24s %s",
			truncate(j.Name, 24), schedule.Humanize(j.Schedule), truncate(j.Command, 24), owner)
		if i == m.jobCursor {
			sb.WriteString(stateStyle.Render(state) + " " + m.styles.Selected.Render(line))
		} else {
			sb.WriteString(stateStyle.Render(state) + " " + line)
		}
		sb.WriteString("\n")
	}

	if m.confirmDelete {
		if job, ok := m.selectedJob(); ok {
			sb.WriteString("\n" + m.styles.Banner.Render(fmt.Sprintf("Delete %q? y to confirm, any other key to cancel", job.Name)) + "\n")
		}
	}

	sb.WriteString("\n" + m.styles.Header.Render("Copilot") + "\n")
	sb.WriteString(m.styles.Input.Render(m.copilotInput.View()))
	if p := m.pending; p != nil {
		preview := fmt.Sprintf("name: %s\nschedule: %s (%s)\ncommand: %s\nagent: %s",
			p.Name, p.Schedule, schedule.Humanize(p.Schedule), p.Command, orDash(p.CreatedBy))
		sb.WriteString("\n" + m.styles.Panel.Render(preview))
		sb.WriteString("\n" + m.styles.Muted.Render("enter to create · esc to discard"))
	}
	return sb.String()
}

func (m Model) renderWorkflows() string {
	var sb strings.Builder
	if m.workflowBase == "" && m.n8n.Validate() != nil {
		sb.WriteString(m.styles.Muted.Render("Connect n8n with: stockton settings set n8n-url <url> and stockton settings set n8n-key <key>"))
		return sb.String()
	}

	list := workflows.Filter(m.workflows, m.workflowQuery)
	fmt.Fprintf(&sb, "%s · %d workflows · %d active\n", m.workflowBase, len(m.workflows), workflows.ActiveCount(m.workflows))
	query := m.workflowQuery
	if m.filtering {
		query += "▌"
	}
	if query != "" {
		sb.WriteString(m.styles.Input.Render("Filter: "+query) + "\n")
	}
	if len(list) == 0 {
		sb.WriteString(m.styles.Muted.Render("No matching workflows"))
		return sb.String()
	}
	for _, wf := range list {
		status := lipgloss.NewStyle().Foreground(m.theme.Success).Render("Active  ")
		if !wf.Active {
			status = m.styles.Muted.Render("Inactive")
		}
		updated := "-"
		if t := wf.LastUpdated(); !t.IsZero() {
			updated = humanize.Time(t)
		}
		fmt.Fprintf(&sb, "%s %-32s %-16s %s\n", status, truncate(wf.DisplayName(), 32), updated,
			m.styles.Muted.Render(strings.Join(wf.TagNames(), ", ")))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m Model) renderAgents() string {
	if len(m.agents) == 0 {
		return m.styles.Muted.Render("No agents")
	}
	var sb strings.Builder
	for _, a := range m.agents {
		status := a.NormalizedStatus()
		statusStyle := lipgloss.NewStyle().Foreground(m.theme.levelColor(board.StatusLevel(status)))
		fmt.Fprintf(&sb, "%s %-20s %s %s %s\n",
			a.Emoji,
			truncate(chat.MentionLabel(a), 20),
			statusStyle.Render(fmt.Sprintf("%-8s", status)),
			m.loadBar(a.Load),
			m.styles.Muted.Render(truncate(a.CurrentTask, 40)))
	}
	s := board.SummarizeAgents(m.agents)
	fmt.Fprintf(&sb, "\n%d agents · %d active · %d idle · %d overloaded", s.Total, s.Active, s.Idle, s.Overloaded)
	return sb.String()
}

// loadBar draws load on the 0..10 scale, colored by level.
func (m Model) loadBar(load float64) string {
	filled := int(board.ClampLoad(load) + 0.5)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", board.MaxLoad-filled)
	style := lipgloss.NewStyle().Foreground(m.theme.levelColor(board.LoadLevel(load)))
	return style.Render(bar) + fmt.Sprintf(" %4.1f", load)
}

func (m Model) renderChat() string {
	parts := []string{m.chatLog.View()}
	if r := m.replyTo; r != nil {
		parts = append(parts, m.styles.Muted.Render(fmt.Sprintf("↳ replying to %s: %s  (esc to cancel)", r.DisplayName, r.Preview)))
	}
	input := m.chatInput.View()
	if m.sending {
		input += m.styles.Muted.Render("  sending…")
	}
	parts = append(parts, m.styles.Input.Render(input))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderMessages renders arena messages oldest first.
func (m Model) renderMessages(msgs []protocol.Message) string {
	if len(msgs) == 0 {
		return m.styles.Muted.Render("No messages yet")
	}
	lines := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		lines = append(lines, m.renderMessage(msg))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderMessage(msg protocol.Message) string {
	name, emoji := msg.AgentID, ""
	if msg.Agent != nil {
		if msg.Agent.Name != "" {
			name = msg.Agent.Name
		}
		emoji = msg.Agent.Emoji
	}
	who := chat.FormatAgentDisplayName(name)
	if emoji != "" {
		who = emoji + " " + who
	}
	nameStyle := m.styles.Header
	if msg.AgentID == m.operator {
		nameStyle = lipgloss.NewStyle().Bold(true).Foreground(m.theme.Secondary)
	}
	when := "sending…"
	if !msg.Optimistic() {
		when = "-"
		if t := protocol.ParseTime(msg.CreatedAt); !t.IsZero() {
			when = humanize.Time(t)
		}
	}
	kind := ""
	switch msg.Kind {
	case "", protocol.KindChat:
	case protocol.KindAlert:
		kind = lipgloss.NewStyle().Foreground(m.theme.Error).Render(" [alert]")
	default:
		kind = m.styles.Muted.Render(" [" + string(msg.Kind) + "]")
	}
	return fmt.Sprintf("%s%s %s\n  %s", nameStyle.Render(who), kind, m.styles.Muted.Render(when), msg.Content)
}

func (m Model) renderSettings() string {
	var sb strings.Builder
	if svc := m.svc; svc != nil {
		cfg := svc.cfg
		fmt.Fprintf(&sb, "home:          %s\n", cfg.Home)
		fmt.Fprintf(&sb, "backend:       %s\n", cfg.BackendURL)
		fmt.Fprintf(&sb, "webhook:       %s\n", cfg.WebhookURL)
		fmt.Fprintf(&sb, "operator:      %s\n", cfg.OperatorID)
		fmt.Fprintf(&sb, "poll interval: %s\n", cfg.PollInterval)
		fmt.Fprintf(&sb, "settings db:   %s\n\n", cfg.SettingsDB)
	}

	sb.WriteString(m.styles.Header.Render("n8n") + "\n")
	fmt.Fprintf(&sb, "base url: %s\n", orDash(m.n8n.BaseURL))
	fmt.Fprintf(&sb, "api key:  %s\n", orDash(settings.Redact(m.n8n.APIKey)))
	if err := m.n8n.Validate(); err != nil {
		sb.WriteString(m.styles.Muted.Render(err.Error()+". Use stockton settings set n8n-url / n8n-key.") + "\n")
	}

	if len(m.entries) > 0 {
		sb.WriteString("\n" + m.styles.Header.Render("Stored settings") + "\n")
		for _, e := range m.entries {
			v := e.Value
			if e.Key == settings.KeyN8nAPIKey {
				v = settings.Redact(v)
			}
			fmt.Fprintf(&sb, "%-28s %s\n", e.Key, orDash(v))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// truncate shortens s to maxLen runes, marking the cut with an ellipsis.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 1 {
		return string(r[:max(0, maxLen)])
	}
	return string(r[:maxLen-1]) + "…"
}
