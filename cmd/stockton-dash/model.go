package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"stockton/pkg/backend"
	"stockton/pkg/board"
	"stockton/pkg/chat"
	"stockton/pkg/copilot"
	"stockton/pkg/protocol"
	"stockton/pkg/reconcile"
	"stockton/pkg/settings"
	"stockton/pkg/workflows"
)

// tickMsg is sent by Bubble Tea on every tick interval. Feeds poll on their
// own; the tick only refreshes token usage.
type tickMsg time.Time

// rowsMsg carries the latest snapshot of one feed.
type rowsMsg struct {
	kind feedKind
	rows []protocol.Row
}

type usageMsg struct {
	usage []protocol.TokenUsage
	err   error
}

type workflowsMsg struct {
	list []protocol.Workflow
	base string
	err  error
}

type settingsMsg struct {
	entries []settings.Entry
	n8n     workflows.Config
	err     error
}

// sentMsg reports a finished chat send. restore is the text to put back in
// the input when the send failed.
type sentMsg struct {
	restore string
	err     error
}

// jobDoneMsg reports a finished cron job write.
type jobDoneMsg struct {
	status string
	err    error
}

// refreshedMsg reports a manual or focus refresh.
type refreshedMsg struct{ err error }

// ViewType represents different views in the dashboard.
type ViewType int

const (
	// HomeView shows fleet counters, working agents and recent chat.
	HomeView ViewType = iota
	// TasksView shows the task board.
	TasksView
	// CronView lists cron jobs and hosts the copilot.
	CronView
	// WorkflowsView lists n8n workflows.
	WorkflowsView
	// AgentsView shows agent status and load.
	AgentsView
	// ChatView shows the chat arena.
	ChatView
	// SettingsView shows configuration and local settings.
	SettingsView

	viewCount
)

func (v ViewType) String() string {
	switch v {
	case TasksView:
		return "Tasks"
	case CronView:
		return "Cron"
	case WorkflowsView:
		return "Workflows"
	case AgentsView:
		return "Agents"
	case ChatView:
		return "Chat"
	case SettingsView:
		return "Settings"
	default:
		return "Home"
	}
}

// Model is the Bubble Tea model for the stockton dashboard.
type Model struct {
	svc      *services
	watcher  *settingsWatcher
	ctx      context.Context
	interval time.Duration
	operator string

	activeView ViewType
	showHelp   bool
	width      int
	height     int
	theme      Theme
	styles     Styles

	// Live lists, decoded from the feeds.
	tasks    []protocol.Task
	agents   []protocol.Agent
	jobs     []protocol.Job
	messages []protocol.Message
	usage    []protocol.TokenUsage

	workflows     []protocol.Workflow
	workflowBase  string
	workflowQuery string
	filtering     bool

	entries []settings.Entry
	n8n     workflows.Config

	// errs holds the inline error banner of each view.
	errs   [viewCount]string
	status string

	chatInput textinput.Model
	chatLog   viewport.Model
	replyTo   *chat.ReplyTarget
	sending   bool

	copilotInput  textinput.Model
	pending       *copilot.Suggestion
	jobCursor     int
	agentFilter   string
	confirmDelete bool
}

// newModel creates a Model with HomeView active. svc may be nil, in which
// case the model only reacts to the messages it is sent.
func newModel(ctx context.Context, svc *services, watcher *settingsWatcher, operator string, interval time.Duration) Model {
	if interval <= 0 {
		interval = protocol.DefaultPollInterval
	}
	if operator == "" {
		operator = protocol.DefaultOperatorID
	}
	theme := DefaultTheme()

	in := textinput.New()
	in.Prompt = "› "
	in.Placeholder = "Message the arena, @agent to mention"
	in.CharLimit = 4000

	cp := textinput.New()
	cp.Prompt = "✦ "
	cp.Placeholder = "Every 2 hours run health check for @andrej"
	cp.CharLimit = 500

	return Model{
		svc:          svc,
		watcher:      watcher,
		ctx:          ctx,
		interval:     interval,
		operator:     operator,
		activeView:   HomeView,
		theme:        theme,
		styles:       NewStyles(theme),
		agentFilter:  board.AllAgents,
		chatInput:    in,
		chatLog:      viewport.New(80, 10),
		copilotInput: cp,
	}
}

// tickCmd returns a command that sends a tickMsg after d.
func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.interval), m.watcher.next()}
	if m.svc != nil {
		cmds = append(cmds,
			m.startCmd(),
			m.waitRows(tasksFeed), m.waitRows(agentsFeed), m.waitRows(jobsFeed), m.waitRows(arenaFeed),
			m.usageCmd(), m.settingsCmd(), m.workflowsCmd(),
		)
	}
	return tea.Batch(cmds...)
}

func (m Model) startCmd() tea.Cmd {
	return func() tea.Msg {
		return refreshedMsg{err: m.svc.start(m.ctx)}
	}
}

// waitRows blocks on the next snapshot of one feed.
func (m Model) waitRows(k feedKind) tea.Cmd {
	if m.svc == nil {
		return nil
	}
	ch := m.svc.updates(k)
	return func() tea.Msg {
		rows, ok := <-ch
		if !ok {
			return nil
		}
		return rowsMsg{kind: k, rows: rows}
	}
}

func (m Model) usageCmd() tea.Cmd {
	if m.svc == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, fetchTimeout)
		defer cancel()
		usage, err := m.svc.store.TokenUsage(ctx)
		return usageMsg{usage: usage, err: err}
	}
}

func (m Model) settingsCmd() tea.Cmd {
	if m.svc == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, fetchTimeout)
		defer cancel()
		ls, err := m.svc.loadSettings(ctx)
		return settingsMsg{entries: ls.entries, n8n: ls.n8n, err: err}
	}
}

func (m Model) workflowsCmd() tea.Cmd {
	if m.svc == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, fetchTimeout)
		defer cancel()
		list, base, err := m.svc.listWorkflows(ctx)
		return workflowsMsg{list: list, base: base, err: err}
	}
}

// refreshAll re-fetches every source; used for focus and the r key.
func (m Model) refreshAll() tea.Cmd {
	if m.svc == nil {
		return nil
	}
	refresh := func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, fetchTimeout)
		defer cancel()
		return refreshedMsg{err: m.svc.refresh(ctx)}
	}
	return tea.Batch(refresh, m.usageCmd(), m.settingsCmd(), m.workflowsCmd())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chatLog.Width = max(20, msg.Width-2)
		m.chatLog.Height = max(3, msg.Height-10)
		m.chatInput.Width = max(10, msg.Width-8)
		m.copilotInput.Width = max(10, msg.Width-8)
		m.refreshChatLog(false)

	case tea.FocusMsg:
		return m, m.refreshAll()

	case tickMsg:
		return m, tea.Batch(m.usageCmd(), tickCmd(m.interval))

	case rowsMsg:
		m = m.applyRows(msg)
		return m, m.waitRows(msg.kind)

	case usageMsg:
		if msg.err != nil {
			m.errs[HomeView] = protocol.UserMessage(msg.err)
		} else {
			m.usage = msg.usage
			m.errs[HomeView] = ""
		}

	case workflowsMsg:
		m.workflowBase = msg.base
		if msg.err != nil {
			m.errs[WorkflowsView] = protocol.UserMessage(msg.err)
		} else {
			m.workflows = msg.list
			m.errs[WorkflowsView] = ""
		}

	case settingsMsg:
		if msg.err != nil {
			m.errs[SettingsView] = protocol.UserMessage(msg.err)
		} else {
			m.entries, m.n8n = msg.entries, msg.n8n
			m.errs[SettingsView] = ""
		}

	case settingsChangedMsg:
		return m, tea.Batch(m.settingsCmd(), m.workflowsCmd(), m.watcher.next())

	case sentMsg:
		m.sending = false
		if msg.err != nil {
			m.errs[ChatView] = protocol.UserMessage(msg.err)
			if m.chatInput.Value() == "" {
				m.chatInput.SetValue(msg.restore)
				m.chatInput.CursorEnd()
			}
		} else {
			m.errs[ChatView] = ""
		}

	case jobDoneMsg:
		if msg.err != nil {
			m.errs[CronView] = protocol.UserMessage(msg.err)
		} else {
			m.errs[CronView] = ""
			m.status = msg.status
		}

	case refreshedMsg:
		if msg.err != nil {
			m.errs[m.activeView] = protocol.UserMessage(msg.err)
		}

	default:
		var cmd tea.Cmd
		if m.chatInput.Focused() {
			m.chatInput, cmd = m.chatInput.Update(msg)
		} else if m.copilotInput.Focused() {
			m.copilotInput, cmd = m.copilotInput.Update(msg)
		}
		return m, cmd
	}

	return m, nil
}

// applyRows decodes a feed snapshot into the typed list it backs. A snapshot
// that fails to decode leaves the current list in place.
func (m Model) applyRows(msg rowsMsg) Model {
	var err error
	switch msg.kind {
	case tasksFeed:
		var tasks []protocol.Task
		if tasks, err = protocol.DecodeRows[protocol.Task](msg.rows); err == nil {
			m.tasks = tasks
		}
	case agentsFeed:
		var agents []protocol.Agent
		if agents, err = protocol.DecodeRows[protocol.Agent](msg.rows); err == nil {
			board.SortAgents(agents)
			m.agents = agents
		}
	case jobsFeed:
		var jobs []protocol.Job
		if jobs, err = protocol.DecodeRows[protocol.Job](msg.rows); err == nil {
			board.SortJobs(jobs)
			m.jobs = jobs
			m.jobCursor = min(m.jobCursor, max(0, len(m.visibleJobs())-1))
		}
	case arenaFeed:
		var messages []protocol.Message
		if messages, err = protocol.DecodeRows[protocol.Message](msg.rows); err == nil {
			m.messages = messages
			m.refreshChatLog(true)
		}
	}
	if err != nil && m.svc != nil {
		m.svc.logger.Error("decode rows", "feed", msg.kind.String(), "error", err)
	}
	return m
}

// refreshChatLog re-renders the message log into the viewport.
func (m *Model) refreshChatLog(scrollToBottom bool) {
	atBottom := m.chatLog.AtBottom()
	m.chatLog.SetContent(m.renderMessages(m.messages))
	if scrollToBottom && atBottom {
		m.chatLog.GotoBottom()
	}
}

// handleKeyPress processes keyboard input and returns updated model with optional command.
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		return m, tea.Quit
	}
	if m.confirmDelete {
		return m.handleConfirmKeys(key)
	}
	if m.inputActive() {
		return m.handleInputKeys(msg)
	}

	switch key {
	case "q":
		return m, tea.Quit
	case "?":
		m.showHelp = !m.showHelp
		return m, nil
	case "tab":
		return m.setView((m.activeView + 1) % viewCount)
	case "shift+tab":
		return m.setView((m.activeView + viewCount - 1) % viewCount)
	case "1", "2", "3", "4", "5", "6", "7":
		return m.setView(ViewType(key[0] - '1'))
	case "r":
		m.status = "Refreshing…"
		return m, m.refreshAll()
	}

	switch m.activeView {
	case CronView:
		return m.handleCronKeys(key)
	case WorkflowsView:
		if key == "/" {
			m.filtering = true
		}
	case ChatView:
		return m.handleChatKeys(msg)
	}
	return m, nil
}

// inputActive reports whether keystrokes belong to a text field.
func (m Model) inputActive() bool {
	switch m.activeView {
	case ChatView:
		return m.chatInput.Focused()
	case CronView:
		return m.copilotInput.Focused()
	case WorkflowsView:
		return m.filtering
	}
	return false
}

// setView switches views, moving focus to the chat input when entering chat.
func (m Model) setView(v ViewType) (tea.Model, tea.Cmd) {
	m.activeView = v
	m.chatInput.Blur()
	m.copilotInput.Blur()
	m.filtering = false
	m.status = ""
	if v == ChatView {
		return m, m.chatInput.Focus()
	}
	return m, nil
}

func (m Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "tab" || key == "shift+tab" {
		step := viewCount + 1
		if key == "shift+tab" {
			step = viewCount - 1
		}
		return m.setView((m.activeView + step) % viewCount)
	}

	switch m.activeView {
	case ChatView:
		return m.handleChatInputKeys(msg)
	case CronView:
		return m.handleCopilotKeys(msg)
	default:
		return m.handleFilterKeys(msg), nil
	}
}

func (m Model) handleChatInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return m.submitChat()
	case "esc":
		if m.replyTo != nil {
			m.replyTo = nil
			return m, nil
		}
		m.chatInput.Blur()
		return m, nil
	case "ctrl+r":
		return m.replyToLatest(), nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.chatLog, cmd = m.chatLog.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.chatInput, cmd = m.chatInput.Update(msg)
	return m, cmd
}

func (m Model) handleChatKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "i", "enter":
		return m, m.chatInput.Focus()
	case "ctrl+r", "R":
		m = m.replyToLatest()
		return m, m.chatInput.Focus()
	}
	var cmd tea.Cmd
	m.chatLog, cmd = m.chatLog.Update(msg)
	return m, cmd
}

// replyToLatest targets the newest message not written by the operator.
func (m Model) replyToLatest() Model {
	for i := len(m.messages) - 1; i >= 0; i-- {
		msg := m.messages[i]
		if msg.AgentID == m.operator || msg.Optimistic() {
			continue
		}
		target := chat.NewReplyTarget(msg)
		m.replyTo = &target
		return m
	}
	return m
}

// submitChat clears the input and sends in the background. The arena shows
// the placeholder right away; a failed send restores the text.
func (m Model) submitChat() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.chatInput.Value())
	if text == "" || m.sending {
		return m, nil
	}
	replyID := ""
	if m.replyTo != nil {
		text = chat.ReplyPrefix(text, m.replyTo.AgentID)
		replyID = m.replyTo.ID
	}
	m.chatInput.SetValue("")
	m.replyTo = nil
	m.sending = true
	m.errs[ChatView] = ""
	m.chatLog.GotoBottom()
	return m, m.sendCmd(text, replyID)
}

func (m Model) sendCmd(text, replyID string) tea.Cmd {
	return func() tea.Msg {
		if m.svc == nil {
			return sentMsg{restore: text, err: &protocol.ValidationError{Message: "Chat is not connected."}}
		}
		ctx, cancel := context.WithTimeout(m.ctx, 2*fetchTimeout)
		defer cancel()
		restore, err := m.svc.arena.Submit(ctx, text, replyID)
		return sentMsg{restore: restore, err: err}
	}
}

func (m Model) handleCopilotKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		s := copilot.Parse(m.copilotInput.Value(), m.agents)
		m.copilotInput.Blur()
		if s.Empty() {
			return m, nil
		}
		m.pending = &s
		m.errs[CronView] = ""
		return m, nil
	case "esc":
		m.copilotInput.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.copilotInput, cmd = m.copilotInput.Update(msg)
	return m, cmd
}

// handleFilterKeys edits the workflow filter.
func (m Model) handleFilterKeys(msg tea.KeyMsg) Model {
	switch msg.String() {
	case "esc":
		m.filtering = false
		m.workflowQuery = ""
	case "enter":
		m.filtering = false
	case "backspace":
		if m.workflowQuery != "" {
			runes := []rune(m.workflowQuery)
			m.workflowQuery = string(runes[:len(runes)-1])
		}
	default:
		if len(msg.Runes) > 0 {
			m.workflowQuery += string(msg.Runes)
		}
	}
	return m
}

// visibleJobs applies the owner filter.
func (m Model) visibleJobs() []protocol.Job {
	return board.FilterJobs(m.jobs, m.agentFilter)
}

func (m Model) selectedJob() (protocol.Job, bool) {
	jobs := m.visibleJobs()
	if m.jobCursor < 0 || m.jobCursor >= len(jobs) {
		return protocol.Job{}, false
	}
	return jobs[m.jobCursor], true
}

func (m Model) handleCronKeys(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "/", "n":
		m.pending = nil
		return m, m.copilotInput.Focus()
	case "j", "down":
		if m.jobCursor < len(m.visibleJobs())-1 {
			m.jobCursor++
		}
	case "k", "up":
		if m.jobCursor > 0 {
			m.jobCursor--
		}
	case "a":
		m.agentFilter = nextAgentFilter(m.agentFilter, m.agents)
		m.jobCursor = 0
	case "esc":
		m.pending = nil
	case "enter":
		if m.pending != nil {
			return m.createJob()
		}
	case "t":
		if job, ok := m.selectedJob(); ok {
			return m, m.jobCmd(fmt.Sprintf("%s %s", job.Name, toggledWord(job.Enabled)), func(ctx context.Context, s *backend.Store) error {
				return s.SetCronJobEnabled(ctx, job.ID.String(), !job.Enabled)
			})
		}
	case "d", "x":
		if _, ok := m.selectedJob(); ok {
			m.confirmDelete = true
		}
	}
	return m, nil
}

func toggledWord(enabled bool) string {
	if enabled {
		return "disabled"
	}
	return "enabled"
}

// nextAgentFilter cycles all → each agent → all.
func nextAgentFilter(cur string, agents []protocol.Agent) string {
	if cur == board.AllAgents {
		if len(agents) == 0 {
			return board.AllAgents
		}
		return agents[0].ID
	}
	for i, a := range agents {
		if a.ID == cur && i+1 < len(agents) {
			return agents[i+1].ID
		}
	}
	return board.AllAgents
}

func (m Model) handleConfirmKeys(key string) (tea.Model, tea.Cmd) {
	m.confirmDelete = false
	job, ok := m.selectedJob()
	if !ok || (key != "y" && key != "Y") {
		return m, nil
	}
	id := job.ID.String()
	return m, m.jobCmd("Deleted "+job.Name, func(ctx context.Context, s *backend.Store) error {
		if err := s.DeleteCronJob(ctx, id); err != nil {
			return err
		}
		m.svc.jobs.Apply(func(rows []protocol.Row) []protocol.Row {
			return reconcile.Remove(rows, id)
		})
		return nil
	})
}

// createJob validates the pending suggestion and saves it. Invalid input is
// reported without a request.
func (m Model) createJob() (tea.Model, tea.Cmd) {
	in := backend.JobInput{
		CreatedBy: board.DefaultOwner(m.agents, "ramon"),
		Enabled:   true,
	}
	m.pending.ApplyTo(&in)
	if err := in.Validate(); err != nil {
		m.errs[CronView] = protocol.UserMessage(err)
		return m, nil
	}
	m.pending = nil
	m.copilotInput.SetValue("")
	return m, m.jobCmd("Created "+in.Name, func(ctx context.Context, st *backend.Store) error {
		_, err := st.CreateCronJob(ctx, in)
		return err
	})
}

// jobCmd runs a cron write and then refreshes the job list.
func (m Model) jobCmd(status string, write func(context.Context, *backend.Store) error) tea.Cmd {
	if m.svc == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, fetchTimeout)
		defer cancel()
		if err := write(ctx, m.svc.store); err != nil {
			m.svc.logger.Error("cron write", "error", err)
			return jobDoneMsg{err: err}
		}
		_ = m.svc.jobs.Refresh(ctx)
		return jobDoneMsg{status: status}
	}
}
