package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"stockton/internal/config"
	"stockton/pkg/backend"
	"stockton/pkg/board"
	"stockton/pkg/chat"
	"stockton/pkg/feed"
	"stockton/pkg/protocol"
	"stockton/pkg/realtime"
	"stockton/pkg/settings"
	"stockton/pkg/workflows"
)

// fetchTimeout bounds one backend or n8n round-trip started from the UI.
const fetchTimeout = 10 * time.Second

// feedKind names one live list.
type feedKind int

const (
	tasksFeed feedKind = iota
	agentsFeed
	jobsFeed
	arenaFeed
)

func (k feedKind) String() string {
	switch k {
	case tasksFeed:
		return protocol.TableTasks
	case agentsFeed:
		return protocol.TableAgents
	case jobsFeed:
		return protocol.TableCronJobs
	case arenaFeed:
		return protocol.TableArena
	default:
		return fmt.Sprintf("feed(%d)", int(k))
	}
}

// services owns the live feeds and clients behind the dashboard.
type services struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *backend.Store

	tasks  *feed.Coordinator
	agents *feed.Coordinator
	jobs   *feed.Coordinator
	arena  *chat.Arena
}

// newServices wires feeds over the backend. Realtime is optional: when the
// endpoint cannot be derived every feed falls back to polling.
func newServices(cfg *config.Config, logger *slog.Logger) (*services, error) {
	if err := cfg.RequireBackend(); err != nil {
		return nil, err
	}
	client, err := backend.NewClient(cfg.BackendURL, cfg.BackendKey)
	if err != nil {
		return nil, fmt.Errorf("backend client: %w", err)
	}
	store := backend.NewStore(client)

	endpoint, err := cfg.RealtimeURL()
	if err != nil {
		logger.Warn("realtime disabled", "error", err)
	}
	subscribe := func(channel, table, event string) feed.Subscriber {
		if endpoint == "" {
			return nil
		}
		return realtime.New(endpoint, cfg.BackendKey, channel,
			realtime.Filter{Event: event, Table: table}, realtime.WithLogger(logger))
	}

	sender, err := chat.NewSender(cfg.WebhookURL)
	if err != nil {
		logger.Warn("chat sending disabled", "error", err)
	}

	return &services{
		cfg:    cfg,
		logger: logger,
		store:  store,
		// Task rows carry the agents join, which pushes do not include.
		tasks: feed.New(feed.Options{
			Name:         protocol.TableTasks,
			Fetch:        store.TaskRows,
			Subscriber:   subscribe("tasks-board", protocol.TableTasks, protocol.ChangeAll),
			Interval:     cfg.PollInterval,
			ReloadOnPush: true,
			Prune:        true,
			Logger:       logger,
		}),
		agents: feed.New(feed.Options{
			Name:       protocol.TableAgents,
			Fetch:      store.AgentRows,
			Subscriber: subscribe("agents-status", protocol.TableAgents, protocol.ChangeAll),
			Interval:   cfg.PollInterval,
			Prune:      true,
			Logger:     logger,
		}),
		jobs: feed.New(feed.Options{
			Name:       protocol.TableCronJobs,
			Fetch:      store.CronJobRows,
			Subscriber: subscribe("cron-jobs", protocol.TableCronJobs, protocol.ChangeAll),
			Interval:   cfg.PollInterval,
			Prune:      true,
			Logger:     logger,
		}),
		arena: chat.NewArena(chat.ArenaOptions{
			Fetch:      store.ArenaRows,
			Subscriber: subscribe("chat-arena", protocol.TableArena, protocol.ChangeInsert),
			Sender:     sender,
			Operator:   chat.Operator{ID: cfg.OperatorID},
			ThreadID:   cfg.ThreadID,
			Interval:   cfg.PollInterval,
			Logger:     logger,
		}),
	}, nil
}

// start loads every feed in parallel and opens their push channels. The feeds
// keep ctx for their timers and subscriptions, so it must outlive the call.
func (s *services) start(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return s.tasks.Start(ctx) })
	g.Go(func() error { return s.agents.Start(ctx) })
	g.Go(func() error { return s.jobs.Start(ctx) })
	g.Go(func() error { return s.arena.Start(ctx) })
	return g.Wait()
}

// updates returns the snapshot channel of one feed.
func (s *services) updates(k feedKind) <-chan []protocol.Row {
	switch k {
	case tasksFeed:
		return s.tasks.Updates()
	case agentsFeed:
		return s.agents.Updates()
	case jobsFeed:
		return s.jobs.Updates()
	default:
		return s.arena.Updates()
	}
}

// refresh re-fetches every feed. Failures are logged by the feeds and the
// first one is returned.
func (s *services) refresh(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.tasks.Refresh(gctx) })
	g.Go(func() error { return s.agents.Refresh(gctx) })
	g.Go(func() error { return s.jobs.Refresh(gctx) })
	g.Go(func() error { return s.arena.Refresh(gctx) })
	return g.Wait()
}

func (s *services) close() {
	for _, c := range []interface{ Close() error }{s.tasks, s.agents, s.jobs, s.arena} {
		if err := c.Close(); err != nil {
			s.logger.Warn("close feed", "error", err)
		}
	}
}

// localSettings is what the settings view shows and the workflows view needs.
type localSettings struct {
	entries []settings.Entry
	n8n     workflows.Config
}

func (s *services) loadSettings(ctx context.Context) (localSettings, error) {
	st, err := settings.Open(ctx, s.cfg.SettingsDB)
	if err != nil {
		return localSettings{}, err
	}
	defer st.Close()
	entries, err := st.All(ctx)
	if err != nil {
		return localSettings{}, err
	}
	n8n, err := st.N8nConfig(ctx)
	if err != nil {
		return localSettings{}, err
	}
	return localSettings{entries: entries, n8n: n8n}, nil
}

// listWorkflows reads the saved n8n connection and lists its workflows.
func (s *services) listWorkflows(ctx context.Context) ([]protocol.Workflow, string, error) {
	ls, err := s.loadSettings(ctx)
	if err != nil {
		return nil, "", err
	}
	client, err := workflows.NewClient(ls.n8n)
	if err != nil {
		return nil, "", err
	}
	list, err := client.List(ctx)
	if err != nil {
		s.logger.Error("list workflows", "error", err)
		return nil, client.BaseURL(), err
	}
	return list, client.BaseURL(), nil
}

// snapshot is the robot-mode JSON document.
type snapshot struct {
	Stats    board.HomeStats    `json:"stats"`
	Agents   board.AgentSummary `json:"agent_summary"`
	Jobs     board.JobCounts    `json:"job_counts"`
	Working  []protocol.Agent   `json:"working"`
	Tasks    taskColumns        `json:"tasks"`
	CronJobs []protocol.Job     `json:"cron_jobs"`
	Messages []protocol.Message `json:"messages"`
}

type taskColumns struct {
	Doing  []protocol.Task `json:"currently_doing"`
	Queued []protocol.Task `json:"queued"`
	Done   []protocol.Task `json:"completed"`
}

// buildSnapshot derives the robot-mode document from fetched lists.
func buildSnapshot(now time.Time, agents []protocol.Agent, tasks []protocol.Task, usage []protocol.TokenUsage, jobs []protocol.Job, msgs []protocol.Message) snapshot {
	b := board.Split(tasks)
	return snapshot{
		Stats:    board.ComputeHome(now, agents, tasks, usage),
		Agents:   board.SummarizeAgents(agents),
		Jobs:     board.CountJobs(jobs),
		Working:  board.Working(agents),
		Tasks:    taskColumns{Doing: b.Doing, Queued: b.Queued, Done: b.Done},
		CronJobs: jobs,
		Messages: msgs,
	}
}

// fetchSnapshot loads everything once, in parallel.
func (s *services) fetchSnapshot(ctx context.Context) (snapshot, error) {
	var (
		agents []protocol.Agent
		tasks  []protocol.Task
		usage  []protocol.TokenUsage
		jobs   []protocol.Job
		msgs   []protocol.Message
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { agents, err = s.store.Agents(gctx); return err })
	g.Go(func() (err error) { tasks, err = s.store.Tasks(gctx); return err })
	g.Go(func() (err error) { usage, err = s.store.TokenUsage(gctx); return err })
	g.Go(func() (err error) { jobs, err = s.store.CronJobs(gctx); return err })
	g.Go(func() (err error) { msgs, err = s.store.ArenaMessages(gctx); return err })
	if err := g.Wait(); err != nil {
		return snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	return buildSnapshot(time.Now(), agents, tasks, usage, jobs, msgs), nil
}

// robotMode renders a snapshot as JSON.
func robotMode(snap snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}
