package backend

import (
	"context"
	"strings"

	"stockton/pkg/protocol"
)

// ArenaLimit caps how many arena messages a list fetch returns.
const ArenaLimit = 100

// TokenUsageLimit caps how many usage rows a list fetch returns.
const TokenUsageLimit = 100

const agentJoin = "*, agents(name, emoji)"

// Store exposes the typed reads and writes the dashboard needs.
type Store struct {
	c *Client
}

// NewStore wraps c.
func NewStore(c *Client) *Store {
	return &Store{c: c}
}

// Client returns the underlying PostgREST client.
func (s *Store) Client() *Client { return s.c }

// AgentRows lists agents ordered by name.
func (s *Store) AgentRows(ctx context.Context) ([]protocol.Row, error) {
	return s.c.Select(ctx, protocol.TableAgents, Query{OrderBy: "name"})
}

// Agents lists agents ordered by name.
func (s *Store) Agents(ctx context.Context) ([]protocol.Agent, error) {
	rows, err := s.AgentRows(ctx)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeRows[protocol.Agent](rows)
}

// TaskRows lists tasks with their assignee, ordered by priority.
func (s *Store) TaskRows(ctx context.Context) ([]protocol.Row, error) {
	return s.c.Select(ctx, protocol.TableTasks, Query{Columns: agentJoin, OrderBy: "priority"})
}

// Tasks lists tasks with their assignee, ordered by priority.
func (s *Store) Tasks(ctx context.Context) ([]protocol.Task, error) {
	rows, err := s.TaskRows(ctx)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeRows[protocol.Task](rows)
}

// CronJobRows lists cron jobs ordered by name.
func (s *Store) CronJobRows(ctx context.Context) ([]protocol.Row, error) {
	return s.c.Select(ctx, protocol.TableCronJobs, Query{OrderBy: "name"})
}

// CronJobs lists cron jobs ordered by name.
func (s *Store) CronJobs(ctx context.Context) ([]protocol.Job, error) {
	rows, err := s.CronJobRows(ctx)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeRows[protocol.Job](rows)
}

// TokenUsage lists the most recent usage rows, newest first.
func (s *Store) TokenUsage(ctx context.Context) ([]protocol.TokenUsage, error) {
	rows, err := s.c.Select(ctx, protocol.TableTokenUsage, Query{
		OrderBy:    "created_at",
		Descending: true,
		Limit:      TokenUsageLimit,
	})
	if err != nil {
		return nil, err
	}
	return protocol.DecodeRows[protocol.TokenUsage](rows)
}

// ArenaRows lists arena messages with their author, oldest first.
func (s *Store) ArenaRows(ctx context.Context) ([]protocol.Row, error) {
	return s.c.Select(ctx, protocol.TableArena, Query{
		Columns: agentJoin,
		OrderBy: "created_at",
		Limit:   ArenaLimit,
	})
}

// ArenaMessages lists arena messages with their author, oldest first.
func (s *Store) ArenaMessages(ctx context.Context) ([]protocol.Message, error) {
	rows, err := s.ArenaRows(ctx)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeRows[protocol.Message](rows)
}

// JobInput is the cron job form.
type JobInput struct {
	Name        string
	Schedule    string
	Command     string
	Description string
	CreatedBy   string
	Enabled     bool
}

// Validate rejects forms missing a name, schedule or command.
func (in JobInput) Validate() error {
	var missing []string
	if strings.TrimSpace(in.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(in.Schedule) == "" {
		missing = append(missing, "schedule")
	}
	if strings.TrimSpace(in.Command) == "" {
		missing = append(missing, "command")
	}
	if len(missing) > 0 {
		return &protocol.ValidationError{
			Fields:  missing,
			Message: "Name, cron schedule, and command are required.",
		}
	}
	return nil
}

// fields renders the form as a row payload. Blank optional fields are sent as null.
func (in JobInput) fields() map[string]any {
	return map[string]any{
		"name":        strings.TrimSpace(in.Name),
		"schedule":    strings.TrimSpace(in.Schedule),
		"command":     strings.TrimSpace(in.Command),
		"description": nullable(strings.TrimSpace(in.Description)),
		"created_by":  nullable(strings.TrimSpace(in.CreatedBy)),
		"enabled":     in.Enabled,
	}
}

// InputFromJob pre-fills a form from an existing job.
func InputFromJob(j protocol.Job) JobInput {
	in := JobInput{
		Name:      j.Name,
		Schedule:  j.Schedule,
		Command:   j.Command,
		CreatedBy: j.Owner(),
		Enabled:   j.Enabled,
	}
	if j.Description != nil {
		in.Description = *j.Description
	}
	return in
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// CreateCronJob validates and inserts a job.
func (s *Store) CreateCronJob(ctx context.Context, in JobInput) (protocol.Job, error) {
	if err := in.Validate(); err != nil {
		return protocol.Job{}, err
	}
	row, err := s.c.Insert(ctx, protocol.TableCronJobs, in.fields())
	if err != nil {
		return protocol.Job{}, err
	}
	return decodeOne[protocol.Job](row)
}

// UpdateCronJob validates and replaces the editable fields of a job.
func (s *Store) UpdateCronJob(ctx context.Context, id string, in JobInput) (protocol.Job, error) {
	if err := in.Validate(); err != nil {
		return protocol.Job{}, err
	}
	row, err := s.c.Update(ctx, protocol.TableCronJobs, id, in.fields())
	if err != nil {
		return protocol.Job{}, err
	}
	return decodeOne[protocol.Job](row)
}

// SetCronJobEnabled flips only the enabled flag.
func (s *Store) SetCronJobEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := s.c.Update(ctx, protocol.TableCronJobs, id, map[string]any{"enabled": enabled})
	return err
}

// DeleteCronJob removes a job.
func (s *Store) DeleteCronJob(ctx context.Context, id string) error {
	return s.c.Delete(ctx, protocol.TableCronJobs, id)
}

// UpdateAgentPersona writes all five persona documents of an agent.
func (s *Store) UpdateAgentPersona(ctx context.Context, id string, p protocol.Persona) (protocol.Agent, error) {
	row, err := s.c.Update(ctx, protocol.TableAgents, id, p)
	if err != nil {
		return protocol.Agent{}, err
	}
	return decodeOne[protocol.Agent](row)
}

func decodeOne[T any](row protocol.Row) (T, error) {
	var zero T
	if row == nil {
		return zero, nil
	}
	out, err := protocol.DecodeRows[T]([]protocol.Row{row})
	if err != nil {
		return zero, err
	}
	return out[0], nil
}
