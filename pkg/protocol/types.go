package protocol

import (
	"encoding/json"
	"strings"
	"time"
)

// AgentRef is the joined agents(name, emoji) projection attached to rows.
type AgentRef struct {
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
}

// UnmarshalJSON accepts both an object and a one-element array, since PostgREST
// renders embedded relations either way depending on the foreign key.
func (a *AgentRef) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []struct {
			Name  string `json:"name"`
			Emoji string `json:"emoji"`
		}
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		if len(list) > 0 {
			a.Name, a.Emoji = list[0].Name, list[0].Emoji
		}
		return nil
	}
	var obj struct {
		Name  string `json:"name"`
		Emoji string `json:"emoji"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	a.Name, a.Emoji = obj.Name, obj.Emoji
	return nil
}

// MessageKind classifies an arena post. The set is open; unknown kinds render as chat.
type MessageKind string

// Known message kinds.
const (
	KindChat         MessageKind = "chat"
	KindAnnouncement MessageKind = "announcement"
	KindStatus       MessageKind = "status"
	KindTaskComplete MessageKind = "task_complete"
	KindAlert        MessageKind = "alert"
)

// Message is a chat arena post.
type Message struct {
	ID        RowID          `json:"id"`
	AgentID   string         `json:"agent_id"`
	Content   string         `json:"content"`
	Kind      MessageKind    `json:"message_type,omitempty"`
	ReplyTo   *RowID         `json:"reply_to"`
	Context   map[string]any `json:"context,omitempty"`
	Priority  *int           `json:"priority,omitempty"`
	Status    string         `json:"status,omitempty"`
	CreatedAt string         `json:"created_at"`
	Agent     *AgentRef      `json:"agents,omitempty"`
}

// Optimistic reports whether the message is a local placeholder.
func (m Message) Optimistic() bool {
	return strings.HasPrefix(string(m.ID), OptimisticPrefix)
}

// Job is a scheduled job description. Nothing in stockton executes it.
type Job struct {
	ID          RowID   `json:"id"`
	Name        string  `json:"name"`
	Schedule    string  `json:"schedule"`
	Command     string  `json:"command"`
	Description *string `json:"description"`
	CreatedBy   *string `json:"created_by"`
	Enabled     bool    `json:"enabled"`
	LastRun     *string `json:"last_run,omitempty"`
	NextRun     *string `json:"next_run,omitempty"`
	CreatedAt   string  `json:"created_at,omitempty"`
}

// Owner returns the owning agent id, or "" for unowned jobs.
func (j Job) Owner() string {
	if j.CreatedBy == nil {
		return ""
	}
	return *j.CreatedBy
}

// AgentStatus is the reported liveness of an agent.
type AgentStatus string

// Agent statuses. Anything else is treated as unknown.
const (
	AgentActive  AgentStatus = "active"
	AgentIdle    AgentStatus = "idle"
	AgentBusy    AgentStatus = "busy"
	AgentOffline AgentStatus = "offline"
	AgentUnknown AgentStatus = "unknown"
)

// Agent is one automation persona.
type Agent struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Emoji       string      `json:"emoji"`
	Role        string      `json:"role,omitempty"`
	Status      AgentStatus `json:"status"`
	Load        float64     `json:"load"`
	CurrentTask string      `json:"current_task"`
	IdentityMD  string      `json:"identity_md,omitempty"`
	SoulMD      string      `json:"soul_md,omitempty"`
	UserMD      string      `json:"user_md,omitempty"`
	ToolsMD     string      `json:"tools_md,omitempty"`
	AgentsMD    string      `json:"agents_md,omitempty"`
}

// NormalizedStatus folds case and maps unrecognized values to AgentUnknown.
func (a Agent) NormalizedStatus() AgentStatus {
	s := AgentStatus(strings.ToLower(strings.TrimSpace(string(a.Status))))
	switch s {
	case AgentActive, AgentIdle, AgentBusy, AgentOffline:
		return s
	default:
		return AgentUnknown
	}
}

// Persona holds the five long-form persona documents of an agent.
type Persona struct {
	IdentityMD string `json:"identity_md"`
	SoulMD     string `json:"soul_md"`
	UserMD     string `json:"user_md"`
	ToolsMD    string `json:"tools_md"`
	AgentsMD   string `json:"agents_md"`
}

// Persona extracts the persona documents.
func (a Agent) Persona() Persona {
	return Persona{
		IdentityMD: a.IdentityMD,
		SoulMD:     a.SoulMD,
		UserMD:     a.UserMD,
		ToolsMD:    a.ToolsMD,
		AgentsMD:   a.AgentsMD,
	}
}

// PersonaFields lists persona column names with their document labels, in display order.
var PersonaFields = []struct {
	Key   string
	Label string
}{
	{"identity_md", "identity.md"},
	{"soul_md", "soul.md"},
	{"user_md", "user.md"},
	{"tools_md", "tools.md"},
	{"agents_md", "agents.md"},
}

// Task is a board item.
type Task struct {
	ID          RowID     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Priority    *int      `json:"priority"`
	Assignee    string    `json:"assignee,omitempty"`
	CreatedAt   string    `json:"created_at,omitempty"`
	UpdatedAt   string    `json:"updated_at,omitempty"`
	Agent       *AgentRef `json:"agents,omitempty"`
}

// Timestamp returns updated_at, falling back to created_at.
func (t Task) Timestamp() time.Time {
	if ts := ParseTime(t.UpdatedAt); !ts.IsZero() {
		return ts
	}
	return ParseTime(t.CreatedAt)
}

// TokenUsage is one metered model call.
type TokenUsage struct {
	TokensInput  int64  `json:"tokens_input"`
	TokensOutput int64  `json:"tokens_output"`
	CreatedAt    string `json:"created_at"`
}

// Workflow is an n8n workflow summary.
type Workflow struct {
	ID        RowID             `json:"id"`
	Name      string            `json:"name"`
	Active    bool              `json:"active"`
	UpdatedAt string            `json:"updatedAt"`
	Updated   string            `json:"updated_at,omitempty"`
	Tags      []json.RawMessage `json:"tags,omitempty"`
}

// DisplayName returns the name, or a placeholder for unnamed workflows.
func (w Workflow) DisplayName() string {
	if strings.TrimSpace(w.Name) == "" {
		return "Unnamed workflow"
	}
	return w.Name
}

// LastUpdated parses updatedAt, falling back to updated_at.
func (w Workflow) LastUpdated() time.Time {
	if t := ParseTime(w.UpdatedAt); !t.IsZero() {
		return t
	}
	return ParseTime(w.Updated)
}

// TagNames flattens tags that arrive either as {"name": ...} objects or bare strings.
func (w Workflow) TagNames() []string {
	names := make([]string, 0, len(w.Tags))
	for _, raw := range w.Tags {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s != "" {
				names = append(names, s)
			}
			continue
		}
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &obj); err == nil && obj.Name != "" {
			names = append(names, obj.Name)
		}
	}
	return names
}
