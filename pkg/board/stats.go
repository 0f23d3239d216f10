package board

import (
	"strings"
	"time"

	"stockton/pkg/protocol"
)

// HomeStats are the counters on the home view.
type HomeStats struct {
	TokensToday  int64 `json:"tokens_today"`
	TasksPending int   `json:"tasks_pending"`
	TasksDone    int   `json:"tasks_done"`
	ActiveAgents int   `json:"active_agents"`
	TotalAgents  int   `json:"total_agents"`
}

// ComputeHome derives the home counters. Token usage counts when its
// created_at starts with today's UTC date.
func ComputeHome(now time.Time, agents []protocol.Agent, tasks []protocol.Task, usage []protocol.TokenUsage) HomeStats {
	today := now.UTC().Format(time.DateOnly)
	s := HomeStats{TotalAgents: len(agents)}
	for _, u := range usage {
		if strings.HasPrefix(u.CreatedAt, today) {
			s.TokensToday += u.TokensInput + u.TokensOutput
		}
	}
	for _, t := range tasks {
		switch t.Status {
		case "pending", "in_progress":
			s.TasksPending++
		case "completed":
			s.TasksDone++
		}
	}
	for _, a := range agents {
		if a.NormalizedStatus() == protocol.AgentActive {
			s.ActiveAgents++
		}
	}
	return s
}
