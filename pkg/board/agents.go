package board

import (
	"cmp"
	"slices"
	"strings"

	"stockton/pkg/chat"
	"stockton/pkg/protocol"
)

// Level grades a value for coloring.
type Level int

// Levels from calm to alarming.
const (
	LevelNone Level = iota
	LevelLow
	LevelMedium
	LevelHigh
	LevelCritical
)

// Load thresholds on the 0..10 scale.
const (
	OverloadThreshold = 9
	HighLoadThreshold = 7
	MediumThreshold   = 4
	MaxLoad           = 10
)

// LoadLevel grades an agent's load. Out-of-range values are graded as-is.
func LoadLevel(load float64) Level {
	switch {
	case load >= OverloadThreshold:
		return LevelCritical
	case load >= HighLoadThreshold:
		return LevelHigh
	case load >= MediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

// ClampLoad bounds load to [0, MaxLoad] for drawing a meter.
func ClampLoad(load float64) float64 {
	return min(max(load, 0), MaxLoad)
}

// StatusLevel grades an agent status: busy is hot, active is good, idle is
// a warning, anything else is neutral.
func StatusLevel(s protocol.AgentStatus) Level {
	switch protocol.AgentStatus(strings.ToLower(string(s))) {
	case protocol.AgentBusy:
		return LevelCritical
	case protocol.AgentActive:
		return LevelLow
	case protocol.AgentIdle:
		return LevelMedium
	default:
		return LevelNone
	}
}

// SortAgents orders agents by name, then id, in place.
func SortAgents(agents []protocol.Agent) {
	slices.SortStableFunc(agents, func(x, y protocol.Agent) int {
		return cmp.Or(cmp.Compare(x.Name, y.Name), cmp.Compare(x.ID, y.ID))
	})
}

// Working lists agents that are busy or report a current task, busy ones
// first, then by mention label.
func Working(agents []protocol.Agent) []protocol.Agent {
	var out []protocol.Agent
	for _, a := range agents {
		if a.NormalizedStatus() == protocol.AgentBusy || strings.TrimSpace(a.CurrentTask) != "" {
			out = append(out, a)
		}
	}
	slices.SortStableFunc(out, func(x, y protocol.Agent) int {
		if bx, by := busyRank(x), busyRank(y); bx != by {
			return bx - by
		}
		return strings.Compare(strings.ToLower(chat.MentionLabel(x)), strings.ToLower(chat.MentionLabel(y)))
	})
	return out
}

func busyRank(a protocol.Agent) int {
	if a.NormalizedStatus() == protocol.AgentBusy {
		return 0
	}
	return 1
}

// AgentSummary is the agents page footer.
type AgentSummary struct {
	Total      int `json:"total"`
	Active     int `json:"active"`
	Idle       int `json:"idle"`
	Overloaded int `json:"overloaded"`
}

// SummarizeAgents counts agents by status and overload.
func SummarizeAgents(agents []protocol.Agent) AgentSummary {
	s := AgentSummary{Total: len(agents)}
	for _, a := range agents {
		switch a.NormalizedStatus() {
		case protocol.AgentActive:
			s.Active++
		case protocol.AgentIdle:
			s.Idle++
		}
		if a.Load >= OverloadThreshold {
			s.Overloaded++
		}
	}
	return s
}
