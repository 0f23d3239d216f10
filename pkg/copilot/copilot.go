// Package copilot pre-fills the cron job form from a free-text prompt using a
// fixed, ordered set of keyword rules. A miss is never an error: every field
// falls through to a documented default.
package copilot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"stockton/pkg/backend"
	"stockton/pkg/protocol"
	"stockton/pkg/schedule"
)

// Suggestion is a best-effort job form fill.
type Suggestion struct {
	CreatedBy   string `json:"created_by"`
	Schedule    string `json:"schedule"`
	Command     string `json:"command"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Empty reports whether nothing was suggested.
func (s Suggestion) Empty() bool {
	return s == Suggestion{}
}

// ApplyTo copies the suggestion into a job form. The owner is only replaced
// when an agent was recognized, so a form default survives a miss.
func (s Suggestion) ApplyTo(in *backend.JobInput) {
	in.Name = s.Name
	in.Schedule = s.Schedule
	in.Command = s.Command
	in.Description = s.Description
	if s.CreatedBy != "" {
		in.CreatedBy = s.CreatedBy
	}
}

var (
	mentionRe = regexp.MustCompile(`@([a-z0-9_-]+)`)
	minutesRe = regexp.MustCompile(`every\s+(\d+)\s*(minute|min|minutes|mins)\b`)
	hoursRe   = regexp.MustCompile(`every\s+(\d+)\s*(hour|hours|hr|hrs)\b`)
)

// Parse extracts a job suggestion from prompt. Whitespace-only input yields an
// empty Suggestion.
func Parse(prompt string, agents []protocol.Agent) Suggestion {
	text := strings.TrimSpace(prompt)
	if text == "" {
		return Suggestion{}
	}
	lower := strings.ToLower(text)

	createdBy := agentByID(lower, agents)
	if createdBy == "" {
		createdBy = agentByName(lower, agents)
	}
	command := Command(lower)

	return Suggestion{
		CreatedBy:   createdBy,
		Schedule:    Schedule(lower),
		Command:     command,
		Name:        JobName(command),
		Description: text,
	}
}

// agentByID resolves the first @mention against known agent ids.
func agentByID(lower string, agents []protocol.Agent) string {
	m := mentionRe.FindStringSubmatch(lower)
	if m == nil {
		return ""
	}
	for _, a := range agents {
		if strings.ToLower(a.ID) == m[1] {
			return a.ID
		}
	}
	return ""
}

// agentByName returns the first agent whose display name appears in lower.
// Agents without a name never match.
func agentByName(lower string, agents []protocol.Agent) string {
	for _, a := range agents {
		name := strings.ToLower(strings.TrimSpace(a.Name))
		if name != "" && strings.Contains(lower, name) {
			return a.ID
		}
	}
	return ""
}

// Schedule picks a schedule string from a lowercased prompt.
func Schedule(lower string) string {
	if m := minutesRe.FindStringSubmatch(lower); m != nil {
		return schedule.FromParts(atoi(m[1]), schedule.Minutes)
	}
	if m := hoursRe.FindStringSubmatch(lower); m != nil {
		return schedule.FromParts(atoi(m[1]), schedule.Hours)
	}
	switch {
	case strings.Contains(lower, "hourly"):
		return schedule.Hourly
	case strings.Contains(lower, "daily"):
		return schedule.DailyNine
	case strings.Contains(lower, "weekly"):
		return schedule.WeeklyNine
	case strings.Contains(lower, "weekdays"):
		return schedule.WeekdayNine
	case strings.Contains(lower, "every 15"):
		return "*/15 * * * *"
	case strings.Contains(lower, "every 5"):
		return "*/5 * * * *"
	default:
		return schedule.DefaultSchedule
	}
}

// atoi parses a digit run; overflow clamps to 1 via FromParts.
func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return n
}

// Command picks a command token from a lowercased prompt.
func Command(lower string) string {
	switch {
	case strings.Contains(lower, "health"):
		return protocol.CommandHealthCheck
	case strings.Contains(lower, "report"), strings.Contains(lower, "summary"):
		return protocol.CommandDailyReport
	case strings.Contains(lower, "backup"):
		return protocol.CommandBackup
	case strings.Contains(lower, "sync"):
		return protocol.CommandSync
	default:
		return protocol.CommandAgentTask
	}
}

var wordStartRe = regexp.MustCompile(`\b\w`)

// JobName turns a command token into a title: "run_backup()" -> "Run Backup".
func JobName(command string) string {
	if command == "" {
		command = "agent_job"
	}
	name := strings.ReplaceAll(command, "()", "")
	name = strings.ReplaceAll(name, "_", " ")
	return wordStartRe.ReplaceAllStringFunc(name, strings.ToUpper)
}

// String renders the suggestion for terminal output.
func (s Suggestion) String() string {
	if s.Empty() {
		return "(no suggestion)"
	}
	owner := s.CreatedBy
	if owner == "" {
		owner = "-"
	}
	return fmt.Sprintf("name=%q schedule=%q (%s) command=%q agent=%s",
		s.Name, s.Schedule, schedule.Humanize(s.Schedule), s.Command, owner)
}
