// Package board derives the overview projections shown on the dashboard:
// task columns, agent health, home counters and cron job tallies.
package board

import (
	"regexp"
	"slices"
	"strings"

	"stockton/pkg/protocol"
)

// missingPriority sorts tasks without a priority after every real one.
const missingPriority = 999

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeStatus trims, lowercases and joins words with underscores.
func NormalizeStatus(s string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "_")
}

// StatusLabel renders a normalized status for display.
func StatusLabel(s string) string {
	n := NormalizeStatus(s)
	if n == "" {
		return "unknown"
	}
	return strings.ReplaceAll(n, "_", " ")
}

// Column is one task bucket.
type Column int

// Task columns.
const (
	Queued Column = iota
	Doing
	Done
)

func (c Column) String() string {
	switch c {
	case Doing:
		return "Currently Doing"
	case Done:
		return "Completed"
	default:
		return "Queued"
	}
}

// ColumnOf classifies a task status.
func ColumnOf(status string) Column {
	switch NormalizeStatus(status) {
	case "in_progress", "in-progress", "active":
		return Doing
	case "completed", "done":
		return Done
	default:
		return Queued
	}
}

// Buckets is the task board split into its three columns.
type Buckets struct {
	Doing  []protocol.Task
	Queued []protocol.Task
	Done   []protocol.Task
}

// Split buckets tasks. Doing and Queued are ordered by priority then most
// recent; Done is newest first. Every task lands in exactly one bucket.
func Split(tasks []protocol.Task) Buckets {
	var b Buckets
	for _, t := range tasks {
		switch ColumnOf(t.Status) {
		case Doing:
			b.Doing = append(b.Doing, t)
		case Done:
			b.Done = append(b.Done, t)
		default:
			b.Queued = append(b.Queued, t)
		}
	}
	slices.SortStableFunc(b.Doing, byPriorityThenRecency)
	slices.SortStableFunc(b.Queued, byPriorityThenRecency)
	slices.SortStableFunc(b.Done, func(x, y protocol.Task) int {
		return y.Timestamp().Compare(x.Timestamp())
	})
	return b
}

func priority(t protocol.Task) int {
	if t.Priority == nil {
		return missingPriority
	}
	return *t.Priority
}

func byPriorityThenRecency(x, y protocol.Task) int {
	if c := priority(x) - priority(y); c != 0 {
		return c
	}
	return y.Timestamp().Compare(x.Timestamp())
}

// Assignee returns the display name of the task's agent, if joined.
func Assignee(t protocol.Task) string {
	if t.Agent != nil && t.Agent.Name != "" {
		if t.Agent.Emoji != "" {
			return t.Agent.Emoji + " " + t.Agent.Name
		}
		return t.Agent.Name
	}
	return t.Assignee
}
