package main

import (
	"strings"
)

// helpBinding represents a key binding with its description.
type helpBinding struct {
	key  string
	desc string
}

var globalBindings = []helpBinding{
	{"1-7 or tab/shift+tab", "Switch views"},
	{"r", "Refresh everything"},
	{"?", "Toggle help"},
	{"q or ctrl+c", "Quit"},
}

// bindingsForView returns help bindings for the given view, view-specific first.
func bindingsForView(view ViewType) []helpBinding {
	var own []helpBinding
	switch view {
	case CronView:
		own = []helpBinding{
			{"j/k or ↑/↓", "Select job"},
			{"/ or n", "Describe a job to the copilot"},
			{"enter", "Create the suggested job"},
			{"t", "Toggle enabled"},
			{"d", "Delete (asks first)"},
			{"a", "Cycle owner filter"},
		}
	case WorkflowsView:
		own = []helpBinding{
			{"/", "Filter by name or id"},
			{"esc", "Clear filter"},
		}
	case ChatView:
		own = []helpBinding{
			{"enter", "Send"},
			{"ctrl+r", "Reply to the latest agent message"},
			{"esc", "Cancel reply, then leave the input"},
			{"pgup/pgdown", "Scroll"},
		}
	}
	return append(own, globalBindings...)
}

func renderHelp(view ViewType, styles Styles) string {
	var sb strings.Builder
	sb.WriteString(styles.Header.Render(view.String()+" keys") + "\n")
	for _, b := range bindingsForView(view) {
		sb.WriteString(styles.Header.Render(padRight(b.key, 22)))
		sb.WriteString(styles.Muted.Render(b.desc))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func padRight(s string, n int) string {
	if w := len([]rune(s)); w < n {
		return s + strings.Repeat(" ", n-w)
	}
	return s + " "
}
