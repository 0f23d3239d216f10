package chat

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"stockton/pkg/protocol"
)

// PreviewLength caps the quoted text shown for a reply target.
const PreviewLength = 80

// ReplyTarget is the message an outgoing post replies to.
type ReplyTarget struct {
	ID          string
	AgentID     string
	DisplayName string
	Preview     string
}

// NewReplyTarget describes msg as a reply target.
func NewReplyTarget(msg protocol.Message) ReplyTarget {
	name := msg.AgentID
	if msg.Agent != nil && msg.Agent.Name != "" {
		name = msg.Agent.Name
	}
	if name == "" {
		name = "agent"
	}
	return ReplyTarget{
		ID:          msg.ID.String(),
		AgentID:     strings.TrimSpace(msg.AgentID),
		DisplayName: FormatAgentDisplayName(name),
		Preview:     protocol.Truncate(msg.Content, PreviewLength),
	}
}

// ReplyPrefix puts an @mention of agentID at the front of input unless it is
// already there.
func ReplyPrefix(input, agentID string) string {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return input
	}
	mention := "@" + agentID
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return mention + " "
	}
	if strings.HasPrefix(strings.ToLower(trimmed), strings.ToLower(mention)+" ") {
		return input
	}
	return mention + " " + trimmed
}

// AddMention appends an @mention of agentID to input, followed by a space.
func AddMention(input, agentID string) string {
	mention := "@" + agentID
	if strings.TrimSpace(input) == "" {
		return mention + " "
	}
	last, _ := utf8.DecodeLastRuneInString(input)
	if unicode.IsSpace(last) {
		return input + mention + " "
	}
	return input + " " + mention + " "
}

// FormatAgentDisplayName capitalizes the first letter; blank input reads "Agent".
func FormatAgentDisplayName(v string) string {
	text := strings.TrimSpace(v)
	if text == "" {
		return "Agent"
	}
	r, size := utf8.DecodeRuneInString(text)
	return string(unicode.ToUpper(r)) + text[size:]
}

var leadingSymbols = regexp.MustCompile(`^[^A-Za-z0-9]+`)

// MentionLabel is the short title shown on an agent's mention chip. Names like
// "🤖 ramon - ops lead" become "Ramon"; agents without a name fall back to
// their id.
func MentionLabel(a protocol.Agent) string {
	if name := strings.TrimSpace(a.Name); name != "" {
		cleaned := leadingSymbols.ReplaceAllString(name, "")
		cleaned, _, _ = strings.Cut(cleaned, " - ")
		if cleaned = strings.TrimSpace(cleaned); cleaned != "" {
			return titleCase(strings.ToLower(cleaned))
		}
	}
	id := a.ID
	if id == "" {
		id = "agent"
	}
	return titleCase(id)
}

func titleCase(v string) string {
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == '_' || r == '-' })
	for i, p := range parts {
		r, size := utf8.DecodeRuneInString(p)
		parts[i] = string(unicode.ToUpper(r)) + p[size:]
	}
	return strings.Join(parts, " ")
}

// MentionableAgents drops agents without an id and the operator itself.
func MentionableAgents(agents []protocol.Agent, operatorID string) []protocol.Agent {
	out := make([]protocol.Agent, 0, len(agents))
	for _, a := range agents {
		if a.ID != "" && a.ID != operatorID {
			out = append(out, a)
		}
	}
	return out
}

// SortAgentsForMentions orders agents by label, then id, ignoring case. The
// input is not modified.
func SortAgentsForMentions(agents []protocol.Agent) []protocol.Agent {
	out := slices.Clone(agents)
	slices.SortStableFunc(out, func(a, b protocol.Agent) int {
		if c := compareFold(MentionLabel(a), MentionLabel(b)); c != 0 {
			return c
		}
		return compareFold(a.ID, b.ID)
	})
	return out
}

func compareFold(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}
