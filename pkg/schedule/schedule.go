// Package schedule converts between the small family of cron strings the
// dashboard understands, a {count, unit} editing form, and display text.
// It never interprets arbitrary cron expressions.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Unit is the interval unit of an editable schedule.
type Unit string

// Supported units.
const (
	Minutes Unit = "minutes"
	Hours   Unit = "hours"
	Days    Unit = "days"
)

// Named schedules with fixed display text.
const (
	Hourly      = "0 * * * *"
	DailyNine   = "0 9 * * *"
	WeeklyNine  = "0 9 * * 1"
	WeekdayNine = "0 9 * * 1-5"
)

// DefaultSchedule is used when nothing better is known.
const DefaultSchedule = "*/15 * * * *"

// Parts is the {count, unit} editing form of a schedule.
type Parts struct {
	Count int
	Unit  Unit
}

// template pairs an encoder format with its decoder pattern so the two can
// never drift apart.
type template struct {
	unit    Unit
	format  string
	pattern *regexp.Regexp
	noun    string
}

var templates = []template{
	{Minutes, "*/%d * * * *", regexp.MustCompile(`^\*/(\d+)\s+\*\s+\*\s+\*\s+\*$`), "minute"},
	{Hours, "0 */%d * * *", regexp.MustCompile(`^0\s+\*/(\d+)\s+\*\s+\*\s+\*$`), "hour"},
	{Days, "0 0 */%d * *", regexp.MustCompile(`^0\s+0\s+\*/(\d+)\s+\*\s+\*$`), "day"},
}

var literals = map[string]string{
	Hourly:      "Every hour",
	DailyNine:   "Daily at 9:00",
	WeeklyNine:  "Weekly on Monday at 9:00",
	WeekdayNine: "Weekdays at 9:00",
}

// Preset is a one-click schedule choice in the job form.
type Preset struct {
	Label string
	Value string
}

// Presets are offered next to the schedule field.
var Presets = []Preset{
	{"Every 5 min", "*/5 * * * *"},
	{"Every 15 min", "*/15 * * * *"},
	{"Hourly", Hourly},
	{"Daily 9:00", DailyNine},
}

// match returns the template and raw count matched by s.
func match(s string) (template, string, bool) {
	for _, t := range templates {
		if m := t.pattern.FindStringSubmatch(s); m != nil {
			return t, m[1], true
		}
	}
	return template{}, "", false
}

// ToParts decodes s into its editing form. Unrecognized schedules decode to
// every 15 minutes, except the hourly constant which is every 1 hour.
func ToParts(s string) Parts {
	s = strings.TrimSpace(s)
	if t, raw, ok := match(s); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			// Digits that overflow int.
			return Parts{Count: 15, Unit: Minutes}
		}
		return Parts{Count: max(1, n), Unit: t.unit}
	}
	if s == Hourly {
		return Parts{Count: 1, Unit: Hours}
	}
	return Parts{Count: 15, Unit: Minutes}
}

// FromParts encodes an editing form. Counts below 1 are clamped to 1 and
// unknown units encode as minutes.
func FromParts(count int, unit Unit) string {
	count = max(1, count)
	for _, t := range templates {
		if t.unit == unit {
			return fmt.Sprintf(t.format, count)
		}
	}
	return fmt.Sprintf(templates[0].format, count)
}

// String encodes p.
func (p Parts) String() string {
	return FromParts(p.Count, p.Unit)
}

// Humanize returns display text for s. Unrecognized schedules are echoed.
func Humanize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "Not set"
	}
	if text, ok := literals[s]; ok {
		return text
	}
	if t, raw, ok := match(s); ok {
		noun := t.noun
		if raw != "1" {
			noun += "s"
		}
		return fmt.Sprintf("Every %s %s", raw, noun)
	}
	return s
}

// Validate checks that s has five whitespace-separated fields. It does not
// interpret the fields; the external executor owns that.
func Validate(s string) error {
	fields := strings.Fields(s)
	if len(fields) != 5 {
		return fmt.Errorf("schedule %q: want 5 fields, got %d", s, len(fields))
	}
	return nil
}

// ParseUnit parses a unit name, accepting singular and short forms.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minutes", "minute", "min", "mins", "m":
		return Minutes, nil
	case "hours", "hour", "hr", "hrs", "h":
		return Hours, nil
	case "days", "day", "d":
		return Days, nil
	default:
		return "", fmt.Errorf("unknown schedule unit %q", s)
	}
}
