package protocol

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"
)

// Row is a single backend record as delivered on the wire. Fields beyond id and
// created_at are opaque to the reconciler.
type Row map[string]any

// timeLayouts are the timestamp shapes seen from PostgREST and realtime payloads.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ID returns the row identifier. Numeric ids (JSON numbers) are rendered in
// decimal so that they key the same way as their string form.
func (r Row) ID() (string, bool) {
	v, ok := r["id"]
	if !ok || v == nil {
		return "", false
	}
	switch id := v.(type) {
	case string:
		return id, true
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case int:
		return strconv.Itoa(id), true
	case int64:
		return strconv.FormatInt(id, 10), true
	case json.Number:
		return id.String(), true
	default:
		return fmt.Sprint(id), true
	}
}

// CreatedAt parses created_at. Missing or unparsable values yield the zero time,
// which sorts before every real timestamp.
func (r Row) CreatedAt() time.Time {
	return r.Time("created_at")
}

// Time parses the named timestamp field.
func (r Row) Time(key string) time.Time {
	switch v := r[key].(type) {
	case time.Time:
		return v
	case string:
		return ParseTime(v)
	default:
		return time.Time{}
	}
}

// String returns a string field, or "" when it is absent or not a string.
func (r Row) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	return maps.Clone(r)
}

// ParseTime parses a backend timestamp; unparsable input yields the zero time.
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// DecodeRows converts generic rows into typed records.
func DecodeRows[T any](rows []Row) ([]T, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("marshal rows: %w", err)
	}
	out := make([]T, 0, len(rows))
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return out, nil
}

// EncodeRow converts a typed record into a generic row.
func EncodeRow(v any) (Row, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	var row Row
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return row, nil
}

// Change is a realtime row change pushed by the backend.
type Change struct {
	Type      string `json:"type"`
	Table     string `json:"table"`
	Record    Row    `json:"record,omitempty"`
	OldRecord Row    `json:"old_record,omitempty"`
}

// RowID is a record identifier that decodes from either a JSON string or number.
type RowID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *RowID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = RowID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("row id: %w", err)
	}
	*id = RowID(n.String())
	return nil
}

// String implements fmt.Stringer.
func (id RowID) String() string { return string(id) }
