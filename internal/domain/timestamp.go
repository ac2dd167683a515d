package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp is a nullable server time. Values without an offset are read as UTC, and values
// that do not parse decode as unset so a single odd field never fails a whole poll.
type Timestamp struct {
	Time  time.Time
	Valid bool
}

// At builds a set timestamp.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC(), Valid: true}
}

// ParseTimestamp reads a server timestamp string.
func ParseTimestamp(value string) (Timestamp, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return At(t), true
		}
	}
	return Timestamp{}, false
}

// Ptr returns nil when unset.
func (t Timestamp) Ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	*t = Timestamp{}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	if parsed, ok := ParseTimestamp(raw); ok {
		*t = parsed
	}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
}
