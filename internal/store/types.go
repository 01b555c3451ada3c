package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timeLayout is fixed width so TEXT columns in SQLite compare chronologically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Timestamp is a UTC instant stored as fixed-width text in SQLite and as
// TIMESTAMPTZ in PostgreSQL.
type Timestamp struct {
	time.Time
}

// Now returns the current time truncated to the stored precision.
func Now() Timestamp {
	return NewTimestamp(time.Now())
}

// NewTimestamp converts t to UTC at microsecond precision.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Microsecond)}
}

func (t Timestamp) Value() (driver.Value, error) {
	return t.UTC().Format(timeLayout), nil
}

func (t *Timestamp) Scan(src any) error {
	switch value := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = value.UTC()
		return nil
	case string:
		return t.parse(value)
	case []byte:
		return t.parse(string(value))
	default:
		return fmt.Errorf("timestamp: unsupported source %T", src)
	}
}

func (t *Timestamp) parse(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("timestamp: parse %q", raw)
}

func timestampPtr(t Timestamp) *Timestamp {
	return &t
}

// JSONObject is an opaque JSON object column.
type JSONObject map[string]any

func (j JSONObject) Value() (driver.Value, error) {
	if j == nil {
		return "{}", nil
	}
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("marshal json object: %w", err)
	}
	return string(data), nil
}

func (j *JSONObject) Scan(src any) error {
	data, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*j = JSONObject{}
		return nil
	}
	out := JSONObject{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("decode json object: %w", err)
	}
	*j = out
	return nil
}

// String returns the trimmed string value stored under key.
func (j JSONObject) String(key string) string {
	if j == nil {
		return ""
	}
	value, ok := j[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

// IDList is a JSON array of identifiers.
type IDList []string

func (l IDList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, fmt.Errorf("marshal id list: %w", err)
	}
	return string(data), nil
}

func (l *IDList) Scan(src any) error {
	data, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		*l = IDList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("decode id list: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}

// Contains reports whether id is in the list.
func (l IDList) Contains(id string) bool {
	for _, candidate := range l {
		if candidate == id {
			return true
		}
	}
	return false
}

func jsonBytes(src any) ([]byte, error) {
	switch value := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return value, nil
	case string:
		return []byte(value), nil
	default:
		return nil, fmt.Errorf("json column: unsupported source %T", src)
	}
}
