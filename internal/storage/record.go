package storage

import (
	"encoding/json"
	"fmt"
	"time"
)

// Helpers for entity mappers reading values out of records. The Postgres
// client surfaces jsonb columns as JSON text while the in-memory client keeps
// native maps; mappers use DecodeMap so they work against both.

// DecodeMap coerces a record value into a map.
func DecodeMap(v any) (map[string]any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return val, nil
	case string:
		if val == "" {
			return nil, nil
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(val), &out); err != nil {
			return nil, fmt.Errorf("decode map: %w", err)
		}
		return out, nil
	case []byte:
		return DecodeMap(string(val))
	default:
		return nil, fmt.Errorf("decode map: unsupported type %T", v)
	}
}

// String coerces a record value into a string.
func String(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}

// Int coerces a record value into an int.
func Int(v any) int {
	switch val := v.(type) {
	case int:
		return val
	case int32:
		return int(val)
	case int64:
		return int(val)
	case float64:
		return int(val)
	default:
		return 0
	}
}

// Time coerces a record value into a time.Time. String values are parsed as
// RFC 3339; anything unparseable returns the zero time.
func Time(v any) time.Time {
	switch val := v.(type) {
	case time.Time:
		return val
	case string:
		if t, err := time.Parse(time.RFC3339Nano, val); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339, val); err == nil {
			return t
		}
	}
	return time.Time{}
}
