package postgres

import "encoding/json"

// jsonText encodes a value as JSON for a jsonb column. Encoding failures
// surface as invalid JSON text and fail at the database, which is the right
// place for a malformed payload to stop.
func jsonText(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
