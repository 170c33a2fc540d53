package repository

import "encoding/json"

// jsonRawOrString keeps valid JSON text as raw JSON so it is re-emitted
// unchanged; anything else stays a string.
func jsonRawOrString(s string) any {
	if s == "" {
		return s
	}
	var tmp any
	if err := json.Unmarshal([]byte(s), &tmp); err == nil {
		return json.RawMessage([]byte(s))
	}
	return s
}

func marshalJSONB(v any) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}
