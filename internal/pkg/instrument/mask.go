package instrument

import (
	"encoding/json"
	"net/http"
	"strings"
)

const masked = "***"

// Masker redacts values whose key matches one of the configured field names.
// Matching is case-insensitive and applies at any depth of maps and slices.
type Masker struct {
	keys map[string]struct{}
}

// NewMasker builds a Masker for the given field names; blanks are ignored.
func NewMasker(fields []string) Masker {
	keys := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if field = strings.ToLower(strings.TrimSpace(field)); field != "" {
			keys[field] = struct{}{}
		}
	}
	return Masker{keys: keys}
}

// Empty reports whether the masker has no keys.
func (m Masker) Empty() bool {
	return len(m.keys) == 0
}

// Match reports whether key must be redacted.
func (m Masker) Match(key string) bool {
	_, ok := m.keys[strings.ToLower(key)]
	return ok
}

// Value walks decoded JSON-like data and redacts matching keys.
func (m Masker) Value(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v2 := range val {
			if m.Match(k) {
				out[k] = masked
				continue
			}
			out[k] = m.Value(v2)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, v2 := range val {
			if m.Match(k) {
				out[k] = masked
				continue
			}
			out[k] = v2
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v2 := range val {
			out[i] = m.Value(v2)
		}
		return out
	default:
		return v
	}
}

// JSON decodes payload and returns the redacted value. ok is false when the
// payload is not a JSON object or array.
func (m Masker) JSON(payload []byte) (any, bool) {
	if len(payload) == 0 || (payload[0] != '{' && payload[0] != '[') {
		return nil, false
	}

	var body any
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, false
	}
	return m.Value(body), true
}

// Headers returns a copy of h with matching header values redacted.
func (m Masker) Headers(h http.Header) http.Header {
	if m.Empty() {
		return h
	}

	out := h.Clone()
	for key := range out {
		if m.Match(key) {
			out.Set(key, masked)
		}
	}
	return out
}
