package core

import "strings"

const RedactedValue = "[REDACTED]"

// Key fragments that mark a value as secret.
var sensitiveKeyFragments = []string{
	"pass",
	"secret",
	"token",
	"access",
	"authorization",
	"refresh",
	"credential",
	"payload",
}

// Keys that match a fragment but only ever carry identifiers, kept readable
// so log lines stay traceable.
var traceabilityKeys = map[string]bool{
	"session_id":       true,
	"view_id":          true,
	"target":           true,
	"action":           true,
	"wave":             true,
	"wave_index":       true,
	"namespace":        true,
	"encoding":         true,
	"payload_encoding": true,
	"job_id":           true,
	"idempotency_key":  true,
	"trace_id":         true,
	"request_id":       true,
}

// RedactSensitiveMap returns a copy of metadata with secret values replaced
// by RedactedValue. Nested maps and slices are walked; string maps come back
// as map[string]any.
func RedactSensitiveMap(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		if IsSensitiveKey(key) {
			out[key] = RedactedValue
			continue
		}
		out[key] = redactValue(value)
	}
	return out
}

// IsSensitiveKey reports whether values stored under key are secrets.
func IsSensitiveKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || traceabilityKeys[key] {
		return false
	}
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(key, fragment) {
			return true
		}
	}
	return false
}

func redactValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return RedactSensitiveMap(typed)
	case map[string]string:
		widened := make(map[string]any, len(typed))
		for key, item := range typed {
			widened[key] = item
		}
		return RedactSensitiveMap(widened)
	case []any:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, redactValue(item))
		}
		return out
	}
	return value
}
