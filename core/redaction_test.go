package core

import "testing"

func TestRedactSensitiveMapPreservesTraceabilityMetadata(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"trace_id":     "trace_1",
		"session_id":   "sess_1",
		"target":       "GameManager",
		"access_token": "secret-token",
		"user_pass":    "hunter2",
		"nested":       map[string]any{"refresh_token": "refresh", "view_id": "view_nested"},
		"prefs":        map[string]string{"token": "tok", "username": "alice"},
	})

	if redacted["trace_id"] != "trace_1" || redacted["session_id"] != "sess_1" {
		t.Fatalf("expected trace ids to remain visible, got %#v", redacted)
	}
	if redacted["target"] != "GameManager" {
		t.Fatalf("expected target to remain visible, got %#v", redacted["target"])
	}
	if redacted["access_token"] != RedactedValue {
		t.Fatalf("expected access_token to be redacted, got %#v", redacted["access_token"])
	}
	if redacted["user_pass"] != RedactedValue {
		t.Fatalf("expected user_pass to be redacted, got %#v", redacted["user_pass"])
	}
	nested, ok := redacted["nested"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested redacted map")
	}
	if nested["refresh_token"] != RedactedValue {
		t.Fatalf("expected nested refresh_token to be redacted, got %#v", nested["refresh_token"])
	}
	if nested["view_id"] != "view_nested" {
		t.Fatalf("expected nested view_id to remain visible, got %#v", nested["view_id"])
	}
	prefs, ok := redacted["prefs"].(map[string]any)
	if !ok {
		t.Fatalf("expected string map to be converted, got %T", redacted["prefs"])
	}
	if prefs["token"] != RedactedValue || prefs["username"] != "alice" {
		t.Fatalf("unexpected prefs redaction: %#v", prefs)
	}
}
