package core

import (
	"testing"
	"time"
)

func TestExponentialBackoff_DoublesUntilCapped(t *testing.T) {
	backoff := ExponentialBackoff{Initial: 100 * time.Millisecond, Max: time.Second}
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, expected := range want {
		if got := backoff.NextDelay(i + 1); got != expected {
			t.Fatalf("attempt %d: expected %s, got %s", i+1, expected, got)
		}
	}
	if got := backoff.NextDelay(0); got != 100*time.Millisecond {
		t.Fatalf("expected attempt 0 to clamp to the first delay, got %s", got)
	}
}

func TestExponentialBackoff_Defaults(t *testing.T) {
	var backoff ExponentialBackoff
	if got := backoff.NextDelay(1); got != defaultRetryInitialBackoff {
		t.Fatalf("expected default initial delay, got %s", got)
	}
	if got := backoff.NextDelay(100); got != defaultRetryMaxBackoff {
		t.Fatalf("expected default cap, got %s", got)
	}
	if got := (ExponentialBackoff{Initial: time.Minute, Max: time.Second}).NextDelay(1); got != time.Second {
		t.Fatalf("expected initial above max to be capped, got %s", got)
	}
}
