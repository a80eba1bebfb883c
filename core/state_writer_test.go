package core

import (
	"context"
	"errors"
	"testing"
)

func TestPlayerPrefsWriter_RoundTripsThroughRuntimeLayout(t *testing.T) {
	store := NewMemoryPreferenceStore()
	namespace := RuntimePrefsNamespace("com.sikwin.app", "")
	writer := NewPlayerPrefsWriter(store, namespace)
	bundle := CredentialBundle{
		Token:        "tok1",
		RefreshToken: "ref1",
		Username:     "ravi",
		UserID:       "42",
		Password:     "p@ss w0rd",
	}

	writer.Write(context.Background(), bundle)

	got, err := ReadPlayerPrefs(context.Background(), store, namespace)
	if err != nil {
		t.Fatalf("read player prefs: %v", err)
	}
	if got != bundle {
		t.Fatalf("expected round trip %#v, got %#v", bundle, got)
	}

	values, _ := store.GetAll(context.Background(), namespace)
	for _, key := range []string{"token", "access_token", "USERNAME_KEY", "PASSWORD_KEY", "REFRESH_TOKEN_KEY", "USER_ID_KEY"} {
		if values[key] == "" {
			t.Fatalf("expected alias key %q to be written", key)
		}
	}
	if namespace != "com.sikwin.app.v2.playerprefs" {
		t.Fatalf("unexpected runtime namespace %q", namespace)
	}
}

func TestPlayerPrefsWriter_EmptyFieldsRemoveKeys(t *testing.T) {
	store := NewMemoryPreferenceStore()
	writer := NewPlayerPrefsWriter(store, "app.v2.playerprefs")
	writer.Write(context.Background(), CredentialBundle{Token: "tok1", Password: "pw"})
	writer.Write(context.Background(), CredentialBundle{Token: "tok2"})

	values, _ := store.GetAll(context.Background(), "app.v2.playerprefs")
	if _, ok := values["password"]; ok {
		t.Fatalf("expected password to be removed")
	}
	if _, ok := values["PASSWORD_KEY"]; ok {
		t.Fatalf("expected password alias to be removed")
	}
	if values["token"] != "tok2" || values["access_token"] != "tok2" {
		t.Fatalf("expected token overwrite, got %#v", values)
	}
}

func TestPlayerPrefsWriter_IsIdempotent(t *testing.T) {
	store := NewMemoryPreferenceStore()
	writer := NewPlayerPrefsWriter(store, "app.v2.playerprefs")
	bundle := CredentialBundle{Token: "tok1", Username: "ravi"}
	writer.Write(context.Background(), bundle)
	first, _ := store.GetAll(context.Background(), "app.v2.playerprefs")
	writer.Write(context.Background(), bundle)
	second, _ := store.GetAll(context.Background(), "app.v2.playerprefs")
	if len(first) != len(second) {
		t.Fatalf("expected identical state after repeated write")
	}
	for key, value := range first {
		if second[key] != value {
			t.Fatalf("key %q changed from %q to %q", key, value, second[key])
		}
	}
}

func TestPlayerPrefsWriter_FailureIsSwallowedAndLogged(t *testing.T) {
	logger := newCaptureLogger()
	metrics := &captureMetricsRecorder{}
	writer := NewPlayerPrefsWriter(
		failingPreferenceStore{err: errors.New("read-only filesystem")},
		"app.v2.playerprefs",
		WithStateWriterLogger(logger),
		WithStateWriterMetrics(metrics),
	)

	writer.Write(context.Background(), CredentialBundle{Token: "tok1"})

	if !hasLogMessage(logger.snapshot(), "warn", "runtime state write failed") {
		t.Fatalf("expected write failure to be logged")
	}
	if !hasCounter(metrics.counters, MetricStateWrite, "failed") {
		t.Fatalf("expected failed state write counter")
	}
	for _, record := range logger.snapshot() {
		for key, value := range record.fields {
			if value == "tok1" {
				t.Fatalf("token leaked into log field %q", key)
			}
		}
	}
}

func TestQueuedStateWriter_WorkerAppliesQueuedWrite(t *testing.T) {
	queue := &memoryJobQueue{}
	store := NewMemoryPreferenceStore()
	writer := NewQueuedStateWriter(queue, "app.v2.playerprefs")
	hook := &recordingHook{}

	writer.Write(context.Background(), CredentialBundle{Token: "tok1", Username: "ravi"})
	if len(queue.pending) != 1 || queue.pending[0].JobID != JobIDStateWrite {
		t.Fatalf("expected one state write job, got %#v", queue.pending)
	}
	if values, _ := store.GetAll(context.Background(), "app.v2.playerprefs"); len(values) != 0 {
		t.Fatalf("expected nothing written before the worker runs")
	}

	worker, err := NewStateWriteWorker(queue, store, StateWriteWorkerConfig{}, hook)
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}
	processed, err := worker.ProcessNext(context.Background())
	if err != nil || !processed {
		t.Fatalf("expected processed delivery, got processed=%v err=%v", processed, err)
	}

	got, err := ReadPlayerPrefs(context.Background(), store, "app.v2.playerprefs")
	if err != nil {
		t.Fatalf("read player prefs: %v", err)
	}
	if got.Token != "tok1" || got.Username != "ravi" {
		t.Fatalf("unexpected bundle %#v", got)
	}
	if len(queue.acked) != 1 {
		t.Fatalf("expected delivery to be acked")
	}
	if len(hook.stages) != 2 || hook.stages[0] != "start" || hook.stages[1] != "success" {
		t.Fatalf("unexpected hook stages %#v", hook.stages)
	}

	processed, err = worker.ProcessNext(context.Background())
	if err != nil || processed {
		t.Fatalf("expected empty queue, got processed=%v err=%v", processed, err)
	}
}

func TestStateWriteWorker_RetriesThenDeadLetters(t *testing.T) {
	queue := &memoryJobQueue{}
	store := &flakyPreferenceStore{MemoryPreferenceStore: NewMemoryPreferenceStore(), failures: 10}
	hook := &recordingHook{}
	worker, err := NewStateWriteWorker(queue, store, StateWriteWorkerConfig{MaxAttempts: 2}, hook)
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}
	if err := queue.Enqueue(context.Background(), StateWriteMessage("app.v2.playerprefs", CredentialBundle{Token: "tok1"})); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := worker.ProcessNext(context.Background()); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}
	if len(queue.nacked) != 2 {
		t.Fatalf("expected two nacks, got %d", len(queue.nacked))
	}
	if !queue.nacked[0].Requeue || queue.nacked[0].Delay != defaultRetryInitialBackoff {
		t.Fatalf("expected first nack to requeue with delay, got %#v", queue.nacked[0])
	}
	if !queue.nacked[1].DeadLetter || queue.nacked[1].Requeue {
		t.Fatalf("expected final nack to dead letter, got %#v", queue.nacked[1])
	}
	if len(queue.pending) != 0 {
		t.Fatalf("expected no pending deliveries after dead letter")
	}
	if hook.stages[len(hook.stages)-1] != "failure" {
		t.Fatalf("expected failure hook last, got %#v", hook.stages)
	}
}

func TestStateWriteWorker_RecoversAfterTransientFailure(t *testing.T) {
	queue := &memoryJobQueue{}
	store := &flakyPreferenceStore{MemoryPreferenceStore: NewMemoryPreferenceStore(), failures: 1}
	worker, err := NewStateWriteWorker(queue, store, DefaultStateWriteWorkerConfig(), nil)
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}
	_ = queue.Enqueue(context.Background(), StateWriteMessage("app.v2.playerprefs", CredentialBundle{Token: "tok1"}))

	for i := 0; i < 2; i++ {
		if _, err := worker.ProcessNext(context.Background()); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}
	if len(queue.acked) != 1 {
		t.Fatalf("expected write to succeed on retry")
	}
	got, _ := ReadPlayerPrefs(context.Background(), store, "app.v2.playerprefs")
	if got.Token != "tok1" {
		t.Fatalf("expected token after retry, got %#v", got)
	}
}

func TestQueuedStateWriter_EnqueueFailureIsSwallowed(t *testing.T) {
	logger := newCaptureLogger()
	queue := &memoryJobQueue{enqueueErr: errors.New("queue full")}
	writer := NewQueuedStateWriter(queue, "app.v2.playerprefs", WithStateWriterLogger(logger))
	writer.Write(context.Background(), CredentialBundle{Token: "tok1"})
	if !hasLogMessage(logger.snapshot(), "warn", "runtime state write enqueue failed") {
		t.Fatalf("expected enqueue failure to be logged")
	}
}

func TestStateWriteMessage_RejectsForeignJobs(t *testing.T) {
	if _, _, err := stateWriteFromMessage(&JobExecutionMessage{JobID: "other"}); err == nil {
		t.Fatalf("expected foreign job id to be rejected")
	}
	msg := StateWriteMessage("", CredentialBundle{Token: "tok1"})
	if _, _, err := stateWriteFromMessage(msg); err == nil {
		t.Fatalf("expected missing namespace to be rejected")
	}
}
