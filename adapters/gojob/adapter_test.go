package gojob

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-authbridge/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

func TestMessageMappingRoundTrip(t *testing.T) {
	original := core.StateWriteMessage("com.sikwin.app.v2.playerprefs", core.CredentialBundle{
		Token:    "tok1",
		Username: "alice",
	})
	original.DedupPolicy = "drop"

	converted := ToExecutionMessage(original)
	if converted == nil {
		t.Fatalf("expected converted message")
	}
	if converted.JobID != JobIDStateWrite {
		t.Fatalf("expected state write job id, got %q", converted.JobID)
	}
	roundTrip := FromExecutionMessage(converted)
	if roundTrip.IdempotencyKey != original.IdempotencyKey {
		t.Fatalf("expected idempotency key %q, got %q", original.IdempotencyKey, roundTrip.IdempotencyKey)
	}
	if roundTrip.DedupPolicy != "drop" {
		t.Fatalf("expected dedup policy drop, got %q", roundTrip.DedupPolicy)
	}
	if len(roundTrip.Parameters) != len(original.Parameters) {
		t.Fatalf("expected parameters to survive mapping, got %#v", roundTrip.Parameters)
	}
	converted.Parameters["extra"] = true
	if _, leaked := original.Parameters["extra"]; leaked {
		t.Fatalf("expected mapping to copy parameters")
	}
}

func TestQueuedStateWriterAndWorker_DrainIntoStore(t *testing.T) {
	ctx := context.Background()
	enqueuer := &stubQueueEnqueuer{}
	namespace := core.RuntimePrefsNamespace(core.DefaultAppID, "")

	writer := NewQueuedStateWriter(enqueuer, namespace)
	writer.Write(ctx, core.CredentialBundle{Token: "tok1", UserID: "42"})
	if enqueuer.last == nil || enqueuer.last.JobID != JobIDStateWrite {
		t.Fatalf("expected state write enqueued on the go-job queue")
	}

	delivery := &stubQueueDelivery{msg: enqueuer.last}
	store := core.NewMemoryPreferenceStore()
	w, err := NewStateWriteWorker(&stubQueueDequeuer{delivery: delivery}, store, DefaultStateWriteRetryPolicy(), nil)
	if err != nil {
		t.Fatalf("new state write worker: %v", err)
	}
	processed, err := w.ProcessNext(ctx)
	if err != nil || !processed {
		t.Fatalf("expected delivery processed, got processed=%t err=%v", processed, err)
	}
	if !delivery.acked {
		t.Fatalf("expected ack on underlying delivery")
	}
	state, err := core.ReadPlayerPrefs(ctx, store, namespace)
	if err != nil {
		t.Fatalf("read player prefs: %v", err)
	}
	if state.Token != "tok1" || state.UserID != "42" {
		t.Fatalf("unexpected runtime state %#v", state)
	}
}

func TestDequeuerAdapter_EmptyQueue(t *testing.T) {
	adapter := NewDequeuerAdapter(&stubQueueDequeuer{}, RetryPolicy{})
	delivery, err := adapter.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if delivery != nil {
		t.Fatalf("expected nil delivery for an empty queue, got %#v", delivery)
	}
}

func TestNackRetryPolicyBoundaries(t *testing.T) {
	ctx := context.Background()
	rawDelivery := &stubQueueDelivery{
		msg: &job.ExecutionMessage{JobID: JobIDStateWrite},
	}
	adapter := NewDeliveryAdapter(rawDelivery, RetryPolicy{
		MaxAttempts:     3,
		MaxDelay:        10 * time.Second,
		DeadLetterOnMax: true,
	})

	if err := adapter.NackForAttempt(ctx, core.JobNackOptions{
		Delay:   30 * time.Second,
		Requeue: true,
		Reason:  "transient",
	}, 1); err != nil {
		t.Fatalf("nack attempt 1: %v", err)
	}
	if rawDelivery.nackOpts.Delay != 10*time.Second {
		t.Fatalf("expected delay to be bounded, got %s", rawDelivery.nackOpts.Delay)
	}
	if !rawDelivery.nackOpts.Requeue {
		t.Fatalf("expected message to be requeued before max attempts")
	}

	if err := adapter.NackForAttempt(ctx, core.JobNackOptions{
		Delay:   time.Second,
		Requeue: true,
		Reason:  "still failing",
	}, 3); err != nil {
		t.Fatalf("nack max attempt: %v", err)
	}
	if rawDelivery.nackOpts.Requeue || !rawDelivery.nackOpts.DeadLetter {
		t.Fatalf("expected dead letter without requeue on max attempts, got %#v", rawDelivery.nackOpts)
	}

	if err := adapter.Nack(ctx, core.JobNackOptions{DeadLetter: true, Requeue: true}); err != nil {
		t.Fatalf("nack dead letter: %v", err)
	}
	if rawDelivery.nackOpts.Requeue {
		t.Fatalf("expected explicit dead letter to win over requeue")
	}
}

func TestRetryPolicy_WorkerConfig(t *testing.T) {
	cfg := RetryPolicy{MaxAttempts: 5, MaxDelay: 100 * time.Millisecond}.WorkerConfig()
	if cfg.MaxAttempts != 5 {
		t.Fatalf("expected max attempts 5, got %d", cfg.MaxAttempts)
	}
	if cfg.RetryBackoff != 100*time.Millisecond {
		t.Fatalf("expected backoff capped to max delay, got %s", cfg.RetryBackoff)
	}
	if cfg.MaxBackoff != 100*time.Millisecond {
		t.Fatalf("expected max backoff from policy, got %s", cfg.MaxBackoff)
	}
	if (RetryPolicy{}).WorkerConfig() != core.DefaultStateWriteWorkerConfig() {
		t.Fatalf("expected zero policy to keep worker defaults")
	}
}

func TestWorkerHookAdapterEventMapping(t *testing.T) {
	now := time.Now().UTC().Add(-time.Second)
	coreHook := &capturingHook{}
	adapter := NewWorkerHookAdapter(coreHook)

	evt := worker.Event{
		Message: &job.ExecutionMessage{
			JobID:          JobIDStateWrite,
			IdempotencyKey: "idem-1",
		},
		Attempt:   2,
		Delay:     5 * time.Second,
		Err:       errors.New("retry"),
		StartedAt: now,
		Duration:  250 * time.Millisecond,
	}

	adapter.OnRetry(context.Background(), evt)
	if coreHook.last.Message == nil || coreHook.last.Message.JobID != JobIDStateWrite {
		t.Fatalf("expected job id mapping, got %#v", coreHook.last.Message)
	}
	if coreHook.last.Attempt != 2 || coreHook.last.Delay != 5*time.Second {
		t.Fatalf("unexpected attempt/delay mapping %#v", coreHook.last)
	}
	if coreHook.last.Duration != 250*time.Millisecond || coreHook.last.StartedAt.IsZero() {
		t.Fatalf("expected timing mapping")
	}
	if coreHook.last.Err == nil || coreHook.last.Err.Error() != "retry" {
		t.Fatalf("expected error mapping")
	}
}

type stubQueueEnqueuer struct {
	last *job.ExecutionMessage
}

func (s *stubQueueEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	s.last = msg
	return nil
}

type stubQueueDequeuer struct {
	delivery queue.Delivery
}

func (s *stubQueueDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	if s.delivery == nil {
		return nil, nil
	}
	delivery := s.delivery
	s.delivery = nil
	return delivery, nil
}

type stubQueueDelivery struct {
	msg      *job.ExecutionMessage
	acked    bool
	nackOpts queue.NackOptions
}

func (s *stubQueueDelivery) Message() *job.ExecutionMessage {
	return s.msg
}

func (s *stubQueueDelivery) Ack(context.Context) error {
	s.acked = true
	return nil
}

func (s *stubQueueDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	s.nackOpts = opts
	return nil
}

type capturingHook struct {
	last core.JobWorkerEvent
}

func (h *capturingHook) OnStart(context.Context, core.JobWorkerEvent)   {}
func (h *capturingHook) OnSuccess(context.Context, core.JobWorkerEvent) {}
func (h *capturingHook) OnFailure(context.Context, core.JobWorkerEvent) {}
func (h *capturingHook) OnRetry(_ context.Context, event core.JobWorkerEvent) {
	h.last = event
}
