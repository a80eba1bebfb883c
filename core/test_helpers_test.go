package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

type sentMessage struct {
	target  InjectionTarget
	payload string
}

type recordingSink struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[string]error
	panicOn map[string]bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{failFor: map[string]error{}, panicOn: map[string]bool{}}
}

func (s *recordingSink) Send(target InjectionTarget, payload string) error {
	s.mu.Lock()
	s.sent = append(s.sent, sentMessage{target: target, payload: payload})
	failure := s.failFor[target.String()]
	shouldPanic := s.panicOn[target.String()]
	s.mu.Unlock()
	if shouldPanic {
		panic("sink exploded")
	}
	return failure
}

func (s *recordingSink) messages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentMessage, len(s.sent))
	copy(out, s.sent)
	return out
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func twoTargetPolicy(delays ...time.Duration) InjectionPolicy {
	return InjectionPolicy{
		Delays:   delays,
		Encoding: PayloadJSONBundle,
		Targets: []InjectionTarget{
			{Name: "A", Action: "M"},
			{Name: "B", Action: "M"},
		},
		Fallback: DefaultFallbackPolicy(),
	}
}

func newTestScheduler(policy InjectionPolicy, opts ...SchedulerOption) (*InjectionScheduler, *VirtualDispatcher, *recordingSink, error) {
	dispatcher := NewVirtualDispatcher()
	sink := newRecordingSink()
	scheduler, err := NewInjectionScheduler(dispatcher, sink, policy, opts...)
	return scheduler, dispatcher, sink, err
}

type failingCodec struct{}

func (failingCodec) Format() string { return "failing" }

func (failingCodec) Encode(CredentialBundle) (string, error) {
	return "", errors.New("unsupported value")
}

func (failingCodec) Decode(string) (CredentialBundle, error) {
	return CredentialBundle{}, errors.New("unsupported value")
}

// failingPreferenceStore fails every call with err.
type failingPreferenceStore struct {
	err error
}

func (s failingPreferenceStore) Get(context.Context, string, string) (string, bool, error) {
	return "", false, s.err
}

func (s failingPreferenceStore) GetAll(context.Context, string) (map[string]string, error) {
	return nil, s.err
}

func (s failingPreferenceStore) Apply(context.Context, PreferenceEdit) error {
	return s.err
}

type memoryJobQueue struct {
	mu         sync.Mutex
	pending    []*JobExecutionMessage
	acked      []*JobExecutionMessage
	nacked     []JobNackOptions
	enqueueErr error
}

func (q *memoryJobQueue) Enqueue(_ context.Context, msg *JobExecutionMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.pending = append(q.pending, msg)
	return nil
}

func (q *memoryJobQueue) Dequeue(context.Context) (JobDelivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, nil
	}
	msg := q.pending[0]
	q.pending = q.pending[1:]
	return &memoryDelivery{queue: q, msg: msg}, nil
}

type memoryDelivery struct {
	queue *memoryJobQueue
	msg   *JobExecutionMessage
}

func (d *memoryDelivery) Message() *JobExecutionMessage {
	return d.msg
}

func (d *memoryDelivery) Ack(context.Context) error {
	d.queue.mu.Lock()
	defer d.queue.mu.Unlock()
	d.queue.acked = append(d.queue.acked, d.msg)
	return nil
}

func (d *memoryDelivery) Nack(_ context.Context, opts JobNackOptions) error {
	d.queue.mu.Lock()
	defer d.queue.mu.Unlock()
	d.queue.nacked = append(d.queue.nacked, opts)
	if opts.Requeue {
		d.queue.pending = append(d.queue.pending, d.msg)
	}
	return nil
}

type recordingHook struct {
	mu     sync.Mutex
	stages []string
}

func (h *recordingHook) record(stage string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stages = append(h.stages, stage)
}

func (h *recordingHook) OnStart(context.Context, JobWorkerEvent)   { h.record("start") }
func (h *recordingHook) OnSuccess(context.Context, JobWorkerEvent) { h.record("success") }
func (h *recordingHook) OnFailure(context.Context, JobWorkerEvent) { h.record("failure") }
func (h *recordingHook) OnRetry(context.Context, JobWorkerEvent)   { h.record("retry") }

// flakyPreferenceStore fails the first failures Apply calls.
type flakyPreferenceStore struct {
	*MemoryPreferenceStore
	mu       sync.Mutex
	failures int
}

func (s *flakyPreferenceStore) Apply(ctx context.Context, edit PreferenceEdit) error {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return errors.New("disk busy")
	}
	s.mu.Unlock()
	return s.MemoryPreferenceStore.Apply(ctx, edit)
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

func boolPtr(value bool) *bool {
	return &value
}
