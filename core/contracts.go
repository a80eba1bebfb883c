package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// MessageSink hands one payload to a named runtime target. The boundary is
// fire-and-forget: a nil error does not mean the runtime received or acted on
// the payload. Implementations are only called from the dispatcher goroutine.
type MessageSink interface {
	Send(target InjectionTarget, payload string) error
}

type MessageSinkFunc func(target InjectionTarget, payload string) error

func (f MessageSinkFunc) Send(target InjectionTarget, payload string) error {
	if f == nil {
		return nil
	}
	return f(target, payload)
}

type CredentialSource interface {
	Read(ctx context.Context) (CredentialBundle, bool)
}

// StateWriter persists a bundle for the runtime to pick up at its own startup.
// Write never reports failure to the caller.
type StateWriter interface {
	Write(ctx context.Context, bundle CredentialBundle)
}

type PreferenceStore interface {
	Get(ctx context.Context, namespace string, key string) (string, bool, error)
	GetAll(ctx context.Context, namespace string) (map[string]string, error)
	Apply(ctx context.Context, edit PreferenceEdit) error
}

// Dispatcher is the single logical timer queue the scheduler posts waves to.
// Tasks posted to one dispatcher never run concurrently with each other.
type Dispatcher interface {
	PostDelayed(delay time.Duration, task func()) DispatchHandle
}

type DispatchHandle interface {
	// Stop prevents the task from running if it has not started yet.
	Stop() bool
}

type StoreProvider interface {
	PreferenceStore() PreferenceStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}
