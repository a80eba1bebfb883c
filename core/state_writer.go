package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultRuntimePrefsSuffix = ".v2.playerprefs"

	JobIDStateWrite = "authbridge.state.write"

	stateWriteParamNamespace = "namespace"
	stateWriteParamToken     = "token"
	stateWriteParamRefresh   = "refresh_token"
	stateWriteParamUsername  = "username"
	stateWriteParamUserID    = "user_id"
	stateWriteParamPassword  = "password"
)

// playerPrefsKeys lists the keys each field is written under, canonical first.
// Different runtime builds read different names.
var playerPrefsKeys = struct {
	token, refresh, username, userID, password []string
}{
	token:    []string{"token", "access_token"},
	refresh:  []string{"refresh_token", "REFRESH_TOKEN_KEY"},
	username: []string{"username", "USERNAME_KEY"},
	userID:   []string{"user_id", "USER_ID_KEY"},
	password: []string{"password", "PASSWORD_KEY"},
}

// RuntimePrefsNamespace returns the settings namespace the runtime reads at
// startup for appID.
func RuntimePrefsNamespace(appID string, suffix string) string {
	if strings.TrimSpace(suffix) == "" {
		suffix = DefaultRuntimePrefsSuffix
	}
	return strings.TrimSpace(appID) + suffix
}

// PlayerPrefsEdit maps bundle onto the runtime settings layout. Empty fields
// remove every alias of their key.
func PlayerPrefsEdit(namespace string, bundle CredentialBundle) PreferenceEdit {
	edit := PreferenceEdit{Namespace: namespace, Set: map[string]string{}}
	put := func(keys []string, value string) {
		for _, key := range keys {
			if value == "" {
				edit.Remove = append(edit.Remove, key)
				continue
			}
			edit.Set[key] = value
		}
	}
	put(playerPrefsKeys.token, bundle.Token)
	put(playerPrefsKeys.refresh, bundle.RefreshToken)
	put(playerPrefsKeys.username, bundle.Username)
	put(playerPrefsKeys.userID, bundle.UserID)
	put(playerPrefsKeys.password, bundle.Password)
	return edit
}

// ReadPlayerPrefs reads a bundle back from the runtime settings layout,
// preferring canonical keys over aliases.
func ReadPlayerPrefs(ctx context.Context, store PreferenceStore, namespace string) (CredentialBundle, error) {
	if store == nil {
		return CredentialBundle{}, fmt.Errorf("core: preference store is required")
	}
	values, err := store.GetAll(ctx, namespace)
	if err != nil {
		return CredentialBundle{}, StorageFailure(err, namespace)
	}
	pick := func(keys []string) string {
		for _, key := range keys {
			if value := values[key]; value != "" {
				return value
			}
		}
		return ""
	}
	return CredentialBundle{
		Token:        pick(playerPrefsKeys.token),
		RefreshToken: pick(playerPrefsKeys.refresh),
		Username:     pick(playerPrefsKeys.username),
		UserID:       pick(playerPrefsKeys.userID),
		Password:     pick(playerPrefsKeys.password),
	}, nil
}

// PlayerPrefsWriter writes bundles synchronously into the runtime settings
// namespace.
type PlayerPrefsWriter struct {
	store     PreferenceStore
	namespace string
	telemetry telemetry
}

type StateWriterOption func(*stateWriterOptions)

type stateWriterOptions struct {
	logger  Logger
	metrics MetricsRecorder
	now     func() time.Time
}

func WithStateWriterLogger(logger Logger) StateWriterOption {
	return func(o *stateWriterOptions) {
		o.logger = logger
	}
}

func WithStateWriterMetrics(recorder MetricsRecorder) StateWriterOption {
	return func(o *stateWriterOptions) {
		o.metrics = recorder
	}
}

func WithStateWriterClock(now func() time.Time) StateWriterOption {
	return func(o *stateWriterOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func resolveStateWriterOptions(opts []StateWriterOption) stateWriterOptions {
	resolved := stateWriterOptions{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&resolved)
	}
	return resolved
}

func NewPlayerPrefsWriter(store PreferenceStore, namespace string, opts ...StateWriterOption) *PlayerPrefsWriter {
	resolved := resolveStateWriterOptions(opts)
	return &PlayerPrefsWriter{
		store:     store,
		namespace: namespace,
		telemetry: newTelemetry(resolved.logger, resolved.metrics),
	}
}

func (w *PlayerPrefsWriter) Namespace() string {
	if w == nil {
		return ""
	}
	return w.namespace
}

func (w *PlayerPrefsWriter) Write(ctx context.Context, bundle CredentialBundle) {
	if err := w.write(ctx, bundle); err != nil {
		w.telemetry.warn(ctx, "runtime state write failed", map[string]any{
			"namespace": w.Namespace(),
			"error":     err.Error(),
		})
	}
}

// write is Write with the failure reported, for callers that retry.
func (w *PlayerPrefsWriter) write(ctx context.Context, bundle CredentialBundle) error {
	if w == nil || w.store == nil {
		return StorageFailure(fmt.Errorf("core: preference store is required"), "")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := w.store.Apply(ctx, PlayerPrefsEdit(w.namespace, bundle)); err != nil {
		w.telemetry.count(ctx, MetricStateWrite, 1, map[string]string{"status": "failed"})
		return StorageFailure(err, w.namespace)
	}
	w.telemetry.count(ctx, MetricStateWrite, 1, map[string]string{"status": "ok"})
	w.telemetry.debug(ctx, "runtime state written", mergeFields(bundle.redactedFields(), map[string]any{
		"namespace": w.namespace,
	}))
	return nil
}

// QueuedStateWriter hands writes to a job queue so storage latency stays off
// the dispatch goroutine.
type QueuedStateWriter struct {
	enqueuer  JobEnqueuer
	namespace string
	telemetry telemetry
}

func NewQueuedStateWriter(enqueuer JobEnqueuer, namespace string, opts ...StateWriterOption) *QueuedStateWriter {
	resolved := resolveStateWriterOptions(opts)
	return &QueuedStateWriter{
		enqueuer:  enqueuer,
		namespace: namespace,
		telemetry: newTelemetry(resolved.logger, resolved.metrics),
	}
}

func (w *QueuedStateWriter) Write(ctx context.Context, bundle CredentialBundle) {
	if w == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if w.enqueuer == nil {
		w.telemetry.warn(ctx, "runtime state write dropped", map[string]any{
			"namespace": w.namespace,
			"error":     "job enqueuer is not configured",
		})
		return
	}
	msg := StateWriteMessage(w.namespace, bundle)
	if err := w.enqueuer.Enqueue(ctx, msg); err != nil {
		w.telemetry.warn(ctx, "runtime state write enqueue failed", map[string]any{
			"namespace":       w.namespace,
			"job_id":          msg.JobID,
			"idempotency_key": msg.IdempotencyKey,
			"error":           StorageFailure(err, w.namespace).Error(),
		})
	}
}

// StateWriteMessage builds the job message for one runtime state write.
func StateWriteMessage(namespace string, bundle CredentialBundle) *JobExecutionMessage {
	return &JobExecutionMessage{
		JobID:          JobIDStateWrite,
		IdempotencyKey: uuid.NewString(),
		Parameters: map[string]any{
			stateWriteParamNamespace: namespace,
			stateWriteParamToken:     bundle.Token,
			stateWriteParamRefresh:   bundle.RefreshToken,
			stateWriteParamUsername:  bundle.Username,
			stateWriteParamUserID:    bundle.UserID,
			stateWriteParamPassword:  bundle.Password,
		},
	}
}

func stateWriteFromMessage(msg *JobExecutionMessage) (string, CredentialBundle, error) {
	if msg == nil {
		return "", CredentialBundle{}, fmt.Errorf("core: job message is required")
	}
	if strings.TrimSpace(msg.JobID) != JobIDStateWrite {
		return "", CredentialBundle{}, fmt.Errorf("core: unexpected job id %q", msg.JobID)
	}
	param := func(key string) string {
		value, _ := msg.Parameters[key].(string)
		return value
	}
	namespace := strings.TrimSpace(param(stateWriteParamNamespace))
	if namespace == "" {
		return "", CredentialBundle{}, fmt.Errorf("core: state write namespace is required")
	}
	return namespace, CredentialBundle{
		Token:        param(stateWriteParamToken),
		RefreshToken: param(stateWriteParamRefresh),
		Username:     param(stateWriteParamUsername),
		UserID:       param(stateWriteParamUserID),
		Password:     param(stateWriteParamPassword),
	}, nil
}

// StateWriteWorkerConfig bounds retries. Retry delays start at RetryBackoff
// and double per attempt up to MaxBackoff.
type StateWriteWorkerConfig struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
}

func DefaultStateWriteWorkerConfig() StateWriteWorkerConfig {
	return StateWriteWorkerConfig{
		MaxAttempts:  3,
		RetryBackoff: defaultRetryInitialBackoff,
		MaxBackoff:   defaultRetryMaxBackoff,
	}
}

func (c StateWriteWorkerConfig) backoff() RetryBackoff {
	return ExponentialBackoff{Initial: c.RetryBackoff, Max: c.MaxBackoff}
}

// StateWriteWorker drains state write jobs into a preference store.
type StateWriteWorker struct {
	dequeuer  JobDequeuer
	store     PreferenceStore
	config    StateWriteWorkerConfig
	hook      JobWorkerHook
	telemetry telemetry
	now       func() time.Time

	mu       sync.Mutex
	attempts map[string]int
}

func NewStateWriteWorker(
	dequeuer JobDequeuer,
	store PreferenceStore,
	config StateWriteWorkerConfig,
	hook JobWorkerHook,
	opts ...StateWriterOption,
) (*StateWriteWorker, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("core: job dequeuer is required")
	}
	if store == nil {
		return nil, fmt.Errorf("core: preference store is required")
	}
	defaults := DefaultStateWriteWorkerConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = defaults.RetryBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	resolved := resolveStateWriterOptions(opts)
	return &StateWriteWorker{
		dequeuer:  dequeuer,
		store:     store,
		config:    config,
		hook:      hook,
		telemetry: newTelemetry(resolved.logger, resolved.metrics),
		now:       resolved.now,
		attempts:  map[string]int{},
	}, nil
}

// ProcessNext dequeues and handles one delivery. It reports false when the
// queue had nothing to deliver.
func (w *StateWriteWorker) ProcessNext(ctx context.Context) (bool, error) {
	if w == nil {
		return false, fmt.Errorf("core: state write worker is not configured")
	}
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if delivery == nil {
		return false, nil
	}
	return true, w.handle(ctx, delivery)
}

// Run processes deliveries until ctx is done or the dequeuer fails.
func (w *StateWriteWorker) Run(ctx context.Context, idle time.Duration) error {
	if idle <= 0 {
		idle = 100 * time.Millisecond
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		processed, err := w.ProcessNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(idle):
		}
	}
}

func (w *StateWriteWorker) handle(ctx context.Context, delivery JobDelivery) error {
	msg := delivery.Message()
	startedAt := w.now()
	key := ""
	if msg != nil {
		key = msg.IdempotencyKey
	}
	attempt := w.nextAttempt(key)
	event := JobWorkerEvent{Message: msg, Attempt: attempt, StartedAt: startedAt}
	w.emit(ctx, "start", event)

	namespace, bundle, err := stateWriteFromMessage(msg)
	if err == nil {
		if applyErr := w.store.Apply(ctx, PlayerPrefsEdit(namespace, bundle)); applyErr != nil {
			err = StorageFailure(applyErr, namespace)
		}
	}
	event.Duration = w.now().Sub(startedAt)

	if err == nil {
		w.forget(key)
		w.telemetry.count(ctx, MetricStateWrite, 1, map[string]string{"status": "ok"})
		w.emit(ctx, "success", event)
		return delivery.Ack(ctx)
	}

	event.Err = err
	w.telemetry.count(ctx, MetricStateWrite, 1, map[string]string{"status": "failed"})
	w.telemetry.warn(ctx, "runtime state write job failed", map[string]any{
		"job_id":          JobIDStateWrite,
		"idempotency_key": key,
		"attempt":         attempt,
		"error":           err.Error(),
	})

	if attempt >= w.config.MaxAttempts {
		w.forget(key)
		w.emit(ctx, "failure", event)
		return delivery.Nack(ctx, JobNackOptions{DeadLetter: true, Reason: err.Error()})
	}
	event.Delay = w.config.backoff().NextDelay(attempt)
	w.emit(ctx, "retry", event)
	return delivery.Nack(ctx, JobNackOptions{
		Delay:   event.Delay,
		Requeue: true,
		Reason:  err.Error(),
	})
}

func (w *StateWriteWorker) nextAttempt(key string) int {
	if key == "" {
		return 1
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[key]++
	return w.attempts[key]
}

func (w *StateWriteWorker) forget(key string) {
	if key == "" {
		return
	}
	w.mu.Lock()
	delete(w.attempts, key)
	w.mu.Unlock()
}

func (w *StateWriteWorker) emit(ctx context.Context, stage string, event JobWorkerEvent) {
	if w.hook == nil {
		return
	}
	switch stage {
	case "start":
		w.hook.OnStart(ctx, event)
	case "success":
		w.hook.OnSuccess(ctx, event)
	case "failure":
		w.hook.OnFailure(ctx, event)
	case "retry":
		w.hook.OnRetry(ctx, event)
	}
}

var (
	_ StateWriter = (*PlayerPrefsWriter)(nil)
	_ StateWriter = (*QueuedStateWriter)(nil)
)
