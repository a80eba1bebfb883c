package core

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const defaultRetainedSessions = 16

// InjectionScheduler owns the retry timeline for credential injection. The
// runtime never acknowledges a send, so every wave goes to every target and
// the only way to stop is to cancel the session.
type InjectionScheduler struct {
	dispatcher Dispatcher
	sink       MessageSink
	policy     InjectionPolicy
	codec      BundleCodec
	rawCodec   BundleCodec
	telemetry  telemetry
	now        func() time.Time
	retain     int

	mu       sync.Mutex
	sessions map[SessionHandle]*InjectionSession
	order    []SessionHandle
}

type SchedulerOption func(*InjectionScheduler)

func WithSchedulerLogger(logger Logger) SchedulerOption {
	return func(s *InjectionScheduler) {
		s.telemetry.logger = logger
	}
}

func WithSchedulerMetrics(recorder MetricsRecorder) SchedulerOption {
	return func(s *InjectionScheduler) {
		s.telemetry.metrics = recorder
	}
}

func WithSchedulerCodec(codec BundleCodec) SchedulerOption {
	return func(s *InjectionScheduler) {
		if codec != nil {
			s.codec = codec
		}
	}
}

func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *InjectionScheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func WithRetainedSessions(count int) SchedulerOption {
	return func(s *InjectionScheduler) {
		if count > 0 {
			s.retain = count
		}
	}
}

func NewInjectionScheduler(
	dispatcher Dispatcher,
	sink MessageSink,
	policy InjectionPolicy,
	opts ...SchedulerOption,
) (*InjectionScheduler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("core: dispatcher is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("core: message sink is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	scheduler := &InjectionScheduler{
		dispatcher: dispatcher,
		sink:       sink,
		policy:     policy.clone(),
		codec:      JSONBundleCodec{},
		rawCodec:   RawTokenCodec{},
		now:        func() time.Time { return time.Now().UTC() },
		retain:     defaultRetainedSessions,
		sessions:   make(map[SessionHandle]*InjectionSession),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(scheduler)
	}
	scheduler.telemetry = newTelemetry(scheduler.telemetry.logger, scheduler.telemetry.metrics)
	return scheduler, nil
}

func (s *InjectionScheduler) Policy() InjectionPolicy {
	if s == nil {
		return InjectionPolicy{}
	}
	return s.policy.clone()
}

// Start schedules the waves for bundle. When ok is false or the bundle has no
// token a single degraded wave is scheduled instead, if the policy enables
// it. An encoding failure aborts the session before anything is scheduled.
func (s *InjectionScheduler) Start(ctx context.Context, bundle CredentialBundle, ok bool) (SessionHandle, error) {
	if s == nil {
		return "", fmt.Errorf("core: injection scheduler is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	waveCtx := context.WithoutCancel(ctx)

	if !ok || !bundle.Usable() {
		return s.startDegraded(waveCtx), nil
	}

	payloads, err := s.encode(bundle)
	if err != nil {
		encodingErr := EncodingFailure(err)
		s.telemetry.error(ctx, "injection session aborted", mergeFields(bundle.redactedFields(), errorFields(encodingErr)))
		s.telemetry.count(ctx, MetricSessionAborted, 1, map[string]string{"reason": "encoding"})
		return "", encodingErr
	}

	waves := s.policy.Waves()
	session := s.register(false, len(waves))
	for _, wave := range waves {
		wave := wave
		handle := s.dispatcher.PostDelayed(wave.Delay, func() {
			s.fireWave(waveCtx, session, wave, s.policy.Targets, payloads)
		})
		session.track(handle)
	}

	s.telemetry.info(ctx, "injection session started", mergeFields(bundle.redactedFields(), map[string]any{
		"session_id": session.id.String(),
		"waves":      len(waves),
		"targets":    len(s.policy.Targets),
	}))
	s.telemetry.count(ctx, MetricSessionStarted, 1, map[string]string{"degraded": "false"})
	return session.id, nil
}

func (s *InjectionScheduler) startDegraded(ctx context.Context) SessionHandle {
	if !s.policy.Fallback.Enabled {
		session := s.register(true, 0)
		s.telemetry.warn(ctx, "no usable credential and fallback disabled", map[string]any{
			"session_id": session.id.String(),
		})
		return session.id
	}

	wave := s.policy.degradedWave()
	session := s.register(true, 1)
	targets := []InjectionTarget{s.policy.Fallback.Target}
	handle := s.dispatcher.PostDelayed(wave.Delay, func() {
		s.fireWave(ctx, session, wave, targets, encodedPayloads{})
	})
	session.track(handle)

	s.telemetry.info(ctx, "degraded injection session started", map[string]any{
		"session_id": session.id.String(),
		"target":     targets[0].Name,
		"action":     targets[0].Action,
		"delay_ms":   wave.Delay.Milliseconds(),
	})
	s.telemetry.count(ctx, MetricSessionStarted, 1, map[string]string{"degraded": "true"})
	return session.id
}

// Cancel flips the session flag. Waves that have not reached their check
// perform no sends; a wave already sending finishes. Reports whether the
// session was live.
func (s *InjectionScheduler) Cancel(handle SessionHandle) bool {
	session := s.lookup(handle)
	if session == nil {
		return false
	}
	if !session.cancel() {
		return false
	}
	s.telemetry.info(context.Background(), "injection session cancelled", map[string]any{
		"session_id":  handle.String(),
		"waves_fired": session.wavesFired.Load(),
	})
	s.telemetry.count(context.Background(), MetricSessionCanceled, 1, nil)
	return true
}

func (s *InjectionScheduler) Snapshot(handle SessionHandle) (SessionSnapshot, bool) {
	session := s.lookup(handle)
	if session == nil {
		return SessionSnapshot{}, false
	}
	return session.snapshot(), true
}

func (s *InjectionScheduler) fireWave(
	ctx context.Context,
	session *InjectionSession,
	wave Wave,
	targets []InjectionTarget,
	payloads encodedPayloads,
) {
	if session.cancelled.Load() {
		session.wavesSkipped.Add(1)
		s.telemetry.count(ctx, MetricWaveSkipped, 1, nil)
		return
	}

	tags := map[string]string{
		"degraded": strconv.FormatBool(wave.Degraded),
	}
	sent := 0
	for _, target := range targets {
		payload := payloads.forTarget(target, wave.Encoding)
		if err := s.send(target, payload); err != nil {
			session.sendFailures.Add(1)
			failure := SinkFailure(err, target)
			s.telemetry.warn(ctx, "injection send failed", mergeFields(errorFields(failure), map[string]any{
				"session_id": session.id.String(),
				"wave_index": wave.Index,
				"target":     target.Name,
				"action":     target.Action,
			}))
			s.telemetry.count(ctx, MetricSendFailed, 1, map[string]string{"target": target.Name})
		}
		sent++
	}
	session.sends.Add(int64(sent))
	session.wavesFired.Add(1)

	s.telemetry.count(ctx, MetricWaveFired, 1, tags)
	s.telemetry.count(ctx, MetricSendTotal, int64(sent), tags)
	s.telemetry.observe(ctx, MetricWaveSends, float64(sent), tags)
	if wave.Degraded || wave.Index%10 == 0 {
		s.telemetry.debug(ctx, "injection wave fired", map[string]any{
			"session_id": session.id.String(),
			"wave_index": wave.Index,
			"delay_ms":   wave.Delay.Milliseconds(),
			"sends":      sent,
		})
	}
}

func (s *InjectionScheduler) send(target InjectionTarget, payload string) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("core: message sink panicked: %v", recovered)
		}
	}()
	return s.sink.Send(target, payload)
}

func (s *InjectionScheduler) encode(bundle CredentialBundle) (encoded encodedPayloads, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("core: encode panicked: %v", recovered)
		}
	}()
	encoded.json, err = s.codec.Encode(bundle)
	if err != nil {
		return encodedPayloads{}, err
	}
	encoded.raw, err = s.rawCodec.Encode(bundle)
	if err != nil {
		return encodedPayloads{}, err
	}
	encoded.username = bundle.Username
	return encoded, nil
}

func (s *InjectionScheduler) register(degraded bool, planned int) *InjectionSession {
	session := &InjectionSession{
		id:        SessionHandle(uuid.NewString()),
		degraded:  degraded,
		planned:   planned,
		startedAt: s.now(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.id] = session
	s.order = append(s.order, session.id)
	s.evictLocked()
	return session
}

// evictLocked drops the oldest finished sessions beyond the retention bound.
// Live sessions are never evicted so they stay cancellable.
func (s *InjectionScheduler) evictLocked() {
	if len(s.order) <= s.retain {
		return
	}
	excess := len(s.order) - s.retain
	kept := s.order[:0]
	for _, id := range s.order {
		session := s.sessions[id]
		if excess > 0 && (session == nil || session.snapshot().Done()) {
			delete(s.sessions, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

func (s *InjectionScheduler) lookup(handle SessionHandle) *InjectionSession {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[handle]
}

// Sessions returns snapshots of the retained sessions, oldest first.
func (s *InjectionScheduler) Sessions() []SessionSnapshot {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	sessions := make([]*InjectionSession, 0, len(s.order))
	for _, id := range s.order {
		if session := s.sessions[id]; session != nil {
			sessions = append(sessions, session)
		}
	}
	s.mu.Unlock()

	out := make([]SessionSnapshot, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, session.snapshot())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// InjectionSession is one live retry run. The cancellation flag only ever
// moves from false to true.
type InjectionSession struct {
	id        SessionHandle
	degraded  bool
	planned   int
	startedAt time.Time
	cancelled atomic.Bool

	mu      sync.Mutex
	handles []DispatchHandle

	wavesFired   atomic.Int64
	wavesSkipped atomic.Int64
	sends        atomic.Int64
	sendFailures atomic.Int64
}

func (s *InjectionSession) track(handle DispatchHandle) {
	if handle == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled.Load() {
		handle.Stop()
		return
	}
	s.handles = append(s.handles, handle)
}

func (s *InjectionSession) cancel() bool {
	if !s.cancelled.CompareAndSwap(false, true) {
		return false
	}
	s.mu.Lock()
	handles := s.handles
	s.handles = nil
	s.mu.Unlock()
	for _, handle := range handles {
		if handle.Stop() {
			s.wavesSkipped.Add(1)
		}
	}
	return true
}

func (s *InjectionSession) snapshot() SessionSnapshot {
	return SessionSnapshot{
		ID:           s.id,
		Degraded:     s.degraded,
		Cancelled:    s.cancelled.Load(),
		Planned:      s.planned,
		WavesFired:   int(s.wavesFired.Load()),
		WavesSkipped: int(s.wavesSkipped.Load()),
		Sends:        int(s.sends.Load()),
		SendFailures: int(s.sendFailures.Load()),
		StartedAt:    s.startedAt,
	}
}

type encodedPayloads struct {
	json     string
	raw      string
	username string
}

func (p encodedPayloads) forTarget(target InjectionTarget, waveEncoding PayloadEncoding) string {
	encoding := target.Payload
	if encoding == PayloadDefault {
		encoding = waveEncoding
	}
	switch encoding {
	case PayloadRawToken:
		return p.raw
	case PayloadJSONBundle:
		return p.json
	case PayloadUsername:
		return p.username
	case PayloadLiteral:
		return target.Literal
	default:
		return ""
	}
}
