package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Bridge wires the host lifecycle to the credential flow: a view becoming
// visible reads, persists and schedules; the view terminating cancels.
type Bridge struct {
	source    CredentialSource
	writer    StateWriter
	scheduler *InjectionScheduler
	launch    *LaunchSlot
	telemetry telemetry

	mu    sync.Mutex
	views map[string]SessionHandle
}

type BridgeDependencies struct {
	Source    CredentialSource
	Writer    StateWriter
	Scheduler *InjectionScheduler
	Launch    *LaunchSlot
	Logger    Logger
	Metrics   MetricsRecorder
}

func NewBridge(deps BridgeDependencies) (*Bridge, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("core: credential source is required")
	}
	if deps.Scheduler == nil {
		return nil, fmt.Errorf("core: injection scheduler is required")
	}
	launch := deps.Launch
	if launch == nil {
		launch = NewLaunchSlot()
	}
	return &Bridge{
		source:    deps.Source,
		writer:    deps.Writer,
		scheduler: deps.Scheduler,
		launch:    launch,
		telemetry: newTelemetry(deps.Logger, deps.Metrics),
		views:     map[string]SessionHandle{},
	}, nil
}

// OnVisible starts a session for view. A live session the view already owns
// is cancelled first.
func (b *Bridge) OnVisible(ctx context.Context, view ViewRef) (SessionHandle, error) {
	if b == nil {
		return "", fmt.Errorf("core: bridge is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	key := view.key()
	if previous, ok := b.detach(key); ok {
		if b.scheduler.Cancel(previous) {
			b.telemetry.info(ctx, "superseded injection session cancelled", map[string]any{
				"view_id":    key,
				"session_id": previous.String(),
			})
		}
	}

	bundle, ok := b.source.Read(ctx)
	if ok && b.writer != nil {
		b.writer.Write(ctx, bundle)
	}
	handle, err := b.scheduler.Start(ctx, bundle, ok)
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	b.views[key] = handle
	b.pruneLocked()
	b.mu.Unlock()

	b.telemetry.debug(ctx, "view visible", map[string]any{
		"view_id":    key,
		"session_id": handle.String(),
		"usable":     ok,
	})
	return handle, nil
}

// OnTerminated cancels the view's session. The session stays queryable until
// the view becomes visible again. It reports whether a live session was
// cancelled.
func (b *Bridge) OnTerminated(ctx context.Context, view ViewRef, reason string) bool {
	if b == nil {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}
	key := view.key()
	b.mu.Lock()
	handle, ok := b.views[key]
	b.mu.Unlock()
	if !ok {
		return false
	}
	cancelled := b.scheduler.Cancel(handle)
	b.telemetry.debug(ctx, "view terminated", map[string]any{
		"view_id":    key,
		"session_id": handle.String(),
		"reason":     strings.TrimSpace(reason),
		"cancelled":  cancelled,
	})
	return cancelled
}

// OnActivation re-arms the launch slot with payload.
func (b *Bridge) OnActivation(ctx context.Context, payload LaunchPayload) {
	if b == nil {
		return
	}
	b.launch.Arm(payload)
	b.telemetry.debug(ctx, "launch payload armed", map[string]any{
		"keys": len(payload),
	})
}

// Session returns the snapshot of the session view currently owns.
func (b *Bridge) Session(view ViewRef) (SessionSnapshot, error) {
	if b == nil {
		return SessionSnapshot{}, fmt.Errorf("core: bridge is nil")
	}
	key := view.key()
	b.mu.Lock()
	handle, ok := b.views[key]
	b.mu.Unlock()
	if !ok {
		return SessionSnapshot{}, fmt.Errorf("%w: view %q", ErrSessionNotFound, key)
	}
	snapshot, ok := b.scheduler.Snapshot(handle)
	if !ok {
		b.mu.Lock()
		if b.views[key] == handle {
			delete(b.views, key)
		}
		b.mu.Unlock()
		return SessionSnapshot{}, fmt.Errorf("%w: view %q", ErrSessionNotFound, key)
	}
	return snapshot, nil
}

func (b *Bridge) Scheduler() *InjectionScheduler {
	if b == nil {
		return nil
	}
	return b.scheduler
}

func (b *Bridge) LaunchSlot() *LaunchSlot {
	if b == nil {
		return nil
	}
	return b.launch
}

func (b *Bridge) detach(key string) (SessionHandle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	handle, ok := b.views[key]
	if ok {
		delete(b.views, key)
	}
	return handle, ok
}

// pruneLocked forgets views whose session the scheduler no longer retains.
func (b *Bridge) pruneLocked() {
	for key, handle := range b.views {
		if b.scheduler.lookup(handle) == nil {
			delete(b.views, key)
		}
	}
}
