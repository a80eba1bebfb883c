package command

import (
	"context"
	"fmt"
	"testing"

	"github.com/goliatone/go-authbridge/core"
	gocmd "github.com/goliatone/go-command"
)

type stubLifecycleService struct {
	onVisibleFn    func(ctx context.Context, view core.ViewRef) (core.SessionHandle, error)
	onTerminatedFn func(ctx context.Context, view core.ViewRef, reason string) bool
	onActivationFn func(ctx context.Context, payload core.LaunchPayload)
}

func (s stubLifecycleService) OnVisible(ctx context.Context, view core.ViewRef) (core.SessionHandle, error) {
	if s.onVisibleFn == nil {
		return "", fmt.Errorf("unexpected on visible")
	}
	return s.onVisibleFn(ctx, view)
}

func (s stubLifecycleService) OnTerminated(ctx context.Context, view core.ViewRef, reason string) bool {
	if s.onTerminatedFn == nil {
		return false
	}
	return s.onTerminatedFn(ctx, view, reason)
}

func (s stubLifecycleService) OnActivation(ctx context.Context, payload core.LaunchPayload) {
	if s.onActivationFn != nil {
		s.onActivationFn(ctx, payload)
	}
}

func TestViewVisibleCommand_ExecuteDelegatesAndStoresHandle(t *testing.T) {
	called := false
	svc := stubLifecycleService{
		onVisibleFn: func(_ context.Context, view core.ViewRef) (core.SessionHandle, error) {
			called = true
			if view.ID != "game" {
				t.Fatalf("expected view game, got %q", view.ID)
			}
			return core.SessionHandle("sess_1"), nil
		},
	}

	cmd := NewViewVisibleCommand(svc)
	collector := gocmd.NewResult[core.SessionHandle]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := cmd.Execute(ctx, ViewVisibleMessage{View: core.ViewRef{ID: "game"}}); err != nil {
		t.Fatalf("execute view visible: %v", err)
	}
	if !called {
		t.Fatalf("expected on visible invocation")
	}
	handle, ok := collector.Load()
	if !ok || handle != "sess_1" {
		t.Fatalf("expected stored handle sess_1, got %q ok=%t", handle, ok)
	}
}

func TestViewVisibleCommand_PropagatesServiceError(t *testing.T) {
	svc := stubLifecycleService{
		onVisibleFn: func(context.Context, core.ViewRef) (core.SessionHandle, error) {
			return "", fmt.Errorf("encode failed")
		},
	}
	if err := NewViewVisibleCommand(svc).Execute(context.Background(), ViewVisibleMessage{}); err == nil {
		t.Fatalf("expected service error to propagate")
	}
}

func TestViewTerminatedCommand_StoresCancellationResult(t *testing.T) {
	svc := stubLifecycleService{
		onTerminatedFn: func(_ context.Context, view core.ViewRef, reason string) bool {
			if reason != "destroyed" {
				t.Fatalf("expected reason destroyed, got %q", reason)
			}
			return true
		},
	}
	cmd := NewViewTerminatedCommand(svc)
	collector := gocmd.NewResult[TerminationResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, ViewTerminatedMessage{View: core.ViewRef{ID: "game"}, Reason: "destroyed"})
	if err != nil {
		t.Fatalf("execute view terminated: %v", err)
	}
	result, ok := collector.Load()
	if !ok || !result.Cancelled || result.View.ID != "game" {
		t.Fatalf("unexpected termination result %#v ok=%t", result, ok)
	}
}

func TestLaunchActivatedCommand_ArmsPayload(t *testing.T) {
	var received core.LaunchPayload
	svc := stubLifecycleService{
		onActivationFn: func(_ context.Context, payload core.LaunchPayload) {
			received = payload
		},
	}
	msg := LaunchActivatedMessage{Payload: core.LaunchPayload{core.LaunchKeyToken: "tok1"}}
	if err := NewLaunchActivatedCommand(svc).Execute(context.Background(), msg); err != nil {
		t.Fatalf("execute launch activated: %v", err)
	}
	if received[core.LaunchKeyToken] != "tok1" {
		t.Fatalf("expected payload forwarded, got %#v", received)
	}
}

func TestLaunchActivatedCommand_RejectsBlankKeys(t *testing.T) {
	called := false
	svc := stubLifecycleService{
		onActivationFn: func(context.Context, core.LaunchPayload) { called = true },
	}
	msg := LaunchActivatedMessage{Payload: core.LaunchPayload{" ": "x"}}
	if err := NewLaunchActivatedCommand(svc).Execute(context.Background(), msg); err == nil {
		t.Fatalf("expected validation error")
	}
	if called {
		t.Fatalf("expected invalid payload not to reach the service")
	}
}

func TestMessageTypes(t *testing.T) {
	if (ViewVisibleMessage{}).Type() != TypeViewVisible ||
		(ViewTerminatedMessage{}).Type() != TypeViewTerminated ||
		(LaunchActivatedMessage{}).Type() != TypeLaunchActivated {
		t.Fatalf("unexpected message types")
	}
}
