package command

import (
	"context"

	"github.com/goliatone/go-authbridge/core"
	gocmd "github.com/goliatone/go-command"
)

// LifecycleService is the slice of the bridge the commands drive.
type LifecycleService interface {
	OnVisible(ctx context.Context, view core.ViewRef) (core.SessionHandle, error)
	OnTerminated(ctx context.Context, view core.ViewRef, reason string) bool
	OnActivation(ctx context.Context, payload core.LaunchPayload)
}

// TerminationResult reports whether a live session was cancelled.
type TerminationResult struct {
	View      core.ViewRef
	Cancelled bool
}

type ViewVisibleCommand struct {
	service LifecycleService
}

func NewViewVisibleCommand(service LifecycleService) *ViewVisibleCommand {
	return &ViewVisibleCommand{service: service}
}

func (c *ViewVisibleCommand) Execute(ctx context.Context, msg ViewVisibleMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependency("command: lifecycle service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	handle, err := c.service.OnVisible(ctx, msg.View)
	if err != nil {
		return err
	}
	storeResult(ctx, handle)
	return nil
}

type ViewTerminatedCommand struct {
	service LifecycleService
}

func NewViewTerminatedCommand(service LifecycleService) *ViewTerminatedCommand {
	return &ViewTerminatedCommand{service: service}
}

func (c *ViewTerminatedCommand) Execute(ctx context.Context, msg ViewTerminatedMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependency("command: lifecycle service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	cancelled := c.service.OnTerminated(ctx, msg.View, msg.Reason)
	storeResult(ctx, TerminationResult{View: msg.View, Cancelled: cancelled})
	return nil
}

type LaunchActivatedCommand struct {
	service LifecycleService
}

func NewLaunchActivatedCommand(service LifecycleService) *LaunchActivatedCommand {
	return &LaunchActivatedCommand{service: service}
}

func (c *LaunchActivatedCommand) Execute(ctx context.Context, msg LaunchActivatedMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependency("command: lifecycle service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	c.service.OnActivation(ctx, msg.Payload)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
