package gojob

import (
	"context"

	"github.com/goliatone/go-authbridge/core"
	"github.com/goliatone/go-job/queue/worker"
)

// WorkerHookAdapter lets a bridge hook observe a go-job worker.
type WorkerHookAdapter struct {
	hook core.JobWorkerHook
}

func NewWorkerHookAdapter(hook core.JobWorkerHook) *WorkerHookAdapter {
	return &WorkerHookAdapter{hook: hook}
}

func (a *WorkerHookAdapter) OnStart(ctx context.Context, event worker.Event) {
	a.forward(ctx, event, core.JobWorkerHook.OnStart)
}

func (a *WorkerHookAdapter) OnSuccess(ctx context.Context, event worker.Event) {
	a.forward(ctx, event, core.JobWorkerHook.OnSuccess)
}

func (a *WorkerHookAdapter) OnFailure(ctx context.Context, event worker.Event) {
	a.forward(ctx, event, core.JobWorkerHook.OnFailure)
}

func (a *WorkerHookAdapter) OnRetry(ctx context.Context, event worker.Event) {
	a.forward(ctx, event, core.JobWorkerHook.OnRetry)
}

func (a *WorkerHookAdapter) forward(
	ctx context.Context,
	event worker.Event,
	stage func(core.JobWorkerHook, context.Context, core.JobWorkerEvent),
) {
	if a == nil || a.hook == nil {
		return
	}
	stage(a.hook, ctx, mapWorkerEvent(event))
}

// mapWorkerEvent falls back to the delivery's message when the event does not
// carry one.
func mapWorkerEvent(event worker.Event) core.JobWorkerEvent {
	msg := event.Message
	if msg == nil && event.Delivery != nil {
		msg = event.Delivery.Message()
	}
	out := core.JobWorkerEvent{Message: FromExecutionMessage(msg), Attempt: event.Attempt, Err: event.Err}
	out.Delay, out.StartedAt, out.Duration = event.Delay, event.StartedAt, event.Duration
	return out
}

var _ worker.Hook = (*WorkerHookAdapter)(nil)
