package gojob

import (
	"context"
	"fmt"

	"github.com/goliatone/go-authbridge/core"
	"github.com/goliatone/go-job/queue"
)

var errNotConfigured = fmt.Errorf("gojob: adapter is not configured")

// EnqueuerAdapter puts bridge job messages onto a go-job queue.
type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	switch {
	case a == nil || a.enqueuer == nil:
		return errNotConfigured
	case msg == nil:
		return fmt.Errorf("gojob: execution message is required")
	}
	return a.enqueuer.Enqueue(ctx, ToExecutionMessage(msg))
}

// DequeuerAdapter hands go-job deliveries to the state write worker, each
// wrapped with the retry policy.
type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
	policy   RetryPolicy
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer, policy RetryPolicy) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer, policy: policy}
}

func (a *DequeuerAdapter) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if a == nil || a.dequeuer == nil {
		return nil, errNotConfigured
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil || delivery == nil {
		// An untyped nil keeps the worker's empty-queue check working.
		return nil, err
	}
	return NewDeliveryAdapter(delivery, a.policy), nil
}

// DeliveryAdapter acks and nacks one go-job delivery. The worker picks
// requeue or dead-letter; the policy clamps the delay and the attempt ceiling.
type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   RetryPolicy
}

func NewDeliveryAdapter(delivery queue.Delivery, policy RetryPolicy) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery, policy: policy}
}

func (d *DeliveryAdapter) Message() *core.JobExecutionMessage {
	if d == nil || d.delivery == nil {
		return nil
	}
	return FromExecutionMessage(d.delivery.Message())
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return errNotConfigured
	}
	return d.delivery.Ack(ctx)
}

func (d *DeliveryAdapter) Nack(ctx context.Context, opts core.JobNackOptions) error {
	return d.NackForAttempt(ctx, opts, 0)
}

func (d *DeliveryAdapter) NackForAttempt(ctx context.Context, opts core.JobNackOptions, attempt int) error {
	if d == nil || d.delivery == nil {
		return errNotConfigured
	}
	return d.delivery.Nack(ctx, ToNackOptions(d.policy.Bound(opts, attempt)))
}

// NewQueuedStateWriter returns a state writer that enqueues runtime state
// writes onto a go-job queue.
func NewQueuedStateWriter(enqueuer queue.Enqueuer, namespace string, opts ...core.StateWriterOption) *core.QueuedStateWriter {
	return core.NewQueuedStateWriter(NewEnqueuerAdapter(enqueuer), namespace, opts...)
}

// NewStateWriteWorker returns a worker that drains a go-job queue into store.
func NewStateWriteWorker(
	dequeuer queue.Dequeuer,
	store core.PreferenceStore,
	policy RetryPolicy,
	hook core.JobWorkerHook,
	opts ...core.StateWriterOption,
) (*core.StateWriteWorker, error) {
	return core.NewStateWriteWorker(NewDequeuerAdapter(dequeuer, policy), store, policy.WorkerConfig(), hook, opts...)
}

var (
	_ core.JobEnqueuer = (*EnqueuerAdapter)(nil)
	_ core.JobDequeuer = (*DequeuerAdapter)(nil)
	_ core.JobDelivery = (*DeliveryAdapter)(nil)
)
