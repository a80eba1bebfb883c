package gocommand

import (
	"context"
	"fmt"
	"strings"

	authbridge "github.com/goliatone/go-authbridge"
	bridgecommand "github.com/goliatone/go-authbridge/command"
	"github.com/goliatone/go-authbridge/core"
	bridgequery "github.com/goliatone/go-authbridge/query"
	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

var errRegistryNotConfigured = fmt.Errorf("gocommand: registry is not configured")

// ValidateMessageContract checks that msg names a non-blank Type() and
// passes its own Validate() when it has one.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	typed, ok := msg.(command.Message)
	switch {
	case !ok:
		return fmt.Errorf("gocommand: message must implement Type() string")
	case strings.TrimSpace(typed.Type()) == "":
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

// RegistryAdapter owns the go-command registry the bridge handlers are
// registered in.
type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) ready() (*command.Registry, error) {
	if a == nil || a.registry == nil {
		return nil, errRegistryNotConfigured
	}
	return a.registry, nil
}

func (a *RegistryAdapter) Registry() *command.Registry {
	registry, _ := a.ready()
	return registry
}

func (a *RegistryAdapter) Register(handler any) error {
	registry, err := a.ready()
	if err != nil {
		return err
	}
	return registry.RegisterCommand(handler)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	registry, err := a.ready()
	if err != nil {
		return err
	}
	return registry.AddResolver(strings.TrimSpace(key), resolver)
}

// AddQueueResolver mirrors every registered handler into a go-job queue
// registry so lifecycle commands can also run as queued jobs.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	registry, err := a.ready()
	return err == nil && registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	registry, err := a.ready()
	if err != nil {
		return err
	}
	return registry.Initialize()
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

// RegisterAndSubscribe registers cmd and subscribes it on the global
// dispatcher. A failed registration drops the subscription again.
func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	return subscribeRegistered(adapter, cmd, func() commanddispatcher.Subscription {
		return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	})
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	return subscribeRegistered(adapter, qry, func() commanddispatcher.Subscription {
		return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
	})
}

func subscribeRegistered(
	adapter *RegistryAdapter,
	handler any,
	subscribe func() commanddispatcher.Subscription,
) (commanddispatcher.Subscription, error) {
	if _, err := adapter.ready(); err != nil {
		return nil, err
	}
	subscription := subscribe()
	if err := adapter.Register(handler); err != nil {
		Subscriptions{subscription}.Unsubscribe()
		return nil, err
	}
	return subscription, nil
}

// Subscriptions groups the dispatcher subscriptions of one bridge facade.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, subscription := range s {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
}

// RegisterFacade subscribes every lifecycle command and status query of
// facade on the global dispatcher. On error nothing stays subscribed.
func RegisterFacade(
	adapter *RegistryAdapter,
	facade *authbridge.Facade,
	runnerOpts ...runner.Option,
) (Subscriptions, error) {
	if facade == nil {
		return nil, fmt.Errorf("gocommand: bridge facade is required")
	}
	commands := facade.Commands()
	queries := facade.Queries()
	var subs Subscriptions
	register := func(sub commanddispatcher.Subscription, err error) error {
		if err != nil {
			subs.Unsubscribe()
			return err
		}
		subs = append(subs, sub)
		return nil
	}

	if err := register(RegisterAndSubscribe[bridgecommand.ViewVisibleMessage](adapter, commands.ViewVisible, runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe[bridgecommand.ViewTerminatedMessage](adapter, commands.ViewTerminated, runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe[bridgecommand.LaunchActivatedMessage](adapter, commands.LaunchActivated, runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribeQuery[bridgequery.SessionStatusMessage, core.SessionSnapshot](adapter, queries.SessionStatus, runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribeQuery[bridgequery.ListSessionsMessage, []core.SessionSnapshot](adapter, queries.ListSessions, runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribeQuery[bridgequery.RuntimeStateMessage, bridgequery.RuntimeStateView](adapter, queries.RuntimeState, runnerOpts...)); err != nil {
		return nil, err
	}
	return subs, nil
}
