package core

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service is the assembled bridge: resolved config plus every collaborator
// the lifecycle entry points need.
type Service struct {
	config            Config
	policy            InjectionPolicy
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	preferenceStore   PreferenceStore
	dispatcher        Dispatcher
	ownedDispatcher   *LoopDispatcher
	stateWriter       StateWriter
	credentialSource  CredentialSource
	launchSlot        *LaunchSlot
	scheduler         *InjectionScheduler
	bridge            *Bridge
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	PreferenceStore   PreferenceStore
	Dispatcher        Dispatcher
	StateWriter       StateWriter
	CredentialSource  CredentialSource
	LaunchSlot        *LaunchSlot
	Scheduler         *InjectionScheduler
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve(DefaultServiceName, builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger(DefaultServiceName); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.messageSink == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: message sink is required"))
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	policy, err := finalConfig.InjectionPolicy()
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.preferenceStore == nil && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			stores, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if stores != nil {
				builder.preferenceStore = stores.PreferenceStore()
			}
		} else if stores, ok := builder.repositoryFactory.(StoreProvider); ok {
			builder.preferenceStore = stores.PreferenceStore()
		}
	}
	if builder.preferenceStore == nil {
		builder.preferenceStore = NewMemoryPreferenceStore()
	}

	var owned *LoopDispatcher
	if builder.dispatcher == nil {
		owned = NewLoopDispatcher(0)
		owned.OnPanic(func(recovered any) {
			logger.Error("dispatcher task panicked", "panic", recovered)
		})
		builder.dispatcher = owned
	}

	if builder.launchSlot == nil {
		builder.launchSlot = NewLaunchSlot()
	}
	if builder.credentialSource == nil {
		builder.credentialSource = NewLayeredCredentialSource(
			builder.preferenceStore,
			builder.launchSlot,
			WithSourceNamespace(finalConfig.AppPrefsNamespace),
			WithSourceLogger(logger),
		)
	}
	if builder.stateWriter == nil {
		namespace := finalConfig.RuntimePrefsNamespace()
		writerOpts := []StateWriterOption{
			WithStateWriterLogger(logger),
			WithStateWriterMetrics(builder.metricsRecorder),
		}
		if finalConfig.AsyncStateWrite && builder.jobEnqueuer != nil {
			builder.stateWriter = NewQueuedStateWriter(builder.jobEnqueuer, namespace, writerOpts...)
		} else {
			builder.stateWriter = NewPlayerPrefsWriter(builder.preferenceStore, namespace, writerOpts...)
		}
	}

	scheduler, err := NewInjectionScheduler(
		builder.dispatcher,
		builder.messageSink,
		policy,
		WithSchedulerLogger(logger),
		WithSchedulerMetrics(builder.metricsRecorder),
		WithSchedulerCodec(builder.bundleCodec),
	)
	if err != nil {
		if owned != nil {
			owned.Close()
		}
		return nil, mapBuildError(builder.errorMapper, err)
	}
	bridge, err := NewBridge(BridgeDependencies{
		Source:    builder.credentialSource,
		Writer:    builder.stateWriter,
		Scheduler: scheduler,
		Launch:    builder.launchSlot,
		Logger:    logger,
		Metrics:   builder.metricsRecorder,
	})
	if err != nil {
		if owned != nil {
			owned.Close()
		}
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Service{
		config:            finalConfig,
		policy:            policy,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		preferenceStore:   builder.preferenceStore,
		dispatcher:        builder.dispatcher,
		ownedDispatcher:   owned,
		stateWriter:       builder.stateWriter,
		credentialSource:  builder.credentialSource,
		launchSlot:        builder.launchSlot,
		scheduler:         scheduler,
		bridge:            bridge,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) mapError(err error) error {
	if s == nil {
		return err
	}
	return mapBuildError(s.errorMapper, err)
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Policy() InjectionPolicy {
	if s == nil {
		return InjectionPolicy{}
	}
	return s.policy.clone()
}

func (s *Service) Bridge() *Bridge {
	if s == nil {
		return nil
	}
	return s.bridge
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		PreferenceStore:   s.preferenceStore,
		Dispatcher:        s.dispatcher,
		StateWriter:       s.stateWriter,
		CredentialSource:  s.credentialSource,
		LaunchSlot:        s.launchSlot,
		Scheduler:         s.scheduler,
	}
}

func (s *Service) OnVisible(ctx context.Context, view ViewRef) (handle SessionHandle, err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.observeOperation(ctx, startedAt, "on_visible", err, map[string]any{
			"view_id":    view.key(),
			"session_id": handle.String(),
		})
	}()
	if s == nil || s.bridge == nil {
		err = fmt.Errorf("core: service is not configured")
		return "", err
	}
	handle, err = s.bridge.OnVisible(ctx, view)
	if err != nil {
		err = s.mapError(err)
		return "", err
	}
	return handle, nil
}

func (s *Service) OnTerminated(ctx context.Context, view ViewRef, reason string) bool {
	if s == nil || s.bridge == nil {
		return false
	}
	return s.bridge.OnTerminated(ctx, view, reason)
}

func (s *Service) OnActivation(ctx context.Context, payload LaunchPayload) {
	if s == nil || s.bridge == nil {
		return
	}
	s.bridge.OnActivation(ctx, payload)
}

func (s *Service) SessionStatus(_ context.Context, view ViewRef) (SessionSnapshot, error) {
	if s == nil || s.bridge == nil {
		return SessionSnapshot{}, fmt.Errorf("core: service is not configured")
	}
	snapshot, err := s.bridge.Session(view)
	if err != nil {
		return SessionSnapshot{}, s.mapError(err)
	}
	return snapshot, nil
}

// Sessions lists the retained sessions, oldest first.
func (s *Service) Sessions(context.Context) []SessionSnapshot {
	if s == nil || s.scheduler == nil {
		return nil
	}
	return s.scheduler.Sessions()
}

// RuntimeState reads back what the state writer left for the runtime.
func (s *Service) RuntimeState(ctx context.Context) (CredentialBundle, error) {
	if s == nil || s.preferenceStore == nil {
		return CredentialBundle{}, s.mapError(fmt.Errorf("core: preference store is required"))
	}
	bundle, err := ReadPlayerPrefs(ctx, s.preferenceStore, s.config.RuntimePrefsNamespace())
	if err != nil {
		return CredentialBundle{}, s.mapError(err)
	}
	return bundle, nil
}

// Close stops the dispatcher the service created for itself. Injected
// dispatchers are left to their owner.
func (s *Service) Close() {
	if s == nil || s.ownedDispatcher == nil {
		return
	}
	s.ownedDispatcher.Close()
}

func (s *Service) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if s == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	t := newTelemetry(s.logger, s.metricsRecorder)
	status := "ok"
	merged := mergeFields(fields, map[string]any{
		"operation":   operation,
		"duration_ms": time.Since(startedAt).Milliseconds(),
	})
	if err != nil {
		status = "error"
		merged = mergeFields(merged, errorFields(err))
		t.warn(ctx, "authbridge operation failed", merged)
	} else {
		t.debug(ctx, "authbridge operation completed", merged)
	}
	t.observe(ctx, "authbridge.operation.duration_ms", float64(time.Since(startedAt).Milliseconds()), map[string]string{
		"operation": operation,
		"status":    status,
	})
}
