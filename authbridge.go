package authbridge

import "github.com/goliatone/go-authbridge/core"

type Config = core.Config
type PolicyConfig = core.PolicyConfig
type TargetConfig = core.TargetConfig
type FallbackConfig = core.FallbackConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type CredentialBundle = core.CredentialBundle
type InjectionTarget = core.InjectionTarget
type InjectionPolicy = core.InjectionPolicy
type SessionHandle = core.SessionHandle
type SessionSnapshot = core.SessionSnapshot
type ViewRef = core.ViewRef
type LaunchPayload = core.LaunchPayload

type MessageSink = core.MessageSink
type MessageSinkFunc = core.MessageSinkFunc
type PreferenceStore = core.PreferenceStore
type Dispatcher = core.Dispatcher
type MetricsRecorder = core.MetricsRecorder

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithPreferenceStore   = core.WithPreferenceStore
	WithMessageSink       = core.WithMessageSink
	WithDispatcher        = core.WithDispatcher
	WithJobEnqueuer       = core.WithJobEnqueuer
	WithBundleCodec       = core.WithBundleCodec
	WithCredentialSource  = core.WithCredentialSource
	WithStateWriter       = core.WithStateWriter
	WithLaunchSlot        = core.WithLaunchSlot
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
