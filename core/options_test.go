package core

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type fixedOptionsResolver struct {
	cfg Config
}

func (r *fixedOptionsResolver) Resolve(Config, Config, Config) (Config, error) {
	return r.cfg, nil
}

type fixedStoreProvider struct {
	store PreferenceStore
}

func (p fixedStoreProvider) PreferenceStore() PreferenceStore {
	return p.store
}

type fixedStoreFactory struct {
	store PreferenceStore
	seen  *any
}

func (f fixedStoreFactory) BuildStores(client any) (StoreProvider, error) {
	if f.seen != nil {
		*f.seen = client
	}
	return fixedStoreProvider{store: f.store}, nil
}

func TestNewService_DefaultDependencies(t *testing.T) {
	svc, err := NewService(Config{}, WithMessageSink(newRecordingSink()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	defer svc.Close()

	deps := svc.Dependencies()
	if deps.Logger == nil {
		t.Fatalf("expected default logger")
	}
	if deps.LoggerProvider == nil {
		t.Fatalf("expected default logger provider")
	}
	if deps.ErrorFactory == nil || deps.ErrorMapper == nil {
		t.Fatalf("expected default error factory and mapper")
	}
	if deps.ConfigProvider == nil || deps.OptionsResolver == nil {
		t.Fatalf("expected default config provider and options resolver")
	}
	if deps.PreferenceStore == nil || deps.Dispatcher == nil || deps.Scheduler == nil {
		t.Fatalf("expected default runtime collaborators")
	}
	if _, ok := deps.StateWriter.(*PlayerPrefsWriter); !ok {
		t.Fatalf("expected synchronous state writer by default, got %T", deps.StateWriter)
	}

	cfg := svc.Config()
	if cfg.ServiceName != DefaultServiceName || cfg.AppID != DefaultAppID {
		t.Fatalf("unexpected default config %#v", cfg)
	}
	if cfg.AppPrefsNamespace != DefaultAppPrefsNamespace {
		t.Fatalf("expected default app prefs namespace, got %q", cfg.AppPrefsNamespace)
	}
	policy := svc.Policy()
	if len(policy.Delays) != 30 || len(policy.Targets) != 15 {
		t.Fatalf("expected exhaustive preset by default, got %d waves %d targets", len(policy.Delays), len(policy.Targets))
	}
}

func TestNewService_RequiresMessageSink(t *testing.T) {
	_, err := NewService(Config{})
	if err == nil {
		t.Fatalf("expected missing sink error")
	}
	if !IsBridgeError(err, BridgeErrorBadInput) {
		t.Fatalf("expected bad input text code, got %v", err)
	}
}

func TestNewService_WithXOverrides(t *testing.T) {
	customLogger := stubLogger{}
	customProvider := stubLoggerProvider{logger: customLogger}
	customFactory := func(message string, category ...goerrors.Category) *goerrors.Error {
		return goerrors.New("custom:"+message, category...)
	}
	sentinel := errors.New("sentinel")
	customMapper := func(error) *goerrors.Error {
		return goerrors.Wrap(sentinel, goerrors.CategoryOperation, "mapped")
	}
	persistenceClient := &struct{ Name string }{Name: "persistence"}
	store := NewMemoryPreferenceStore()
	var seenClient any
	repositoryFactory := fixedStoreFactory{store: store, seen: &seenClient}
	configProvider := &fixedConfigProvider{cfg: Config{ServiceName: "from-provider"}}
	resolved := DefaultConfig()
	resolved.ServiceName = "resolved"
	optionsResolver := &fixedOptionsResolver{cfg: resolved}
	dispatcher := NewVirtualDispatcher()

	svc, err := NewService(Config{ServiceName: "runtime"},
		WithLogger(customLogger),
		WithLoggerProvider(customProvider),
		WithErrorFactory(customFactory),
		WithErrorMapper(customMapper),
		WithPersistenceClient(persistenceClient),
		WithRepositoryFactory(repositoryFactory),
		WithConfigProvider(configProvider),
		WithOptionsResolver(optionsResolver),
		WithDispatcher(dispatcher),
		WithMessageSink(newRecordingSink()),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	deps := svc.Dependencies()
	if deps.Logger != customLogger {
		t.Fatalf("expected custom logger override")
	}
	if resolved := deps.LoggerProvider.GetLogger("authbridge.override"); resolved != customLogger {
		t.Fatalf("expected logger provider to resolve custom logger")
	}
	if deps.PersistenceClient != persistenceClient {
		t.Fatalf("expected custom persistence client override")
	}
	if seenClient != persistenceClient {
		t.Fatalf("expected repository factory to receive persistence client")
	}
	if deps.PreferenceStore != store {
		t.Fatalf("expected preference store from repository factory")
	}
	if deps.ConfigProvider != configProvider || deps.OptionsResolver != optionsResolver {
		t.Fatalf("expected custom config provider and options resolver")
	}
	if deps.Dispatcher != dispatcher {
		t.Fatalf("expected custom dispatcher")
	}
	if got := svc.Config().ServiceName; got != "resolved" {
		t.Fatalf("expected options resolver output config, got %q", got)
	}
}

func TestNewService_ConfigLayeringPrecedence(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"service_name": "from-config",
		"app_id":       "com.example.game",
		"policy": map[string]any{
			"preset": "conservative",
			"waves":  3,
		},
	}})

	svc, err := NewService(Config{ServiceName: "from-runtime"},
		WithConfigProvider(provider),
		WithDispatcher(NewVirtualDispatcher()),
		WithMessageSink(newRecordingSink()),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	cfg := svc.Config()
	if cfg.ServiceName != "from-runtime" {
		t.Fatalf("expected runtime value to override config/default, got %q", cfg.ServiceName)
	}
	if cfg.AppID != "com.example.game" {
		t.Fatalf("expected config layer app_id, got %q", cfg.AppID)
	}
	if cfg.RuntimePrefsNamespace() != "com.example.game.v2.playerprefs" {
		t.Fatalf("unexpected runtime namespace %q", cfg.RuntimePrefsNamespace())
	}
	policy := svc.Policy()
	if len(policy.Targets) != 4 {
		t.Fatalf("expected conservative targets, got %d", len(policy.Targets))
	}
	if len(policy.Delays) != 3 || policy.Delays[2] != time.Second {
		t.Fatalf("expected 3 waves every 500ms, got %v", policy.Delays)
	}
}

func TestNewService_AsyncStateWriteUsesJobQueue(t *testing.T) {
	queue := &memoryJobQueue{}
	store := NewMemoryPreferenceStore()
	seedAppCredential(t, store, CredentialBundle{Token: "tok1"})
	svc, err := NewService(Config{AsyncStateWrite: true},
		WithPreferenceStore(store),
		WithJobEnqueuer(queue),
		WithDispatcher(NewVirtualDispatcher()),
		WithMessageSink(newRecordingSink()),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, ok := svc.Dependencies().StateWriter.(*QueuedStateWriter); !ok {
		t.Fatalf("expected queued state writer, got %T", svc.Dependencies().StateWriter)
	}
	if _, err := svc.OnVisible(context.Background(), ViewRef{}); err != nil {
		t.Fatalf("on visible: %v", err)
	}
	if len(queue.pending) != 1 {
		t.Fatalf("expected state write job, got %d", len(queue.pending))
	}
}

func TestNewService_RejectsInvalidPolicy(t *testing.T) {
	_, err := NewService(Config{Policy: PolicyConfig{Preset: "aggressive"}},
		WithDispatcher(NewVirtualDispatcher()),
		WithMessageSink(newRecordingSink()),
	)
	if err == nil {
		t.Fatalf("expected invalid preset error")
	}
}

func TestService_LifecycleRoundTrip(t *testing.T) {
	dispatcher := NewVirtualDispatcher()
	sink := newRecordingSink()
	svc, err := NewService(Config{Policy: PolicyConfig{Preset: PolicyPresetConservative}},
		WithDispatcher(dispatcher),
		WithMessageSink(sink),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	svc.OnActivation(context.Background(), LaunchPayload{LaunchKeyToken: "tok1"})
	view := ViewRef{ID: "game"}
	if _, err := svc.OnVisible(context.Background(), view); err != nil {
		t.Fatalf("on visible: %v", err)
	}
	dispatcher.Advance(3 * time.Second)
	if !svc.OnTerminated(context.Background(), view, "destroyed") {
		t.Fatalf("expected cancellation")
	}
	dispatcher.RunAll()

	snapshot, err := svc.SessionStatus(context.Background(), view)
	if err != nil {
		t.Fatalf("session status: %v", err)
	}
	if snapshot.WavesFired != 2 || snapshot.Sends != 8 || !snapshot.Cancelled {
		t.Fatalf("unexpected snapshot %#v", snapshot)
	}

	_, err = svc.SessionStatus(context.Background(), ViewRef{ID: "other"})
	if !IsBridgeError(err, BridgeErrorSessionNotFound) {
		t.Fatalf("expected session not found text code, got %v", err)
	}
}
