package core

import (
	"context"
	"strings"
	"sync"
)

const DefaultAppPrefsNamespace = "gunduata_prefs"

// App store keys, as the host login flow saves them.
const (
	AppKeyToken        = "auth_token"
	AppKeyTokenLegacy  = "user_token"
	AppKeyRefreshToken = "refresh_token"
	AppKeyUsername     = "username"
	AppKeyUserID       = "user_id"
	AppKeyPassword     = "user_pass"
)

// Launch payload keys, as delivered with an activation.
const (
	LaunchKeyToken        = "token"
	LaunchKeyRefreshToken = "refresh_token"
	LaunchKeyUsername     = "username"
	LaunchKeyUserID       = "user_id"
	LaunchKeyPassword     = "password"
)

// LaunchSlot holds the payload of the most recent activation until a read
// consumes it.
type LaunchSlot struct {
	mu      sync.Mutex
	payload LaunchPayload
	armed   bool
}

func NewLaunchSlot() *LaunchSlot {
	return &LaunchSlot{}
}

// Arm replaces whatever the slot held.
func (s *LaunchSlot) Arm(payload LaunchPayload) {
	if s == nil {
		return
	}
	copied := make(LaunchPayload, len(payload))
	for key, value := range payload {
		copied[key] = value
	}
	s.mu.Lock()
	s.payload = copied
	s.armed = true
	s.mu.Unlock()
}

// Take returns the armed payload once and disarms the slot.
func (s *LaunchSlot) Take() (LaunchPayload, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed {
		return nil, false
	}
	payload := s.payload
	s.payload = nil
	s.armed = false
	return payload, true
}

func (s *LaunchSlot) Armed() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// LayeredCredentialSource reads the app store first and falls back to the
// launch payload only when the store has no token.
type LayeredCredentialSource struct {
	store     PreferenceStore
	namespace string
	launch    *LaunchSlot
	telemetry telemetry
}

type CredentialSourceOption func(*LayeredCredentialSource)

func WithSourceNamespace(namespace string) CredentialSourceOption {
	return func(s *LayeredCredentialSource) {
		if trimmed := strings.TrimSpace(namespace); trimmed != "" {
			s.namespace = trimmed
		}
	}
}

func WithSourceLogger(logger Logger) CredentialSourceOption {
	return func(s *LayeredCredentialSource) {
		s.telemetry.logger = logger
	}
}

func NewLayeredCredentialSource(
	store PreferenceStore,
	launch *LaunchSlot,
	opts ...CredentialSourceOption,
) *LayeredCredentialSource {
	source := &LayeredCredentialSource{
		store:     store,
		namespace: DefaultAppPrefsNamespace,
		launch:    launch,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(source)
	}
	source.telemetry = newTelemetry(source.telemetry.logger, source.telemetry.metrics)
	return source
}

func (s *LayeredCredentialSource) Read(ctx context.Context) (CredentialBundle, bool) {
	if s == nil {
		return CredentialBundle{}, false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	// The launch slot is drained on every read so a stale payload never
	// outlives the activation it came with.
	launch, armed := s.launch.Take()

	if bundle, ok := s.readStore(ctx); ok {
		return bundle, true
	}
	if !armed {
		return CredentialBundle{}, false
	}
	bundle := bundleFromLaunch(launch)
	if !bundle.Usable() {
		return CredentialBundle{}, false
	}
	s.telemetry.debug(ctx, "credential read from launch payload", bundle.redactedFields())
	return bundle, true
}

func (s *LayeredCredentialSource) readStore(ctx context.Context) (CredentialBundle, bool) {
	if s.store == nil {
		return CredentialBundle{}, false
	}
	values, err := s.store.GetAll(ctx, s.namespace)
	if err != nil {
		failure := StorageFailure(err, s.namespace)
		s.telemetry.warn(ctx, "credential store read failed", map[string]any{
			"namespace": s.namespace,
			"error":     failure.Error(),
		})
		return CredentialBundle{}, false
	}
	bundle := CredentialBundle{
		Token:        firstNonEmpty(values[AppKeyToken], values[AppKeyTokenLegacy]),
		RefreshToken: values[AppKeyRefreshToken],
		Username:     values[AppKeyUsername],
		UserID:       values[AppKeyUserID],
		Password:     values[AppKeyPassword],
	}
	if !bundle.Usable() {
		return CredentialBundle{}, false
	}
	s.telemetry.debug(ctx, "credential read from app store", mergeFields(bundle.redactedFields(), map[string]any{
		"namespace": s.namespace,
	}))
	return bundle, true
}

func bundleFromLaunch(payload LaunchPayload) CredentialBundle {
	return CredentialBundle{
		Token:        payload[LaunchKeyToken],
		RefreshToken: payload[LaunchKeyRefreshToken],
		Username:     payload[LaunchKeyUsername],
		UserID:       payload[LaunchKeyUserID],
		Password:     payload[LaunchKeyPassword],
	}
}

// AppCredentialEdit builds the edit that stores bundle the way the host login
// flow does, for seeding and tests.
func AppCredentialEdit(namespace string, bundle CredentialBundle) PreferenceEdit {
	if strings.TrimSpace(namespace) == "" {
		namespace = DefaultAppPrefsNamespace
	}
	edit := PreferenceEdit{Namespace: namespace, Set: map[string]string{}}
	put := func(key, value string) {
		if value == "" {
			edit.Remove = append(edit.Remove, key)
			return
		}
		edit.Set[key] = value
	}
	put(AppKeyToken, bundle.Token)
	put(AppKeyRefreshToken, bundle.RefreshToken)
	put(AppKeyUsername, bundle.Username)
	put(AppKeyUserID, bundle.UserID)
	put(AppKeyPassword, bundle.Password)
	return edit
}
