package security

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-authbridge/core"
)

// SealedPreferenceStore seals secret values on write and opens them on read.
// Only the listed namespaces are sealed; every other namespace passes through
// untouched so the runtime can still read its settings in the clear.
type SealedPreferenceStore struct {
	base       core.PreferenceStore
	sealer     *KeySealer
	namespaces map[string]bool
	sensitive  func(key string) bool
}

type SealedStoreOption func(*SealedPreferenceStore)

// WithSensitiveKeys replaces the key predicate. The default seals every key
// core.IsSensitiveKey flags.
func WithSensitiveKeys(match func(key string) bool) SealedStoreOption {
	return func(s *SealedPreferenceStore) {
		if match != nil {
			s.sensitive = match
		}
	}
}

func NewSealedPreferenceStore(
	base core.PreferenceStore,
	sealer *KeySealer,
	namespaces []string,
	opts ...SealedStoreOption,
) (*SealedPreferenceStore, error) {
	if base == nil {
		return nil, fmt.Errorf("security: base preference store is required")
	}
	if sealer == nil {
		return nil, fmt.Errorf("security: sealer is required")
	}
	store := &SealedPreferenceStore{
		base:       base,
		sealer:     sealer,
		namespaces: map[string]bool{},
		sensitive:  core.IsSensitiveKey,
	}
	for _, namespace := range namespaces {
		if trimmed := strings.TrimSpace(namespace); trimmed != "" {
			store.namespaces[trimmed] = true
		}
	}
	if len(store.namespaces) == 0 {
		return nil, fmt.Errorf("security: at least one sealed namespace is required")
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(store)
	}
	return store, nil
}

func (s *SealedPreferenceStore) Get(ctx context.Context, namespace string, key string) (string, bool, error) {
	value, ok, err := s.base.Get(ctx, namespace, key)
	if err != nil || !ok || !s.namespaces[namespace] {
		return value, ok, err
	}
	opened, err := s.sealer.Open(value)
	if err != nil {
		return "", false, err
	}
	return opened, true, nil
}

func (s *SealedPreferenceStore) GetAll(ctx context.Context, namespace string) (map[string]string, error) {
	values, err := s.base.GetAll(ctx, namespace)
	if err != nil || !s.namespaces[namespace] {
		return values, err
	}
	out := make(map[string]string, len(values))
	for key, value := range values {
		opened, openErr := s.sealer.Open(value)
		if openErr != nil {
			return nil, fmt.Errorf("security: key %q: %w", key, openErr)
		}
		out[key] = opened
	}
	return out, nil
}

func (s *SealedPreferenceStore) Apply(ctx context.Context, edit core.PreferenceEdit) error {
	if !s.namespaces[edit.Namespace] || len(edit.Set) == 0 {
		return s.base.Apply(ctx, edit)
	}
	sealed := core.PreferenceEdit{
		Namespace: edit.Namespace,
		Set:       make(map[string]string, len(edit.Set)),
		Remove:    edit.Remove,
	}
	for key, value := range edit.Set {
		if value == "" || !s.sensitive(key) {
			sealed.Set[key] = value
			continue
		}
		next, err := s.sealer.Seal(value)
		if err != nil {
			return err
		}
		sealed.Set[key] = next
	}
	return s.base.Apply(ctx, sealed)
}

var _ core.PreferenceStore = (*SealedPreferenceStore)(nil)
