package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-authbridge/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const preferenceCacheKeyPrefix = "go-authbridge::preferences::v1"

// CachedPreferenceStore serves namespace reads from a cache and drops the
// namespace entry after every successful edit.
type CachedPreferenceStore struct {
	base  core.PreferenceStore
	cache repositorycache.CacheService
}

func NewCachedPreferenceStore(
	base core.PreferenceStore,
	cacheService repositorycache.CacheService,
) (*CachedPreferenceStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base preference store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: preference cache service is required")
	}
	return &CachedPreferenceStore{base: base, cache: cacheService}, nil
}

// PreferenceCacheKey returns go-authbridge::preferences::v1::<namespace> with
// the namespace URL-path escaped.
func PreferenceCacheKey(namespace string) (string, error) {
	trimmed := strings.TrimSpace(namespace)
	if trimmed == "" {
		return "", fmt.Errorf("sqlstore: preference namespace is required")
	}
	return preferenceCacheKeyPrefix + "::" + url.PathEscape(trimmed), nil
}

func (s *CachedPreferenceStore) Get(ctx context.Context, namespace string, key string) (string, bool, error) {
	values, err := s.GetAll(ctx, namespace)
	if err != nil {
		return "", false, err
	}
	value, ok := values[key]
	return value, ok, nil
}

func (s *CachedPreferenceStore) GetAll(ctx context.Context, namespace string) (map[string]string, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached preference store is not configured")
	}
	cacheKey, err := PreferenceCacheKey(namespace)
	if err != nil {
		return nil, err
	}
	values, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (map[string]string, error) {
		fetched, fetchErr := s.base.GetAll(ctx, strings.TrimSpace(namespace))
		if fetchErr != nil {
			return nil, fetchErr
		}
		return copyStringMap(fetched), nil
	})
	if err != nil {
		return nil, err
	}
	return copyStringMap(values), nil
}

func (s *CachedPreferenceStore) Apply(ctx context.Context, edit core.PreferenceEdit) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached preference store is not configured")
	}
	if err := s.base.Apply(ctx, edit); err != nil {
		return err
	}
	cacheKey, err := PreferenceCacheKey(edit.Namespace)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

func copyStringMap(input map[string]string) map[string]string {
	out := make(map[string]string, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}
