package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-authbridge/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds the SQL-backed stores from a bun db or a
// persistence client. It satisfies core.RepositoryStoreFactory.
type RepositoryFactory struct {
	db    *bun.DB
	cache repositorycache.CacheService

	preferenceStore       *PreferenceStore
	cachedPreferenceStore *CachedPreferenceStore
}

type FactoryOption func(*RepositoryFactory)

// WithPreferenceCache fronts the preference store with cacheService.
func WithPreferenceCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.cache = cacheService
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(factory)
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.preferenceStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

// PreferenceStore returns the cached store when a cache was configured.
func (f *RepositoryFactory) PreferenceStore() core.PreferenceStore {
	if f == nil {
		return nil
	}
	if f.cachedPreferenceStore != nil {
		return f.cachedPreferenceStore
	}
	if f.preferenceStore == nil {
		return nil
	}
	return f.preferenceStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	store, err := NewPreferenceStore(f.db)
	if err != nil {
		return err
	}
	f.preferenceStore = store
	if f.cache == nil {
		return nil
	}
	cached, err := NewCachedPreferenceStore(store, f.cache)
	if err != nil {
		return err
	}
	f.cachedPreferenceStore = cached
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
