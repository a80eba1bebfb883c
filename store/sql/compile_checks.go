package sqlstore

import "github.com/goliatone/go-authbridge/core"

var (
	_ core.PreferenceStore        = (*PreferenceStore)(nil)
	_ core.PreferenceStore        = (*CachedPreferenceStore)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
)
