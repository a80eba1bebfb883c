package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/goliatone/go-authbridge/adapters/tomlconfig"
	"github.com/goliatone/go-authbridge/core"
	bridgemigrations "github.com/goliatone/go-authbridge/migrations"
	"github.com/goliatone/go-authbridge/security"
	sqlstore "github.com/goliatone/go-authbridge/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"

	defaultSQLiteDSN = "file:bridgectl.db?cache=shared"
)

type persistenceConfig struct {
	driver string
	server string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool {
	return c.debug
}

func (c persistenceConfig) GetDriver() string {
	return c.driver
}

func (c persistenceConfig) GetServer() string {
	return c.server
}

func (c persistenceConfig) GetPingTimeout() time.Duration {
	return 5 * time.Second
}

func (c persistenceConfig) GetOtelIdentifier() string {
	return "bridgectl"
}

// openClient connects to the configured store and applies the bridge
// migrations for its dialect.
func openClient(ctx context.Context, opts *rootOptions) (*persistence.Client, error) {
	var (
		sqlDriver string
		dialect   string
		bunDial   schema.Dialect
	)
	dsn := strings.TrimSpace(opts.dsn)
	switch strings.ToLower(strings.TrimSpace(opts.driver)) {
	case driverSQLite, "sqlite3":
		sqlDriver, dialect, bunDial = "sqlite3", bridgemigrations.DialectSQLite, sqlitedialect.New()
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}
	case driverPostgres, "pg":
		sqlDriver, dialect, bunDial = "postgres", bridgemigrations.DialectPostgres, pgdialect.New()
		if dsn == "" {
			return nil, fmt.Errorf("bridgectl: --dsn is required for postgres")
		}
	default:
		return nil, fmt.Errorf("bridgectl: unsupported driver %q", opts.driver)
	}

	sqlDB, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("bridgectl: open %s: %w", sqlDriver, err)
	}
	if sqlDriver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{
		driver: sqlDriver,
		server: dsn,
		debug:  opts.verbose,
	}, sqlDB, bunDial)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("bridgectl: persistence client: %w", err)
	}

	_, err = bridgemigrations.Register(ctx, func(_ context.Context, target string, _ string, fsys fs.FS) error {
		if target != dialect {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, bridgemigrations.WithDialects(dialect))
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("bridgectl: migrate: %w", err)
	}
	return client, nil
}

// loadConfig resolves defaults, the optional TOML file and the --app-id
// override into one config.
func loadConfig(ctx context.Context, opts *rootOptions) (core.Config, error) {
	defaults := core.DefaultConfig()
	cfg, err := tomlconfig.NewConfigProvider(opts.configPath).Load(ctx, defaults)
	if err != nil {
		return core.Config{}, err
	}
	if appID := strings.TrimSpace(opts.appID); appID != "" {
		cfg.AppID = appID
	}
	return cfg, cfg.Validate()
}

// preferenceStore builds the SQL store for client, sealed over the app
// namespace when --seal-key is set.
func preferenceStore(client *persistence.Client, cfg core.Config, opts *rootOptions) (core.PreferenceStore, error) {
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		return nil, err
	}
	store := factory.PreferenceStore()
	if strings.TrimSpace(opts.sealKey) == "" {
		return store, nil
	}
	sealer, err := security.NewKeySealerFromString(opts.sealKey)
	if err != nil {
		return nil, err
	}
	return security.NewSealedPreferenceStore(store, sealer, []string{cfg.AppPrefsNamespace})
}
