// Package migrations exposes the embedded preference schema per SQL dialect
// so a persistence client can register only what it runs against.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	authbridge "github.com/goliatone/go-authbridge"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	DefaultSourceLabel = "go-authbridge"

	embeddedRoot = "data/sql/migrations"
)

// dialectDirs maps each dialect to its directory below the embedded root.
var dialectDirs = []struct {
	dialect string
	dir     string
}{
	{dialect: DialectPostgres, dir: "."},
	{dialect: DialectSQLite, dir: "sqlite"},
}

// FilesystemSpec is one dialect's migration set.
type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

// Registration records what Register handed to the register function.
type Registration struct {
	SourceLabel string
	Dialects    []string
	Registered  []FilesystemSpec
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

func WithSourceLabel(label string) Option {
	return func(r *Registration) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			r.SourceLabel = trimmed
		}
	}
}

// WithDialects limits registration to the named dialects. Unknown names are
// rejected by Register.
func WithDialects(dialects ...string) Option {
	return func(r *Registration) {
		var selected []string
		for _, dialect := range dialects {
			dialect = strings.ToLower(strings.TrimSpace(dialect))
			if dialect == "" || contains(selected, dialect) {
				continue
			}
			selected = append(selected, dialect)
		}
		if len(selected) > 0 {
			r.Dialects = selected
		}
	}
}

// Filesystems returns the migration set of every supported dialect from the
// embedded schema, or from root when one is given. Each set must hold at
// least one *.up.sql file.
func Filesystems(root ...fs.FS) ([]FilesystemSpec, error) {
	source := authbridge.GetMigrationsFS()
	if len(root) > 0 && root[0] != nil {
		source = root[0]
	}
	base, err := fs.Sub(source, embeddedRoot)
	if err != nil {
		return nil, fmt.Errorf("migrations: open %s: %w", embeddedRoot, err)
	}

	specs := make([]FilesystemSpec, 0, len(dialectDirs))
	for _, entry := range dialectDirs {
		fsys := base
		path := embeddedRoot
		if entry.dir != "." {
			if fsys, err = fs.Sub(base, entry.dir); err != nil {
				return nil, fmt.Errorf("migrations: open %s set: %w", entry.dialect, err)
			}
			path = embeddedRoot + "/" + entry.dir
		}
		ups, err := fs.Glob(fsys, "*.up.sql")
		if err != nil {
			return nil, fmt.Errorf("migrations: list %s set: %w", entry.dialect, err)
		}
		if len(ups) == 0 {
			return nil, fmt.Errorf("migrations: %s set at %q has no *.up.sql files", entry.dialect, path)
		}
		specs = append(specs, FilesystemSpec{Dialect: entry.dialect, Path: path, FS: fsys})
	}
	return specs, nil
}

// Register hands the migration set of each selected dialect to registerFn.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel: DefaultSourceLabel,
		Dialects:    []string{DialectPostgres, DialectSQLite},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	specs, err := Filesystems()
	if err != nil {
		return reg, err
	}
	known := make(map[string]FilesystemSpec, len(specs))
	for _, spec := range specs {
		known[spec.Dialect] = spec
	}
	for _, dialect := range reg.Dialects {
		if _, ok := known[dialect]; !ok {
			return reg, fmt.Errorf("migrations: unsupported dialect %q", dialect)
		}
	}

	for _, dialect := range reg.Dialects {
		spec := known[dialect]
		if err := registerFn(ctx, dialect, reg.SourceLabel, spec.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s from %s: %w", dialect, spec.Path, err)
		}
		reg.Registered = append(reg.Registered, spec)
	}
	return reg, nil
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
