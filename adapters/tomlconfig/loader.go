package tomlconfig

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goliatone/go-authbridge/core"
)

// DefaultSection is the table read when the file nests bridge settings under
// a header, as in [authbridge].
const DefaultSection = core.DefaultServiceName

// Loader reads a TOML file into the raw map consumed by
// core.CfgxConfigProvider. A missing file yields an empty map unless
// Required is set.
type Loader struct {
	Path     string
	Section  string
	Required bool
}

type Option func(*Loader)

func WithSection(section string) Option {
	return func(l *Loader) {
		l.Section = strings.TrimSpace(section)
	}
}

func Required() Option {
	return func(l *Loader) {
		l.Required = true
	}
}

func NewLoader(path string, opts ...Option) *Loader {
	loader := &Loader{Path: strings.TrimSpace(path), Section: DefaultSection}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(loader)
	}
	return loader
}

// NewConfigProvider wires a file loader into the cfgx-backed provider.
func NewConfigProvider(path string, opts ...Option) *core.CfgxConfigProvider {
	return core.NewCfgxConfigProvider(NewLoader(path, opts...))
}

func (l *Loader) LoadRaw(ctx context.Context) (map[string]any, error) {
	if l == nil || l.Path == "" {
		return map[string]any{}, nil
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(l.Path); err != nil {
		if os.IsNotExist(err) && !l.Required {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("tomlconfig: stat %s: %w", l.Path, err)
	}

	var raw map[string]any
	meta, err := toml.DecodeFile(l.Path, &raw)
	if err != nil {
		return nil, fmt.Errorf("tomlconfig: decode %s: %w", l.Path, err)
	}

	values := raw
	if l.Section != "" && meta.IsDefined(l.Section) {
		section, ok := raw[l.Section].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("tomlconfig: %s: section %q is not a table", l.Path, l.Section)
		}
		values = section
	}
	normalized, _ := normalize(values).(map[string]any)
	if normalized == nil {
		normalized = map[string]any{}
	}
	return normalized, nil
}

// normalize narrows TOML integers to int and object arrays to []any of maps
// so cfgx decodes them into the int and slice fields of core.Config.
func normalize(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = normalize(item)
		}
		return out
	case []map[string]any:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, normalize(item))
		}
		return out
	case []any:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, normalize(item))
		}
		return out
	case int64:
		return int(typed)
	default:
		return value
	}
}

var _ core.RawConfigLoader = (*Loader)(nil)
