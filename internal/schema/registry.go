package schema

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config is the provider-agnostic description of where a schema comes from.
// Each provider reads only the fields it needs.
type Config struct {
	// Kind selects the provider ("file", "remote", "postgres", "sqlite",
	// "sqlserver", "mysql").
	Kind string

	// Path is a local view file for the "file" provider.
	Path string

	// Domain, DatasetID, AppToken, Username and Password address a dataset on
	// the remote dataset service.
	Domain    string
	DatasetID string
	AppToken  string
	Username  string
	Password  string

	// DSN and Table address a database table for the SQL providers.
	DSN   string
	Table string
}

// Factory constructs a Provider from Config.
type Factory func(ctx context.Context, cfg Config) (Provider, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a provider available under kind. Providers call it from
// init; registering the same kind twice replaces the earlier factory.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New constructs the provider registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Provider, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("schema: unknown provider kind %q (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds lists the registered provider kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Load is a convenience for New followed by Dataset and Validate.
func Load(ctx context.Context, cfg Config) (Dataset, error) {
	p, err := New(ctx, cfg)
	if err != nil {
		return Dataset{}, err
	}
	ds, err := p.Dataset(ctx)
	if err != nil {
		return Dataset{}, fmt.Errorf("schema: load %s: %w", cfg.Kind, err)
	}
	if err := ds.Validate(); err != nil {
		return Dataset{}, err
	}
	return ds, nil
}
