package logs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/compozy/logscout/engine/llm/orchestrator"
)

// Options tune the log tools.
type Options struct {
	// DefaultLimit applies when the LLM passes no limit.
	DefaultLimit int
	// MaxLimit caps any requested limit.
	MaxLimit int
	// CacheSize is the number of tool results kept; zero disables caching.
	CacheSize int
	CacheTTL  time.Duration
	// Redact scrubs secrets from returned log messages.
	Redact bool
	Now    func() time.Time
}

func DefaultOptions() Options {
	return Options{
		DefaultLimit: 100,
		MaxLimit:     1000,
		CacheSize:    256,
		CacheTTL:     time.Minute,
		Redact:       true,
	}
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

func (o Options) validate() error {
	switch {
	case o.DefaultLimit <= 0:
		return errors.New("default limit must be positive")
	case o.MaxLimit < o.DefaultLimit:
		return fmt.Errorf("max limit %d is below the default limit %d", o.MaxLimit, o.DefaultLimit)
	case o.CacheSize < 0:
		return errors.New("cache size must not be negative")
	case o.CacheSize > 0 && o.CacheTTL <= 0:
		return errors.New("cache ttl must be positive when caching is enabled")
	}
	return nil
}

// Registry serves the log tools to the orchestrator in a fixed order.
type Registry struct {
	tools map[string]orchestrator.RegistryTool
	order []string
}

var _ orchestrator.ToolRegistry = (*Registry)(nil)

func NewRegistry(store LogStore, opts Options) (*Registry, error) {
	if store == nil {
		return nil, errors.New("log store is required")
	}
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid log tool options: %w", err)
	}
	ts := &toolset{store: store, opts: opts}
	r := &Registry{tools: make(map[string]orchestrator.RegistryTool)}
	for _, def := range ts.definitions() {
		tool, err := NewTool(def)
		if err != nil {
			return nil, err
		}
		var registered orchestrator.RegistryTool = tool
		if opts.CacheSize > 0 {
			registered = newCachedTool(tool, opts.CacheSize, opts.CacheTTL)
		}
		r.tools[tool.Name()] = registered
		r.order = append(r.order, tool.Name())
	}
	return r, nil
}

func (r *Registry) Find(_ context.Context, name string) (orchestrator.RegistryTool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

func (r *Registry) ListAll(context.Context) ([]orchestrator.RegistryTool, error) {
	out := make([]orchestrator.RegistryTool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out, nil
}
