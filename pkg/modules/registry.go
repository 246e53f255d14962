package modules

import (
	"errors"
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/simonswine/jsonnet-exporter/pkg/config"
	"github.com/simonswine/jsonnet-exporter/pkg/engine"
)

var ErrModuleNotFound = errors.New("module not found")

const defaultCacheSize = 128

type Options struct {
	// CacheSize bounds the number of loaded modules kept in memory.
	CacheSize int
	// Debugf receives the leaf objects of every evaluated document when set.
	Debugf func(format string, args ...any)
}

// Registry is an immutable set of module specs. Loaded modules are cached.
type Registry struct {
	specs  map[string]config.ModuleSpec
	names  []string
	engine *engine.Engine
	cache  *lru.Cache[string, *Module]
	debugf func(string, ...any)
}

func NewRegistry(cfg *config.Config, eng *engine.Engine, opts Options) (*Registry, error) {
	if eng == nil {
		return nil, errors.New("modules: nil engine")
	}
	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, *Module](size)
	if err != nil {
		return nil, fmt.Errorf("modules: init cache: %w", err)
	}

	specs := map[string]config.ModuleSpec{}
	if cfg != nil {
		for name, spec := range cfg.Modules {
			specs[name] = spec
		}
	}
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Registry{
		specs:  specs,
		names:  names,
		engine: eng,
		cache:  cache,
		debugf: opts.Debugf,
	}, nil
}

// Names returns the configured module names in lexical order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

func (r *Registry) Len() int { return len(r.names) }

func (r *Registry) Lookup(name string) (config.ModuleSpec, error) {
	spec, ok := r.specs[name]
	if !ok {
		return config.ModuleSpec{}, fmt.Errorf("%w: %q", ErrModuleNotFound, name)
	}
	return spec, nil
}

// Module returns the loaded module for name, loading it on first use.
func (r *Registry) Module(name string) (*Module, error) {
	spec, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	if m, ok := r.cache.Get(name); ok {
		return m, nil
	}
	m, err := load(r.engine, name, spec, r.debugf)
	if err != nil {
		return nil, err
	}
	r.cache.Add(name, m)
	return m, nil
}
