package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

var (
	ErrUnknownBackend = errors.New("engine: unknown backend")
	ErrInvalidEngine  = errors.New("engine: backend returned an unusable engine")
)

// Factory builds an engine. ctx bounds startup work such as health probes.
type Factory func(ctx context.Context, cfg EngineConfig) (Engine, error)

// Registry maps backend names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return errors.New("engine: backend name is empty")
	}
	if factory == nil {
		return fmt.Errorf("engine: nil factory for backend %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[name]; dup {
		return fmt.Errorf("engine: backend %q registered twice", name)
	}
	r.factories[name] = factory
	return nil
}

// New builds the named backend. An engine without a usable sample rate is
// closed and rejected, since every chunk is joined at that rate.
func (r *Registry) New(ctx context.Context, name string, cfg EngineConfig) (Engine, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (registered: %v)", ErrUnknownBackend, name, r.Names())
	}

	cfg.Backend = name
	e, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s engine: %w", name, err)
	}
	if e == nil {
		return nil, fmt.Errorf("%w: %s returned nil", ErrInvalidEngine, name)
	}
	if rate := e.Info().SampleRate; rate <= 0 {
		_ = e.Close()
		return nil, fmt.Errorf("%w: %s reports sample rate %d", ErrInvalidEngine, name, rate)
	}
	return e, nil
}

// Names returns the registered backends in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

var backends = NewRegistry()

// Register adds a backend to the process-wide registry. It panics on a bad
// or duplicate registration, so it belongs in a package init.
func Register(name string, factory Factory) {
	if err := backends.Register(name, factory); err != nil {
		panic(err)
	}
}

func New(ctx context.Context, name string, cfg EngineConfig) (Engine, error) {
	return backends.New(ctx, name, cfg)
}

func ListBackends() []string {
	return backends.Names()
}

func IsRegistered(name string) bool {
	return backends.Has(name)
}
