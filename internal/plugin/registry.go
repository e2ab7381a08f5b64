package plugin

import (
	"sort"
	"sync"

	"go-migrate-pipeline/internal/errors"
)

// Factory constructs a plugin instance from its options.
type Factory[T any] func(cfg Config, env Env) (T, error)

// Registry maps plugin ids to constructors. It is populated at startup by
// explicit Register calls; nothing is discovered at runtime.
type Registry[T any] struct {
	kind      string
	mu        sync.RWMutex
	factories map[string]Factory[T]
}

// NewRegistry creates an empty registry. kind names the plugin type in errors.
func NewRegistry[T any](kind string) *Registry[T] {
	return &Registry[T]{
		kind:      kind,
		factories: make(map[string]Factory[T]),
	}
}

// Register adds a constructor. Registering an id twice panics.
func (r *Registry[T]) Register(id string, f Factory[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[id]; dup {
		panic("duplicate " + r.kind + " plugin: " + id)
	}
	r.factories[id] = f
}

// Has reports whether id is registered.
func (r *Registry[T]) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[id]
	return ok
}

// IDs lists registered plugin ids in sorted order.
func (r *Registry[T]) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// New constructs the plugin registered under id.
func (r *Registry[T]) New(id string, cfg Config, env Env) (T, error) {
	var zero T
	r.mu.RLock()
	f, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return zero, errors.WithHintf(
			errors.Wrapf(errors.ErrUnknownPlugin, "%s plugin %q", r.kind, id),
			"registered %s plugins: %v", r.kind, r.IDs())
	}
	p, err := f(cfg, env)
	if err != nil {
		return zero, errors.Wrapf(err, "%s plugin %q", r.kind, id)
	}
	return p, nil
}
