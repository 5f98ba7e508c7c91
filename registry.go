package vfs

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// A Factory creates the backend for one storage. It is invoked at most once per storage (by UUID) and engine, as
// long as it succeeds.
type Factory func(ctx context.Context, storage Storage) (Backend, error)

// A Registry maps backend type names (Storage.BackendType) to factories.
type Registry struct {
	mutex     sync.RWMutex
	factories map[string]Factory
}

// NewRegistry allocates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for a backend type.
func (r *Registry) Register(backendType string, factory Factory) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.factories[backendType] = factory
}

// Lookup returns the factory for the backend type.
func (r *Registry) Lookup(backendType string) (Factory, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	f, ok := r.factories[backendType]
	return f, ok
}

// Types returns all registered backend types, sorted.
func (r *Registry) Types() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	res := make([]string, 0, len(r.factories))
	for t := range r.factories {
		res = append(res, t)
	}
	sort.Strings(res)
	return res
}

var errUnsupportedBackendType = errors.New("unsupported backend type")

// backendCache is the arena of backend instances of one engine. Entries are never evicted.
type backendCache struct {
	registry *Registry
	logger   *zap.Logger
	mutex    sync.Mutex
	backends map[uuid.UUID]Backend
}

func newBackendCache(registry *Registry, logger *zap.Logger) *backendCache {
	return &backendCache{
		registry: registry,
		logger:   logger,
		backends: make(map[uuid.UUID]Backend),
	}
}

// get returns the cached backend or creates it. A failed factory call is not cached, so the next operation tries
// again.
func (c *backendCache) get(ctx context.Context, storage Storage) (Backend, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if b, ok := c.backends[storage.UUID]; ok {
		return b, nil
	}
	factory, ok := c.registry.Lookup(storage.BackendType)
	if !ok {
		return nil, errors.Wrapf(errUnsupportedBackendType, "storage %s", storage)
	}
	b, err := factory(ctx, storage)
	if err != nil {
		return nil, errors.Wrapf(err, "init backend for storage %s", storage)
	}
	c.logger.Info("backend initialized", zap.Stringer("storage", storage))
	c.backends[storage.UUID] = b
	return b, nil
}

// drain empties the cache and returns what it held, so that the next operation creates fresh backends.
func (c *backendCache) drain() map[uuid.UUID]Backend {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	backends := c.backends
	c.backends = make(map[uuid.UUID]Backend)
	return backends
}
