package sfoauth

import (
	"context"
	"sync"

	"github.com/giantswarm/sfdc-oauth/instrumentation"
)

// Registry memoizes initialized Clients per distinct provider configuration
// so endpoint discovery happens at most once per (issuer, client id, timeout)
// triple. Environments differing only in other fields share one client.
//
// Entries live for the registry's lifetime; there is no eviction. Concurrent
// first-time lookups for the same key share a single initialization: late
// callers wait for the first one instead of racing their own discovery.
//
// A Registry is owned by the process bootstrap and passed by reference to
// whatever needs clients; there is no package-level instance.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
	inst    *instrumentation.Instrumentation
	metrics *instrumentation.Metrics
}

type registryEntry struct {
	once   sync.Once
	client *Client
	err    error
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// SetInstrumentation attaches OpenTelemetry metrics to the registry and to
// every client it subsequently creates. Must be called before first use.
func (r *Registry) SetInstrumentation(inst *instrumentation.Instrumentation) {
	if inst != nil {
		r.inst = inst
		r.metrics = inst.Metrics()
	}
}

// FindOrCreate returns the cached client for the environment's cache key,
// constructing and initializing one on first use. A failed initialization is
// not cached: the entry is dropped so a later call can retry discovery.
func (r *Registry) FindOrCreate(ctx context.Context, env *Environment) (*Client, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	key := env.cacheKey()

	r.mu.Lock()
	entry, hit := r.entries[key]
	if !hit {
		entry = &registryEntry{}
		r.entries[key] = entry
	}
	r.mu.Unlock()

	r.metrics.RecordCacheLookup(ctx, hit)

	entry.once.Do(func() {
		client, err := NewClient(env)
		if err != nil {
			entry.err = err
			return
		}
		if r.inst != nil {
			client.SetInstrumentation(r.inst)
		}
		if err := client.Init(ctx); err != nil {
			entry.err = err
			return
		}
		entry.client = client
	})

	if entry.err != nil {
		r.mu.Lock()
		if r.entries[key] == entry {
			delete(r.entries, key)
		}
		r.mu.Unlock()
		return nil, entry.err
	}
	return entry.client, nil
}

// Clear drops all cached clients. Primarily for test isolation.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*registryEntry)
}

// Size returns the number of cached entries.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
