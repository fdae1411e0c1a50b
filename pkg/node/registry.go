package node

import (
	"fmt"
	"sync"
)

// Registry maps node IDs to their adapter instances. The orchestrator
// resolves adapters through it so the core never depends on a concrete
// VPN protocol.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// Register binds an adapter instance to a node ID, replacing any
// previous binding. Inventory reloads re-register in place.
func (r *Registry) Register(nodeID string, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[nodeID] = adapter
}

// Deregister removes the binding for a node ID.
func (r *Registry) Deregister(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.adapters, nodeID)
}

// Get returns the adapter bound to nodeID.
func (r *Registry) Get(nodeID string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[nodeID]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for node %q", nodeID)
	}
	return adapter, nil
}

// NodeIDs returns all node IDs with a registered adapter.
func (r *Registry) NodeIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	return ids
}
