package inspect

import (
	"slices"
	"sync"
)

// Registry maps store names to their live connection. Registering a name
// that is already taken replaces and closes the previous connection.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*Connection
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// Register stores c under its name and returns the connection it replaced,
// if any, after closing it.
func (r *Registry) Register(c *Connection) *Connection {
	r.mu.Lock()
	old := r.conns[c.name]
	r.conns[c.name] = c
	r.mu.Unlock()

	if old != nil && old != c {
		old.close()
		return old
	}
	return nil
}

// Lookup returns the live connection for name.
func (r *Registry) Lookup(name string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[name]
	return c, ok
}

// Names returns the registered store names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.conns))
	for name := range r.conns {
		names = append(names, name)
	}
	r.mu.Unlock()

	slices.Sort(names)
	return names
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
