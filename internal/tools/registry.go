package tools

import (
	"sort"
	"sync"

	"google.golang.org/adk/tool"
)

// Registry stores tools by name for discovery and lookup.
type Registry struct {
	tools map[string]tool.Tool
	mu    sync.RWMutex
}

// NewRegistry constructs an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]tool.Tool),
	}
}

// Register adds or replaces a tool under its own name.
func (r *Registry) Register(t tool.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get retrieves a tool by name if registered.
func (r *Registry) Get(name string) (tool.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns the names of all registered tools in order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Tools returns the registered tools in name order.
func (r *Registry) Tools() []tool.Tool {
	names := r.List()

	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]tool.Tool, 0, len(names))
	for _, n := range names {
		res = append(res, r.tools[n])
	}
	return res
}
