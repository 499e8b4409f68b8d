package agents

import (
	"sort"
	"sync"

	"google.golang.org/adk/agent"

	"agora/pkg/errors"
)

// Registry stores agents by their type for quick lookup.
type Registry struct {
	agents map[AgentType]agent.Agent
	mu     sync.RWMutex
}

// NewRegistry constructs an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[AgentType]agent.Agent)}
}

// Register adds or replaces an agent entry.
func (r *Registry) Register(agentType AgentType, ag agent.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agentType] = ag
}

// Get retrieves an agent by type.
func (r *Registry) Get(agentType AgentType) (agent.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ag, ok := r.agents[agentType]
	return ag, ok
}

// Require is Get that reports a missing agent as ErrNotFound.
func (r *Registry) Require(agentType AgentType) (agent.Agent, error) {
	ag, ok := r.Get(agentType)
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "agent %s not registered", agentType)
	}
	return ag, nil
}

// List returns registered agent types in name order.
func (r *Registry) List() []AgentType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]AgentType, 0, len(r.agents))
	for t := range r.agents {
		res = append(res, t)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })

	return res
}
