// Package registry holds the agents a router has created or been seeded with.
//
// The registry is an insertion-ordered list searched linearly. Lookup matches
// by containment of the category label in the agent's role, so a label such
// as "hr" also matches a role like "Chrome Support". Callers that need exact
// roles should use non-overlapping labels.
//
// An agent added through FindOrAdd is also bound to the label it was created
// for, so it is found again even when its role does not contain that label.
package registry

import (
	"strings"
	"sync"

	"github.com/hupe1980/taskmesh/core"
)

// Registry is an ordered, concurrency-safe collection of agents.
// It only grows; agents are never removed.
type Registry struct {
	mu     sync.RWMutex
	agents []*core.Agent
	bound  map[string]*core.Agent
}

// New creates a registry seeded with agents in the given order.
func New(agents ...*core.Agent) *Registry {
	r := &Registry{bound: map[string]*core.Agent{}}
	for _, a := range agents {
		if a != nil {
			r.agents = append(r.agents, a)
		}
	}
	return r
}

// Add appends an agent. Names are not required to be unique; the earlier
// agent wins lookups.
func (r *Registry) Add(a *core.Agent) {
	if a == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = append(r.agents, a)
}

// Find returns the first agent, in insertion order, whose role contains label
// case-insensitively or that was created for label.
func (r *Registry) Find(label string) (*core.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.find(label)
}

// FindOrAdd returns the first agent matching label. On a miss it calls create,
// appends the result and binds it to label, holding the write lock for the whole operation so
// concurrent callers for the same label observe a single new agent.
// created reports whether create was invoked and produced an agent.
func (r *Registry) FindOrAdd(label string, create func() (*core.Agent, bool)) (a *core.Agent, created bool, ok bool) {
	if a, ok := r.Find(label); ok {
		return a, false, true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.find(label); ok {
		return a, false, true
	}

	a, ok = create()
	if !ok || a == nil {
		return nil, false, false
	}
	r.agents = append(r.agents, a)
	if r.bound == nil {
		r.bound = map[string]*core.Agent{}
	}
	r.bound[strings.ToLower(label)] = a
	return a, true, true
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Agents returns a snapshot of the registered agents in insertion order.
func (r *Registry) Agents() []*core.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*core.Agent(nil), r.agents...)
}

func (r *Registry) find(label string) (*core.Agent, bool) {
	needle := strings.ToLower(label)
	bound := r.bound[needle]
	for _, a := range r.agents {
		if a == bound || strings.Contains(strings.ToLower(a.Role()), needle) {
			return a, true
		}
	}
	return nil, false
}
