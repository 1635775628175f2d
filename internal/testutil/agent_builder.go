package testutil

import (
	"context"

	"github.com/hupe1980/taskmesh/core"
)

// AgentBuilder helps construct agents with fluent chaining for tests.
// Example:
//
//	a := NewAgentBuilder("Journal", "journal").Returns("done").Build()
type AgentBuilder struct {
	name        string
	role        string
	personality string
	task        core.TaskFunc
}

// NewAgentBuilder creates a builder for an agent without a task function.
func NewAgentBuilder(name, role string) *AgentBuilder {
	return &AgentBuilder{name: name, role: role}
}

// Personality sets the personality (chainable).
func (b *AgentBuilder) Personality(p string) *AgentBuilder { b.personality = p; return b }

// Task binds fn as the agent's task function (chainable).
func (b *AgentBuilder) Task(fn core.TaskFunc) *AgentBuilder { b.task = fn; return b }

// Returns binds a task function that always returns out (chainable).
func (b *AgentBuilder) Returns(out string) *AgentBuilder {
	b.task = func(context.Context, string) (string, error) { return out, nil }
	return b
}

// Fails binds a task function that always returns err (chainable).
func (b *AgentBuilder) Fails(err error) *AgentBuilder {
	b.task = func(context.Context, string) (string, error) { return "", err }
	return b
}

// Build returns the agent.
func (b *AgentBuilder) Build() *core.Agent {
	return core.NewAgent(b.name, b.role, func(o *core.AgentOptions) {
		o.Personality = b.personality
		o.Task = b.task
	})
}
