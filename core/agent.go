package core

import (
	"context"
	"fmt"
)

// TaskFunc is the callback an Agent wraps. It receives the original task
// text and returns the produced result text.
//
// Implementations report recognised failures as *TaskError so the caller can
// switch on the FailureKind instead of inspecting message text.
type TaskFunc func(ctx context.Context, input string) (string, error)

// AgentOptions configures an Agent at construction time.
type AgentOptions struct {
	// Personality is free descriptive text. It has no semantic role in
	// dispatch and only appears in introductions.
	Personality string

	// Task is the callback performing the agent's work. A nil Task turns the
	// agent into a no-op that answers with a fixed "not configured" message.
	Task TaskFunc
}

// Agent is a named unit of behavior.
//
// Agents are immutable after construction and safe for concurrent use as long
// as the wrapped TaskFunc is.
type Agent struct {
	name        string
	role        string
	personality string
	task        TaskFunc
}

// NewAgent creates an agent with the given display name and role label.
func NewAgent(name, role string, optFns ...func(o *AgentOptions)) *Agent {
	opts := AgentOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Agent{
		name:        name,
		role:        role,
		personality: opts.Personality,
		task:        opts.Task,
	}
}

// Name returns the display name of the agent.
func (a *Agent) Name() string { return a.name }

// Role returns the category label used for registry matching.
func (a *Agent) Role() string { return a.role }

// Personality returns the descriptive personality text.
func (a *Agent) Personality() string { return a.personality }

// HasTask reports whether a task function was bound at construction.
func (a *Agent) HasTask() bool { return a.task != nil }

// Perform runs the agent's task function with the provided input.
//
// An agent without a task function never fails: it returns a sentinel string
// naming the agent and stating that it has no assigned function.
func (a *Agent) Perform(ctx context.Context, input string) (string, error) {
	if a.task == nil {
		return NotConfiguredMessage(a.name), nil
	}

	return a.task(ctx, input)
}

// Introduce returns a deterministic self-description of the agent.
func (a *Agent) Introduce() string {
	return fmt.Sprintf("My name is %s. I am responsible for %s. %s", a.name, a.role, a.personality)
}

// String implements fmt.Stringer.
func (a *Agent) String() string {
	return fmt.Sprintf("%s (%s)", a.name, a.role)
}

// NotConfiguredMessage is the sentinel returned by agents without a task function.
func NotConfiguredMessage(name string) string {
	return fmt.Sprintf("%s has no assigned function.", name)
}
