// Package taskmesh provides a high-level façade over the router, registry,
// factory and resolver. Most applications interact with this package by:
//  1. Loading a descriptor set (descriptor.Load) or building one in code
//  2. Creating a Mesh via New(), optionally seeding hand-built agents
//  3. Routing free-text tasks (Route / Dispatch) or resolving problems (Resolve)
//
// Every collaborator (logger, audit sink, metrics recorder, model) is passed
// in explicitly; nothing is kept in package level state. Defaults are no-op
// implementations suitable for tests.
package taskmesh

import (
	"context"

	"github.com/hupe1980/taskmesh/audit"
	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/debugger"
	"github.com/hupe1980/taskmesh/descriptor"
	"github.com/hupe1980/taskmesh/factory"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/metrics"
	"github.com/hupe1980/taskmesh/model"
	"github.com/hupe1980/taskmesh/registry"
	"github.com/hupe1980/taskmesh/router"
	"github.com/hupe1980/taskmesh/task"
)

// Options configures the Mesh instance.
type Options struct {
	// Descriptors the factory creates agents from. Nil means the mesh only
	// uses seeded agents.
	Descriptors *descriptor.Set

	// Tasks resolves descriptor task_function names. Defaults to the
	// built-in task set wired to Model and Resolver.
	Tasks task.Set

	// Agents are hand-constructed agents seeded into the registry in order.
	Agents []*core.Agent

	// SeedDebugger puts the debugger agent first in the registry.
	SeedDebugger bool

	// Model backs the journal task and, when set, the resolver's fallback
	// remediation. Optional.
	Model model.Model

	// Resolver backs the debug task and Resolve. Defaults to a catalog
	// resolver with DebuggerMaxAttempts attempts.
	Resolver *debugger.Resolver

	// DebuggerMaxAttempts is the resolver attempt ceiling when Resolver is nil.
	DebuggerMaxAttempts int

	// LintCommand is the code review command of the built-in task set.
	LintCommand []string

	// JournalMaxTokens caps model generated journal entries.
	JournalMaxTokens int64

	// Rules overrides the router classification table.
	Rules []router.Rule

	// Sink receives audit entries (defaults to audit.NoOpSink).
	Sink audit.Sink

	// Recorder receives metrics (defaults to metrics.NoOpRecorder).
	Recorder metrics.Recorder

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// WithAgents seeds hand-constructed agents into the registry.
func WithAgents(agents ...*core.Agent) func(o *Options) {
	return func(o *Options) {
		o.Agents = append(o.Agents, agents...)
	}
}

// WithDebugger seeds the built-in debugger agent backed by the mesh resolver.
func WithDebugger() func(o *Options) {
	return func(o *Options) { o.SeedDebugger = true }
}

// Mesh aggregates the dispatch components.
type Mesh struct {
	router      *router.Router
	resolver    *debugger.Resolver
	factory     *factory.Factory
	descriptors []descriptor.Descriptor
}

// New creates a Mesh. It fails when a descriptor references a task function
// that the task set does not provide.
func New(optFns ...func(o *Options)) (*Mesh, error) {
	opts := Options{
		DebuggerMaxAttempts: debugger.DefaultMaxAttempts,
		LintCommand:         []string{"go", "vet"},
		JournalMaxTokens:    150,
		Sink:                audit.NoOpSink{},
		Recorder:            metrics.NoOpRecorder{},
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	resolver := opts.Resolver
	if resolver == nil {
		resolver = debugger.New(func(o *debugger.Options) {
			o.MaxAttempts = opts.DebuggerMaxAttempts
			o.Logger = opts.Logger
			o.Recorder = opts.Recorder
			if opts.Model != nil {
				o.Remediator = debugger.ChainRemediator{
					debugger.NewCatalogRemediator(),
					debugger.NewModelRemediator(opts.Model),
				}
			}
		})
	}

	tasks := opts.Tasks
	if tasks == nil {
		tasks = task.Builtins(func(o *task.Options) {
			o.Model = opts.Model
			o.JournalMaxTokens = opts.JournalMaxTokens
			o.Resolver = resolver
			o.LintCommand = opts.LintCommand
			o.Logger = opts.Logger
		})
	}

	f, err := factory.New(opts.Descriptors, tasks, func(o *factory.Options) { o.Logger = opts.Logger })
	if err != nil {
		return nil, err
	}

	agents := opts.Agents
	if opts.SeedDebugger {
		agents = append([]*core.Agent{debugger.NewAgent(resolver)}, agents...)
	}

	r := router.New(registry.New(agents...), f, func(o *router.Options) {
		o.Logger = opts.Logger
		o.Sink = opts.Sink
		o.Recorder = opts.Recorder
		if opts.Rules != nil {
			o.Rules = opts.Rules
		}
	})

	mesh := &Mesh{router: r, resolver: resolver, factory: f}
	if opts.Descriptors != nil {
		mesh.descriptors = opts.Descriptors.Descriptors()
	}
	return mesh, nil
}

// Route dispatches a task and returns the result text.
func (m *Mesh) Route(ctx context.Context, text string) string { return m.router.Route(ctx, text) }

// Dispatch dispatches a task and returns the structured result.
func (m *Mesh) Dispatch(ctx context.Context, text string) router.RouteResult {
	return m.router.Dispatch(ctx, text)
}

// Resolve runs the escalating resolver on problem directly.
func (m *Mesh) Resolve(ctx context.Context, problem string) debugger.Resolution {
	return m.resolver.Resolve(ctx, problem)
}

// Introductions returns the self-description of every registered agent.
func (m *Mesh) Introductions() []string { return m.router.Introductions() }

// Preload creates and registers an agent for every descriptor whose first
// keyword finds no registered agent, neither by role nor by the label an agent
// was created for. It returns the number of agents created.
func (m *Mesh) Preload() int {
	created := 0
	for _, d := range m.descriptors {
		if len(d.Keywords) == 0 {
			continue
		}
		label := d.Keywords[0]
		if _, isNew, _ := m.Registry().FindOrAdd(label, func() (*core.Agent, bool) {
			return m.factory.Create(label)
		}); isNew {
			created++
		}
	}
	return created
}

// Registry returns the agent registry.
func (m *Mesh) Registry() *registry.Registry { return m.router.Registry() }

// Router returns the underlying router.
func (m *Mesh) Router() *router.Router { return m.router }
