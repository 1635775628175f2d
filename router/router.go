package router

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/taskmesh/audit"
	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/metrics"
	"github.com/hupe1980/taskmesh/registry"
)

// Outcome classifies how a route ended.
type Outcome string

const (
	// OutcomeHandled means an agent produced a result.
	OutcomeHandled Outcome = metrics.OutcomeHandled
	// OutcomeUnhandled means no agent exists or could be created for the category.
	OutcomeUnhandled Outcome = metrics.OutcomeUnhandled
	// OutcomeFailed means the agent's task function failed.
	OutcomeFailed Outcome = metrics.OutcomeFailed
)

// RouteResult is the structured outcome of a dispatch.
type RouteResult struct {
	Category string
	Agent    string
	// Created is true when the agent was created by this dispatch.
	Created bool
	Output  string
	Outcome Outcome
	// Err is the task failure behind OutcomeFailed.
	Err error
}

// Creator manufactures an agent for a category label.
// *factory.Factory implements it.
type Creator interface {
	Create(label string) (*core.Agent, bool)
}

// Options configures a Router.
type Options struct {
	// Logger defaults to a no-op logger.
	Logger logging.Logger
	// Sink receives one entry per performed task. Defaults to audit.NoOpSink.
	Sink audit.Sink
	// Recorder receives route metrics. Defaults to metrics.NoOpRecorder.
	Recorder metrics.Recorder
	// Rules is the classification table. Defaults to DefaultRules.
	Rules []Rule
	// Component is the name written to audit entries. Defaults to "router".
	Component string
}

// Router dispatches tasks to agents. It is safe for concurrent use.
type Router struct {
	registry  *registry.Registry
	creator   Creator
	logger    logging.Logger
	sink      audit.Sink
	recorder  metrics.Recorder
	rules     []Rule
	component string
}

// New creates a router over reg. creator may be nil, in which case only
// agents already in the registry are used.
func New(reg *registry.Registry, creator Creator, optFns ...func(o *Options)) *Router {
	opts := Options{
		Logger:    logging.NoOpLogger{},
		Sink:      audit.NoOpSink{},
		Recorder:  metrics.NoOpRecorder{},
		Rules:     DefaultRules,
		Component: "router",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if reg == nil {
		reg = registry.New()
	}

	r := &Router{
		registry:  reg,
		creator:   creator,
		logger:    logging.Scoped(opts.Logger, opts.Component),
		sink:      opts.Sink,
		recorder:  opts.Recorder,
		rules:     cloneRules(opts.Rules),
		component: opts.Component,
	}
	r.recorder.SetRegistrySize(reg.Len())
	return r
}

// Registry returns the registry the router dispatches to.
func (r *Router) Registry() *registry.Registry { return r.registry }

// Classify returns the category label of text under the router's rules.
func (r *Router) Classify(text string) string { return Classify(r.rules, text) }

// Route dispatches text and returns the result text.
func (r *Router) Route(ctx context.Context, text string) string {
	return r.Dispatch(ctx, text).Output
}

// Dispatch classifies text, finds or creates the agent for its category and
// performs the task.
func (r *Router) Dispatch(ctx context.Context, text string) RouteResult {
	start := time.Now()
	label := r.Classify(text)
	res := RouteResult{Category: label}

	agent, created, ok := r.registry.FindOrAdd(label, func() (*core.Agent, bool) {
		if r.creator == nil {
			return nil, false
		}
		return r.creator.Create(label)
	})
	if !ok {
		res.Outcome = OutcomeUnhandled
		res.Output = UnhandledMessage(text, label)
		r.logger.Warn("No agent available", "category", label)
		r.recorder.ObserveRoute(label, string(res.Outcome), time.Since(start))
		return res
	}

	res.Agent = agent.Name()
	res.Created = created
	if created {
		r.logger.Info("Agent created", "category", label, "agent", agent.Name())
		r.recorder.SetRegistrySize(r.registry.Len())
	}

	out, err := r.perform(ctx, agent, text)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		res.Output = r.selfHeal(text, agent, err)
	} else {
		res.Outcome = OutcomeHandled
		res.Output = out
	}

	if aerr := r.sink.Append(ctx, audit.NewEntry(r.component, agent.Name(), text, res.Output)); aerr != nil {
		r.logger.Error("Audit append failed", "agent", agent.Name(), "error", aerr)
	}

	dur := time.Since(start)
	r.logDispatch(label, agent.Name(), dur, err)
	r.recorder.ObserveRoute(label, string(res.Outcome), dur)
	return res
}

// Introductions returns the self-description of every registered agent in
// registration order.
func (r *Router) Introductions() []string {
	agents := r.registry.Agents()
	out := make([]string, len(agents))
	for i, a := range agents {
		out[i] = a.Introduce()
	}
	return out
}

// perform runs the agent, converting a panic in its task function into a
// TaskError. The stack of the panicking goroutine is logged when the logger
// supports it.
func (r *Router) perform(ctx context.Context, agent *core.Agent, text string) (out string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = core.NewTaskError(core.FailureUnknown, agent.Name(), fmt.Sprintf("panic: %v", rec))
			if ml, ok := r.logger.(*logging.MeshLogger); ok {
				ml.ErrorWithStack(err, "Recovered panic in task function", "agent", agent.Name())
			}
		}
	}()
	return agent.Perform(ctx, text)
}

// selfHeal turns a task failure into result text according to its kind.
func (r *Router) selfHeal(text string, agent *core.Agent, err error) string {
	kind := core.KindOf(err)
	r.logger.Error("Agent task failed", "agent", agent.Name(), "kind", kind.String(), "error", err)

	switch kind {
	case core.FailureNameResolution:
		return fmt.Sprintf("Self-healing: %s could not resolve a name while handling task '%s': %v. Check the task function binding of the agent.",
			agent.Name(), text, err)
	case core.FailureImport:
		return fmt.Sprintf("Self-healing: %s could not load a required component for task '%s': %v. Install it and retry.",
			agent.Name(), text, err)
	default:
		return fmt.Sprintf("Encountered an unhandled error while %s handled task '%s': %v. Logged for review.",
			agent.Name(), text, err)
	}
}

func (r *Router) logDispatch(category, agent string, dur time.Duration, err error) {
	if ml, ok := r.logger.(*logging.MeshLogger); ok {
		ml.LogDispatch(category, agent, dur, err == nil, err)
		return
	}
	if err != nil {
		r.logger.Error("Task dispatch failed", "category", category, "agent", agent, "duration", dur, "error", err)
		return
	}
	r.logger.Info("Task dispatch completed", "category", category, "agent", agent, "duration", dur)
}

// UnhandledMessage is the result text of a task no agent could take.
func UnhandledMessage(text, label string) string {
	return fmt.Sprintf("Task '%s' could not be handled: no agent available for category %q", text, label)
}
