package debugger

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/metrics"
)

// DefaultMaxAttempts is the attempt ceiling used when none is configured.
const DefaultMaxAttempts = 5

// DefaultSuggestion is the generic advice attached to escalation reports.
const DefaultSuggestion = "Review the full traceback manually and escalate to a human maintainer."

// Options configures a Resolver.
type Options struct {
	// MaxAttempts is the fixed attempt ceiling. Values below 1 use DefaultMaxAttempts.
	MaxAttempts int

	// Remediator proposes remedies. Defaults to the DefaultCatalog.
	Remediator Remediator

	// Suggestion is the generic advice put into escalation reports.
	Suggestion string

	// Logger defaults to a no-op logger.
	Logger logging.Logger

	// Recorder receives resolve metrics. Defaults to a no-op recorder.
	Recorder metrics.Recorder
}

// Resolver retries a remediator a bounded number of times.
//
// A Resolver is safe for concurrent use when its Remediator is.
type Resolver struct {
	maxAttempts int
	remediator  Remediator
	suggestion  string
	logger      logging.Logger
	recorder    metrics.Recorder
}

// New creates a Resolver. Defaults: 5 attempts, default catalog, no-op logger.
func New(optFns ...func(o *Options)) *Resolver {
	opts := Options{
		MaxAttempts: DefaultMaxAttempts,
		Suggestion:  DefaultSuggestion,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Remediator == nil {
		opts.Remediator = NewCatalogRemediator()
	}
	if opts.Suggestion == "" {
		opts.Suggestion = DefaultSuggestion
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoOpRecorder{}
	}

	return &Resolver{
		maxAttempts: opts.MaxAttempts,
		remediator:  opts.Remediator,
		suggestion:  opts.Suggestion,
		logger:      logging.Scoped(opts.Logger, "resolver"),
		recorder:    opts.Recorder,
	}
}

// MaxAttempts returns the attempt ceiling.
func (r *Resolver) MaxAttempts() int { return r.maxAttempts }

// Resolution is the result of a resolver run.
type Resolution struct {
	Problem  string            `json:"problem"`
	Attempts int               `json:"attempts"`
	Resolved bool              `json:"resolved"`
	Remedy   string            `json:"remedy,omitempty"`
	Report   *EscalationReport `json:"report,omitempty"`
}

// String renders the resolution as the resolver's result text.
func (r Resolution) String() string {
	if r.Resolved {
		return fmt.Sprintf("Error fixed on attempt %d: %s", r.Attempts, r.Remedy)
	}
	if r.Report != nil {
		return r.Report.String()
	}
	return fmt.Sprintf("Unable to fix the error after %d attempts.", r.Attempts)
}

// EscalationReport summarises a run that exhausted its attempt ceiling.
type EscalationReport struct {
	Problem    string `json:"problem"`
	Attempts   int    `json:"attempts"`
	Suggestion string `json:"suggestion"`
	LastError  string `json:"last_error,omitempty"`
}

// String renders the report as multi-line text.
func (e EscalationReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Unable to fix the error after %d attempts.\n", e.Attempts)
	fmt.Fprintf(&b, "Problem: %s\n", e.Problem)
	if e.LastError != "" {
		fmt.Fprintf(&b, "Last error: %s\n", e.LastError)
	}
	fmt.Fprintf(&b, "Suggestion: %s", e.Suggestion)
	return b.String()
}

// Resolve attempts to find a remedy for problem. It never performs more than
// MaxAttempts attempts and never fails: exhaustion yields an escalation report.
// A cancelled context stops early and escalates with the attempts made so far.
func (r *Resolver) Resolve(ctx context.Context, problem string) Resolution {
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		attempts = attempt

		remedy, err := r.remediator.Remediate(ctx, problem, attempt)
		resolved := err == nil && remedy.Resolved
		if ml, ok := r.logger.(*logging.MeshLogger); ok {
			ml.LogAttempt(attempt, r.maxAttempts, resolved)
		}
		if err != nil {
			lastErr = err
			r.logger.Warn("Remediation attempt failed", "attempt", attempt, "error", err)
			continue
		}
		if resolved {
			r.recorder.ObserveResolve(metrics.OutcomeResolved, attempt)
			return Resolution{Problem: problem, Attempts: attempt, Resolved: true, Remedy: remedy.Text}
		}
	}

	report := &EscalationReport{Problem: problem, Attempts: attempts, Suggestion: r.suggestion}
	if lastErr != nil {
		report.LastError = lastErr.Error()
	}
	r.logger.Warn("Escalating unresolved problem", "attempts", attempts, "max_attempts", r.maxAttempts)
	r.recorder.ObserveResolve(metrics.OutcomeEscalated, attempts)

	return Resolution{Problem: problem, Attempts: attempts, Report: report}
}

// AgentName is the display name of the debugger agent.
const AgentName = "Debugger"

// AgentRole is the role label of the debugger agent.
const AgentRole = "Debugging"

// NewAgent wraps the resolver as a statically constructed agent.
func NewAgent(r *Resolver) *core.Agent {
	return core.NewAgent(AgentName, AgentRole, func(o *core.AgentOptions) {
		o.Personality = "You are a debugging expert that can handle traceback errors."
		o.Task = func(ctx context.Context, input string) (string, error) {
			return r.Resolve(ctx, input).String(), nil
		}
	})
}
