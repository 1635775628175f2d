package taskmesh

import (
	"context"
	"errors"
	"fmt"
	"io"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/taskmesh/audit"
	"github.com/hupe1980/taskmesh/config"
	"github.com/hupe1980/taskmesh/descriptor"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/model"
	"github.com/hupe1980/taskmesh/model/anthropic"
	"github.com/hupe1980/taskmesh/model/openai"
)

// ErrNoHistory is returned by History when no SQLite audit sink is configured.
var ErrNoHistory = errors.New("taskmesh: no audit history configured")

// Runtime is a Mesh assembled from a config file together with the
// resources it owns. Close releases them.
type Runtime struct {
	*Mesh

	Config  *config.Config
	Logger  *logging.MeshLogger
	history *audit.SQLiteSink
	closers []io.Closer
}

// NewLogger builds the process logger described by cfg.
func NewLogger(cfg config.LoggerConfig, out io.Writer) (*logging.MeshLogger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Format,
		Output:    out,
		AddSource: cfg.AddSource,
	}), nil
}

// NewModel builds the text generation model described by cfg, or nil when
// no provider is configured.
func NewModel(cfg config.ModelConfig, logger logging.Logger) (model.Model, error) {
	var m model.Model

	switch cfg.Provider {
	case config.ProviderNone:
		return nil, nil
	case config.ProviderOpenAI:
		m = openai.NewModel(func(o *openai.Options) {
			o.Model = cfg.Name
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		})
	case config.ProviderAnthropic:
		m = anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(cfg.Name)
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		})
	default:
		return nil, fmt.Errorf("%w: unknown model provider %q", config.ErrInvalid, cfg.Provider)
	}

	if cfg.BreakerMaxFailures > 0 {
		m = model.NewBreakerModel(m, func(o *model.BreakerOptions) {
			o.MaxFailures = cfg.BreakerMaxFailures
			if cfg.BreakerTimeout > 0 {
				o.Timeout = cfg.BreakerTimeout
			}
			o.Logger = logger
		})
	}
	return m, nil
}

// NewRuntime loads descriptors, opens audit sinks and builds the model
// according to cfg, then creates the Mesh. optFns are applied after the
// config derived options and may override them.
func NewRuntime(cfg *config.Config, logOut io.Writer, optFns ...func(o *Options)) (*Runtime, error) {
	logger, err := NewLogger(cfg.Logger, logOut)
	if err != nil {
		return nil, err
	}
	stopTimer := logger.StartTimer("runtime_setup")

	set, err := descriptor.Load(cfg.Descriptors)
	if err != nil {
		return nil, err
	}

	m, err := NewModel(cfg.Model, logger)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Config: cfg, Logger: logger}

	var sinks audit.MultiSink
	if cfg.Audit.File != "" {
		fs, err := audit.NewFileSink(cfg.Audit.File)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, fs)
		sinks = append(sinks, fs)
	}
	if cfg.Audit.SQLite != "" {
		ss, err := audit.NewSQLiteSink(cfg.Audit.SQLite)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, ss)
		rt.history = ss
		sinks = append(sinks, ss)
	}

	mesh, err := New(append([]func(o *Options){func(o *Options) {
		o.Descriptors = set
		o.Model = m
		o.DebuggerMaxAttempts = cfg.Debugger.MaxAttempts
		o.LintCommand = cfg.Tasks.LintCommand
		o.JournalMaxTokens = cfg.Tasks.JournalMaxTokens
		o.Sink = sinks
		o.Logger = logger
		o.SeedDebugger = true
	}}, optFns...)...)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Mesh = mesh

	stopTimer()
	logger.Info("Runtime ready",
		"descriptors", set.Len(),
		"agents", mesh.Registry().Len(),
		"audit_file", cfg.Audit.File,
		"audit_sqlite", cfg.Audit.SQLite,
		"model_provider", cfg.Model.Provider,
	)
	return rt, nil
}

// History returns up to limit audit entries, newest first.
func (rt *Runtime) History(ctx context.Context, limit int) ([]audit.Entry, error) {
	if rt.history == nil {
		return nil, ErrNoHistory
	}
	return rt.history.List(ctx, limit)
}

// Close releases the audit sinks.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
