// Package config loads the taskmesh configuration file.
//
// Load starts from Defaults, overlays the YAML file, applies TASKMESH_*
// environment overrides and validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/taskmesh/logging"
)

// ErrInvalid is matched by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Model providers.
const (
	ProviderNone      = ""
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config is the root configuration.
type Config struct {
	// Descriptors is the path of the agent descriptor file.
	Descriptors string         `yaml:"descriptors"`
	Audit       AuditConfig    `yaml:"audit"`
	Logger      LoggerConfig   `yaml:"logger"`
	Model       ModelConfig    `yaml:"model"`
	Debugger    DebuggerConfig `yaml:"debugger"`
	Tasks       TasksConfig    `yaml:"tasks"`
	Metrics     MetricsConfig  `yaml:"metrics"`
}

// AuditConfig selects the audit sinks. Empty paths disable a sink.
type AuditConfig struct {
	File   string `yaml:"file"`
	SQLite string `yaml:"sqlite"`
}

// LoggerConfig configures the process logger.
type LoggerConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// ModelConfig configures the optional text generation backend.
type ModelConfig struct {
	Provider string `yaml:"provider"`
	Name     string `yaml:"name"`
	// APIKey overrides the provider SDK's own environment lookup.
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	// BreakerMaxFailures opens the circuit after that many consecutive
	// model failures. Zero disables the breaker.
	BreakerMaxFailures uint32        `yaml:"breaker_max_failures"`
	BreakerTimeout     time.Duration `yaml:"breaker_timeout"`
}

// DebuggerConfig configures the escalating resolver.
type DebuggerConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
}

// TasksConfig configures the built-in task functions.
type TasksConfig struct {
	LintCommand      []string `yaml:"lint_command"`
	JournalMaxTokens int64    `yaml:"journal_max_tokens"`
}

// MetricsConfig configures the Prometheus endpoint. An empty address disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() *Config {
	return &Config{
		Descriptors: "agents.yaml",
		Audit: AuditConfig{
			File: "logs/agent_dialogue_log.txt",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
		},
		Debugger: DebuggerConfig{
			MaxAttempts: 5,
		},
		Tasks: TasksConfig{
			LintCommand:      []string{"go", "vet"},
			JournalMaxTokens: 150,
		},
	}
}

// Load reads a YAML config file, applies env var overrides and validates.
// A missing file is not an error; defaults are used instead.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps TASKMESH_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("TASKMESH_DESCRIPTORS"); v != "" {
		cfg.Descriptors = v
	}
	if v, ok := os.LookupEnv("TASKMESH_AUDIT_FILE"); ok {
		cfg.Audit.File = v
	}
	if v, ok := os.LookupEnv("TASKMESH_AUDIT_SQLITE"); ok {
		cfg.Audit.SQLite = v
	}
	if v := os.Getenv("TASKMESH_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("TASKMESH_LOG_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("TASKMESH_MODEL_PROVIDER"); v != "" {
		cfg.Model.Provider = v
	}
	if v := os.Getenv("TASKMESH_MODEL_NAME"); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv("TASKMESH_MODEL_API_KEY"); v != "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("TASKMESH_MODEL_BREAKER_MAX_FAILURES"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%w: TASKMESH_MODEL_BREAKER_MAX_FAILURES: %v", ErrInvalid, err)
		}
		cfg.Model.BreakerMaxFailures = uint32(n)
	}
	if v := os.Getenv("TASKMESH_DEBUGGER_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: TASKMESH_DEBUGGER_MAX_ATTEMPTS: %v", ErrInvalid, err)
		}
		cfg.Debugger.MaxAttempts = n
	}
	if v := os.Getenv("TASKMESH_LINT_COMMAND"); v != "" {
		cfg.Tasks.LintCommand = strings.Fields(v)
	}
	if v := os.Getenv("TASKMESH_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	return nil
}

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// Unwrap lets errors.Is match ErrInvalid.
func (v *ValidationError) Unwrap() error { return ErrInvalid }

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a
// *ValidationError listing every problem found.
func Validate(cfg *Config) error {
	ve := &ValidationError{}

	if strings.TrimSpace(cfg.Descriptors) == "" {
		ve.Add("descriptors must not be empty")
	}
	if _, err := logging.ParseLevel(cfg.Logger.Level); err != nil {
		ve.Add("logger.level: %v", err)
	}
	switch cfg.Logger.Format {
	case "json", "text":
	default:
		ve.Add("logger.format must be json or text, got %q", cfg.Logger.Format)
	}
	switch cfg.Model.Provider {
	case ProviderNone:
	case ProviderOpenAI, ProviderAnthropic:
		if cfg.Model.Name == "" {
			ve.Add("model.name is required for provider %q", cfg.Model.Provider)
		}
	default:
		ve.Add("model.provider must be one of openai, anthropic or empty, got %q", cfg.Model.Provider)
	}
	if cfg.Model.BreakerTimeout < 0 {
		ve.Add("model.breaker_timeout must be >= 0")
	}
	if cfg.Debugger.MaxAttempts <= 0 {
		ve.Add("debugger.max_attempts must be > 0")
	}
	if cfg.Tasks.JournalMaxTokens < 0 {
		ve.Add("tasks.journal_max_tokens must be >= 0")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}
