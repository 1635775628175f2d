package main

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/taskmesh"
	"github.com/hupe1980/taskmesh/config"
)

// app holds the global flags shared by all subcommands.
type app struct {
	configPath  string
	verbose     bool
	metricsAddr string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "taskmesh",
		Short: "Route free-text tasks to lazily created agents",
		Long: `taskmesh classifies a task description into a category, finds or
creates the agent responsible for that category from the descriptor file and
hands it the task. Every handled task is written to the audit log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "taskmesh.yaml", "path to the config file")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while routing")

	cmd.AddCommand(
		newRouteCmd(a),
		newResolveCmd(a),
		newAgentsCmd(a),
		newAuditCmd(a),
	)
	return cmd
}

// loadConfig reads the config file and applies flag overrides.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.verbose {
		cfg.Logger.Level = "debug"
	}
	if a.metricsAddr != "" {
		cfg.Metrics.Addr = a.metricsAddr
	}
	return cfg, nil
}

// runtime builds a Runtime whose logs go to the command's error stream.
func (a *app) runtime(cmd *cobra.Command, optFns ...func(o *taskmesh.Options)) (*taskmesh.Runtime, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	return taskmesh.NewRuntime(cfg, cmd.ErrOrStderr(), optFns...)
}
