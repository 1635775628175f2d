package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hupe1980/taskmesh"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/metrics"
)

func newRouteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "route [task...]",
		Short: "Route a task to its agent and print the result",
		Long: `Routes the task given as arguments. Without arguments every non-empty
line read from stdin is routed in turn.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			recorder := metrics.NewPrometheusRecorder(reg)

			rt, err := taskmesh.NewRuntime(cfg, cmd.ErrOrStderr(), func(o *taskmesh.Options) {
				o.Recorder = recorder
			})
			if err != nil {
				return err
			}
			defer rt.Close()

			if cfg.Metrics.Addr != "" {
				stop, err := serveMetrics(cfg.Metrics.Addr, reg, rt.Logger)
				if err != nil {
					return err
				}
				defer stop()
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if len(args) > 0 {
				fmt.Fprintln(out, rt.Route(ctx, strings.Join(args, " ")))
				return nil
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				if err := ctx.Err(); err != nil {
					return err
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				fmt.Fprintln(out, rt.Route(ctx, line))
			}
			return scanner.Err()
		},
	}
}

// serveMetrics exposes reg on addr under /metrics until the returned stop
// function is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger logging.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()
	logger.Info("Serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func newResolveCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "resolve <problem...>",
		Short: "Look up a fix for an error message, escalating after the attempt ceiling",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.runtime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			res := rt.Resolve(cmd.Context(), strings.Join(args, " "))
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the structured resolution as JSON")
	return cmd
}

func newAuditCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the most recent audit entries from the SQLite audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.runtime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			entries, err := rt.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintln(cmd.OutOrStdout(), e.Line())
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show (0 for all)")
	return cmd
}
