package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"cardioingest/internal/app"
	"cardioingest/internal/infra/persistence/seed"
	"cardioingest/internal/ingest"
	"cardioingest/pkg/domain"
)

func runCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "run FILENAME",
		Short: "Ingest one raw sample and print its envelope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			orch, err := a.Orchestrator(cmd.Context())
			if err != nil {
				return err
			}
			env, err := orch.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.printJSON(env)
		},
	}
}

func batchCommand(c *cli) *cobra.Command {
	var (
		prefix      string
		concurrency int
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Ingest every raw sample under a prefix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			addr := metricsAddr
			if addr == "" {
				addr = a.Settings.MetricsAddr
			}
			if addr != "" {
				stop := serveMetrics(a, addr)
				defer stop()
			}

			orch, err := a.Orchestrator(cmd.Context())
			if err != nil {
				return err
			}
			results, err := orch.RunBatch(cmd.Context(), prefix, concurrency)
			if err != nil {
				return err
			}
			type row struct {
				ingest.Result
				Failure string `json:"error,omitempty"`
			}
			rows := make([]row, len(results))
			failed := 0
			for i, r := range results {
				rows[i] = row{Result: r, Failure: r.Error()}
				if r.Err != nil {
					failed++
				}
			}
			if err := c.printJSON(rows); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d samples failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "key prefix below the configured input prefix")
	cmd.Flags().IntVar(&concurrency, "concurrency", ingest.DefaultConcurrency, "samples processed in parallel")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve metrics on this address while the batch runs")
	return cmd
}

// serveMetrics exposes the configured backend until the returned func is
// called: /metrics for prometheus, /debug/vars for expvar.
func serveMetrics(a *app.App, addr string) func() {
	mux := http.NewServeMux()
	if a.Registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{
			ErrorLog:      log.New(logWriter{a.Log}, "metrics handler: ", 0),
			ErrorHandling: promhttp.HTTPErrorOnError,
		}))
	}
	if a.Expvar != nil {
		mux.Handle("/debug/vars", expvar.Handler())
	}
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	a.Log.Info("serving metrics", "addr", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// logWriter adapts the app logger for promhttp's error log.
type logWriter struct{ log *slog.Logger }

func (w logWriter) Write(p []byte) (int, error) {
	w.log.Error(strings.TrimSpace(string(p)))
	return len(p), nil
}

func rulesCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and seed the rule tables",
	}
	cmd.AddCommand(rulesStatsCommand(c), rulesLookupCommand(c), rulesSeedCommand(c))
	return cmd
}

func rulesStatsCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count active rows in each rule table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			stats, err := a.RuleStats(cmd.Context())
			if err != nil {
				return err
			}
			return c.printJSON(stats)
		},
	}
}

func rulesLookupCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup ALIAS",
		Short: "Resolve a single alias against the active alias table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			name, ok, err := a.Store.LookupActiveAlias(cmd.Context(), domain.NormalizeKey(args[0]))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no active alias %q", args[0])
			}
			_, err = fmt.Fprintln(c.stdout, name)
			return err
		},
	}
}

func rulesSeedCommand(c *cli) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace the rule tables with the rows in a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bundle, err := seed.LoadFile(file)
			if err != nil {
				return err
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			if err := seed.Apply(cmd.Context(), a.Store, bundle); err != nil {
				return err
			}
			a.Log.Info("rules seeded", "file", file,
				"aliases", len(bundle.Aliases), "conversions", len(bundle.Conversions), "dominant_mappings", len(bundle.Mappings))
			_, err = fmt.Fprintf(c.stdout, "seeded %d aliases, %d conversions, %d dominant mappings\n",
				len(bundle.Aliases), len(bundle.Conversions), len(bundle.Mappings))
			return err
		},
	}
	cmd.Flags().StringVar(&file, "file", "rules.yaml", "YAML rules file")
	return cmd
}

func migrateCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the rule and sample tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			if err := a.Store.Migrate(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.stdout, "schema ready (%s)\n", a.Settings.StorageDriver)
			return err
		},
	}
}

func showCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show SAMPLE_ID",
		Short: "Print a stored sample envelope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			env, err := a.Store.GetSample(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.printJSON(env)
		},
	}
}
