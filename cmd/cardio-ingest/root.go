package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"cardioingest/internal/app"
	"cardioingest/internal/config"
)

// cli carries global flag values and output streams shared by subcommands.
type cli struct {
	envFile   string
	logLevel  string
	logFormat string
	trace     bool

	stdout io.Writer
	stderr io.Writer
	opts   []app.Option
}

func newCLI(stdout, stderr io.Writer, opts ...app.Option) *cli {
	return &cli{stdout: stdout, stderr: stderr, opts: opts}
}

func newRootCommand(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "cardio-ingest",
		Short:         "Biomarker ingestion pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&c.envFile, "env-file", ".env", "dotenv file read before the process environment")
	flags.StringVar(&c.logLevel, "log-level", "", "log level override (debug|info|warn|error)")
	flags.StringVar(&c.logFormat, "log-format", "", "log format override (json|text)")
	flags.BoolVar(&c.trace, "trace", false, "write pipeline stage traces to stderr")

	root.AddCommand(
		runCommand(c),
		batchCommand(c),
		rulesCommand(c),
		migrateCommand(c),
		showCommand(c),
	)
	return root
}

// open loads settings, applies flag overrides and builds the application.
func (c *cli) open(cmd *cobra.Command) (*app.App, error) {
	settings, err := config.Load(c.envFile)
	if err != nil {
		return nil, err
	}
	if c.logLevel != "" {
		settings.LogLevel = c.logLevel
	}
	if c.logFormat != "" {
		settings.LogFormat = c.logFormat
	}
	opts := append([]app.Option{app.WithLogWriter(c.stderr)}, c.opts...)
	if c.trace {
		opts = append(opts, app.WithTraceWriter(c.stderr))
	}
	return app.Build(cmd.Context(), settings, opts...)
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
