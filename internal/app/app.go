// Package app assembles the ingestion service from settings: logger,
// ingestion config, storage, blob store, metrics and the pipeline.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"cardioingest/internal/blob"
	"cardioingest/internal/config"
	"cardioingest/internal/ingest"
	"cardioingest/internal/logging"
	"cardioingest/internal/observability"
	"cardioingest/internal/pipeline"
)

// App holds the long-lived collaborators shared by the commands. The blob
// store and the coordinator are built on first use so rule and storage
// commands work without bucket access.
type App struct {
	Settings  config.Settings
	Ingestion config.IngestionConfig
	Log       *slog.Logger
	Store     Store
	Registry  *prometheus.Registry
	Expvar    *observability.ExpvarRecorder
	Metrics   pipeline.Metrics

	secrets     config.SecretsAPI
	logWriter   io.Writer
	traceWriter io.Writer
	blobs       blob.Store
	injected    Store

	mu    sync.Mutex
	coord *pipeline.Coordinator
}

// Option customises Build.
type Option func(*App)

// WithSecretsClient injects the Secrets Manager client.
func WithSecretsClient(c config.SecretsAPI) Option {
	return func(a *App) { a.secrets = c }
}

// WithLogWriter redirects log output.
func WithLogWriter(w io.Writer) Option {
	return func(a *App) { a.logWriter = w }
}

// WithTraceWriter enables JSON-lines stage traces written to w.
func WithTraceWriter(w io.Writer) Option {
	return func(a *App) { a.traceWriter = w }
}

// WithBlobStore uses b instead of opening the configured blob driver.
func WithBlobStore(b blob.Store) Option {
	return func(a *App) { a.blobs = b }
}

// WithStore uses s instead of opening the configured storage driver.
func WithStore(s Store) Option {
	return func(a *App) { a.injected = s }
}

// WithRegistry registers metrics on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(a *App) { a.Registry = reg }
}

// Build wires the application. The caller must Close the result.
func Build(ctx context.Context, settings config.Settings, opts ...Option) (*App, error) {
	a := &App{Settings: settings}
	for _, opt := range opts {
		opt(a)
	}

	log, err := logging.New(logging.Config{Level: settings.LogLevel, Format: settings.LogFormat, Writer: a.logWriter})
	if err != nil {
		return nil, err
	}
	a.Log = log.With("env", settings.Env)

	if settings.Source == config.SourceSecretsManager && a.secrets == nil {
		client, err := config.NewSecretsClient(ctx, settings.SecretRegion)
		if err != nil {
			return nil, err
		}
		a.secrets = client
	}
	a.Ingestion, err = config.LoadIngestion(ctx, settings, a.secrets)
	if err != nil {
		return nil, err
	}
	a.Log.Info("ingestion config loaded", "source", settings.Source, "region", a.Ingestion.Region)

	switch settings.MetricsBackend {
	case "", config.MetricsPrometheus:
		if a.Registry == nil {
			a.Registry = prometheus.NewRegistry()
		}
		pm, err := observability.NewPipelineMetrics(a.Registry)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		a.Metrics = pm
	case config.MetricsExpvar:
		a.Registry = nil
		a.Expvar = observability.NewExpvarRecorder("")
		a.Metrics = a.Expvar
	default:
		return nil, fmt.Errorf("unknown metrics backend %q", settings.MetricsBackend)
	}

	a.Store = a.injected
	if a.Store == nil {
		a.Store, err = OpenStore(ctx, settings, a.Ingestion)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
	}
	return a, nil
}

// Blobs returns the raw sample store, opening it on first call.
func (a *App) Blobs(ctx context.Context) (blob.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.blobs != nil {
		return a.blobs, nil
	}
	region := a.Ingestion.Region
	if region == "" {
		region = a.Settings.SecretRegion
	}
	b, err := blob.Open(ctx, blob.Settings{
		Driver: blob.Driver(a.Settings.BlobDriver),
		FSRoot: a.Settings.BlobFSRoot,
		S3: blob.S3Config{
			Region:    region,
			Bucket:    a.Ingestion.S3InputBucket,
			Endpoint:  a.Settings.S3Endpoint,
			PathStyle: a.Settings.S3PathStyle,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	a.blobs = b
	return b, nil
}

// Coordinator returns the pipeline coordinator, loading rules on first call.
func (a *App) Coordinator(ctx context.Context) (*pipeline.Coordinator, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.coord != nil {
		return a.coord, nil
	}
	opts := []pipeline.Option{
		pipeline.WithLogger(a.Log),
		pipeline.WithMetrics(a.Metrics),
		pipeline.WithSink(a.Store),
	}
	if a.traceWriter != nil {
		opts = append(opts, pipeline.WithTracer(observability.NewJSONTracer(a.traceWriter)))
	}
	c, err := pipeline.Build(ctx, a.Store, opts...)
	if err != nil {
		return nil, err
	}
	a.coord = c
	return c, nil
}

// Orchestrator wires the loader over the input prefix to the coordinator.
func (a *App) Orchestrator(ctx context.Context) (*ingest.Orchestrator, error) {
	blobs, err := a.Blobs(ctx)
	if err != nil {
		return nil, err
	}
	coord, err := a.Coordinator(ctx)
	if err != nil {
		return nil, err
	}
	loader := ingest.NewLoader(blobs, a.Ingestion.S3InputPrefix, a.Log)
	return ingest.NewOrchestrator(loader, coord, ingest.WithLogger(a.Log)), nil
}

// RuleStats counts the active rows in each rule table.
type RuleStats struct {
	Aliases     int `json:"aliases"`
	Conversions int `json:"conversions"`
	Mappings    int `json:"dominant_mappings"`
}

// RuleStats reads the rule tables.
func (a *App) RuleStats(ctx context.Context) (RuleStats, error) {
	aliases, err := a.Store.LoadActiveAliases(ctx)
	if err != nil {
		return RuleStats{}, err
	}
	conversions, err := a.Store.LoadActiveConversions(ctx)
	if err != nil {
		return RuleStats{}, err
	}
	mappings, err := a.Store.LoadDominantMappings(ctx)
	if err != nil {
		return RuleStats{}, err
	}
	return RuleStats{Aliases: len(aliases), Conversions: len(conversions), Mappings: len(mappings)}, nil
}

// Close releases the storage backend.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	if err := a.Store.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	return nil
}
