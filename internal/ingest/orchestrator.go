// Package ingest drives end-to-end runs: fetch a raw sample from the input
// bucket, validate it, stamp a trace id and hand it to the pipeline.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cardioingest/internal/logging"
	"cardioingest/internal/observability"
	"cardioingest/internal/schema"
	"cardioingest/pkg/domain"
)

// ErrInvalidJSON is returned when a raw object is not valid JSON.
var ErrInvalidJSON = errors.New("invalid json format")

// DefaultConcurrency bounds RunBatch when the caller passes zero.
const DefaultConcurrency = 4

// Runner processes one validated sample. pipeline.Coordinator implements it.
type Runner interface {
	Run(ctx context.Context, sample domain.RawSample) (domain.SampleEnvelope, error)
}

// Orchestrator ties the loader, schema validation and the pipeline together.
type Orchestrator struct {
	loader    *Loader
	validator *schema.Validator
	runner    Runner
	log       logging.Logger
	traceID   func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithTraceIDFunc overrides trace id generation.
func WithTraceIDFunc(fn func() string) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.traceID = fn
		}
	}
}

// NewOrchestrator wires loader and runner.
func NewOrchestrator(loader *Loader, runner Runner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		loader:    loader,
		validator: schema.New(),
		runner:    runner,
		log:       logging.Nop(),
		traceID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run ingests the sample stored under filename. Any client trace id is
// replaced with a fresh one.
func (o *Orchestrator) Run(ctx context.Context, filename string) (domain.SampleEnvelope, error) {
	data, err := o.loader.Load(ctx, filename)
	if err != nil {
		return domain.SampleEnvelope{}, err
	}
	sample, err := o.validator.Validate(data)
	if err != nil {
		o.log.Warn("raw sample rejected", "filename", filename, "error", err)
		return domain.SampleEnvelope{}, err
	}
	sample.TraceID = o.traceID()
	ctx = observability.WithTraceID(ctx, sample.TraceID)

	o.log.Info("payload validated successfully",
		"user_id", sample.UserID, "trace_id", sample.TraceID, "sample_id", sample.SampleID)
	return o.runner.Run(ctx, sample)
}

// Result is the outcome of one file in a batch.
type Result struct {
	Filename string          `json:"filename"`
	SampleID string          `json:"sample_id,omitempty"`
	TraceID  string          `json:"trace_id,omitempty"`
	Status   domain.QCStatus `json:"overall_status,omitempty"`
	Err      error           `json:"-"`
}

// Error returns the failure message, if any.
func (r Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// RunBatch runs every .json object under the loader prefix plus prefix, at
// most concurrency at a time. A failing file is reported in its Result and
// does not stop the others. The returned error covers listing and
// cancellation only.
func (o *Orchestrator) RunBatch(ctx context.Context, prefix string, concurrency int) ([]Result, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	infos, err := o.loader.store.List(ctx, o.loader.Prefix()+prefix)
	if err != nil {
		return nil, fmt.Errorf("list raw samples: %w", err)
	}
	var filenames []string
	for _, info := range infos {
		if !strings.HasSuffix(info.Key, ".json") {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(info.Key, o.loader.Prefix()), ".json")
		filenames = append(filenames, name)
	}

	results := make([]Result, len(filenames))
	var mu sync.Mutex
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, name := range filenames {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res := Result{Filename: name}
			env, err := o.Run(gctx, name)
			if err != nil {
				res.Err = err
				mu.Lock()
				failed++
				mu.Unlock()
			} else {
				res.SampleID = env.SampleID
				res.TraceID = env.TraceID
				res.Status = env.QCSummary.OverallStatus
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	o.log.Info("batch complete", "prefix", o.loader.Prefix()+prefix, "files", len(filenames), "failed", failed)
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}
