package pipeline

import (
	"context"
	"time"

	"cardioingest/internal/logging"
	"cardioingest/internal/observability"
	"cardioingest/pkg/domain"
)

// Metrics receives pipeline counters. observability.PipelineMetrics and
// observability.ExpvarRecorder implement it.
type Metrics interface {
	RulesLoaded(table string, n int)
	BiomarkerDropped()
	UnitPassthrough()
	RunCompleted(summary domain.QCSummary, d time.Duration)
	RunFailed(stage string)
}

// Tracer opens stage spans.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, observability.Span)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger; nil keeps the no-op default.
func WithLogger(l logging.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *Coordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracer sets the stage tracer.
func WithTracer(t Tracer) Option {
	return func(c *Coordinator) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithSink sets the persistence collaborator that receives each envelope.
func WithSink(s domain.SampleSink) Option {
	return func(c *Coordinator) { c.sink = s }
}

// WithClock overrides the time source used for run durations.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

type noopMetrics struct{}

func (noopMetrics) RulesLoaded(string, int)                      {}
func (noopMetrics) BiomarkerDropped()                            {}
func (noopMetrics) UnitPassthrough()                             {}
func (noopMetrics) RunCompleted(domain.QCSummary, time.Duration) {}
func (noopMetrics) RunFailed(string)                             {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, observability.Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}
