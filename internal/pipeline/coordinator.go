// Package pipeline sequences alias resolution, unit normalization and QC over
// one sample and assembles the structured envelope.
package pipeline

import (
	"context"
	"time"

	"cardioingest/internal/canonical"
	"cardioingest/internal/logging"
	"cardioingest/internal/qc"
	"cardioingest/pkg/domain"
)

// Stage names a step of a run. A run moves strictly forward through
// Resolving, Normalizing, EvaluatingQC and Assembled.
type Stage string

const (
	StageResolving    Stage = "resolving"
	StageNormalizing  Stage = "normalizing"
	StageEvaluatingQC Stage = "evaluating_qc"
	StageAssembled    Stage = "assembled"
)

// Coordinator runs the canonicalization -> normalization -> QC pipeline.
// It holds no per-run state and is safe for concurrent use.
type Coordinator struct {
	rules      *RuleSet
	resolver   *canonical.Resolver
	normalizer *canonical.Normalizer
	evaluator  *qc.Evaluator
	sink       domain.SampleSink
	log        logging.Logger
	metrics    Metrics
	tracer     Tracer
	now        func() time.Time
}

// New builds a coordinator over an already loaded rule set.
func New(rules *RuleSet, opts ...Option) *Coordinator {
	c := &Coordinator{
		log:     logging.Nop(),
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if rules == nil {
		rules = &RuleSet{}
	}
	c.rules = rules
	c.resolver = canonical.NewResolver(rules.Aliases, c.log)
	c.normalizer = canonical.NewNormalizer(rules.Conversions, c.log)
	c.evaluator = qc.NewEvaluator(rules.QC, c.log)

	if rules.Aliases != nil {
		c.metrics.RulesLoaded("aliases", rules.Aliases.Len())
	}
	if rules.Conversions != nil {
		c.metrics.RulesLoaded("conversions", rules.Conversions.Len())
	}
	if rules.QC != nil {
		c.metrics.RulesLoaded("dominant_mappings", rules.QC.ExpectedCount())
	}
	return c
}

// Build loads the rule tables from src and returns a ready coordinator.
// A rule source failure is returned as-is; callers may retry construction.
func Build(ctx context.Context, src domain.RuleSource, opts ...Option) (*Coordinator, error) {
	rules, err := LoadRuleSet(ctx, src)
	if err != nil {
		return nil, err
	}
	c := New(rules, opts...)
	c.log.Info("pipeline rules loaded",
		"aliases", rules.Aliases.Len(),
		"conversions", rules.Conversions.Len(),
		"buckets", len(rules.QC.Buckets()),
		"expected_biomarkers", rules.QC.ExpectedCount())
	return c, nil
}

// Rules returns the rule snapshot in use.
func (c *Coordinator) Rules() *RuleSet { return c.rules }

type resolvedEntry struct {
	canonical string
	entry     domain.RawBiomarkerEntry
}

// Run processes one sample. Unresolved biomarkers are dropped and logged;
// entries without a conversion rule keep their reported unit; the QC summary
// is always attached. When a sink is configured the envelope is saved before
// it is returned, and a sink error is returned unmodified.
func (c *Coordinator) Run(ctx context.Context, sample domain.RawSample) (domain.SampleEnvelope, error) {
	started := c.now()
	log := logging.With(c.log, "trace_id", sample.TraceID, "sample_id", sample.SampleID)
	resolver := c.resolver.WithLogger(log)
	normalizer := c.normalizer.WithLogger(log)
	evaluator := c.evaluator.WithLogger(log)

	_, span := c.tracer.Start(ctx, "pipeline."+string(StageResolving))
	raw := sample.Biomarkers.Entries()
	resolved := make([]resolvedEntry, 0, len(raw))
	for _, e := range raw {
		name, ok := resolver.Resolve(e.RawName)
		if !ok {
			log.Warn("biomarker dropped (no canonical mapping found)", "raw_name", e.RawName)
			c.metrics.BiomarkerDropped()
			continue
		}
		resolved = append(resolved, resolvedEntry{canonical: name, entry: e})
	}
	span.End(nil)
	log.Info("biomarkers canonicalized",
		"raw_count", len(raw), "canonical_count", len(resolved), "dropped", len(raw)-len(resolved))

	_, span = c.tracer.Start(ctx, "pipeline."+string(StageNormalizing))
	normalized := make([]domain.NormalizedBiomarker, 0, len(resolved))
	for _, r := range resolved {
		if !normalizer.HasRule(r.canonical, r.entry.RawUnit) {
			c.metrics.UnitPassthrough()
		}
		nb, err := normalizer.Normalize(r.canonical, r.entry)
		if err != nil {
			span.End(err)
			return domain.SampleEnvelope{}, c.fail(log, StageNormalizing, err)
		}
		normalized = append(normalized, nb)
	}
	span.End(nil)

	_, span = c.tracer.Start(ctx, "pipeline."+string(StageEvaluatingQC))
	tagged, summary := evaluator.Evaluate(normalized)
	span.End(nil)

	env := domain.SampleEnvelope{
		UserID:     sample.UserID,
		SampleID:   sample.SampleID,
		TraceID:    sample.TraceID,
		Biomarkers: tagged,
		QCSummary:  summary,
		Metadata:   sample.Metadata,
	}

	if c.sink != nil {
		var persistCtx context.Context
		persistCtx, span = c.tracer.Start(ctx, "pipeline.persist")
		err := c.sink.SaveSample(persistCtx, env)
		span.End(err)
		if err != nil {
			return domain.SampleEnvelope{}, c.fail(log, StageAssembled, err)
		}
	}

	elapsed := c.now().Sub(started)
	c.metrics.RunCompleted(summary, elapsed)
	log.Info("sample assembled",
		"user_id", sample.UserID,
		"biomarkers", len(tagged),
		"overall_status", string(summary.OverallStatus),
		"elapsed", elapsed)
	return env, nil
}

func (c *Coordinator) fail(log logging.Logger, stage Stage, err error) error {
	c.metrics.RunFailed(string(stage))
	log.Error("pipeline run failed", "stage", string(stage), "error", err)
	return err
}
