// Package observability provides metrics and stage tracing backends for the
// ingestion pipeline: Prometheus collectors, an expvar recorder for
// process-local deployments, and a JSON-lines stage tracer.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"cardioingest/pkg/domain"
)

// PipelineMetrics holds the Prometheus collectors for pipeline runs.
type PipelineMetrics struct {
	runsTotal        *prometheus.CounterVec
	runFailuresTotal *prometheus.CounterVec
	droppedTotal     prometheus.Counter
	passthroughTotal prometheus.Counter
	invalidTotal     prometheus.Counter
	missingCritical  *prometheus.CounterVec
	runDuration      prometheus.Histogram
	rulesLoaded      *prometheus.GaugeVec
	collectors       []prometheus.Collector
}

// NewPipelineMetrics creates the collectors and registers them on reg.
func NewPipelineMetrics(reg prometheus.Registerer) (*PipelineMetrics, error) {
	m := &PipelineMetrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cardio_pipeline_runs_total",
			Help: "Completed pipeline runs by overall QC status",
		}, []string{"status"}),
		runFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cardio_pipeline_run_failures_total",
			Help: "Pipeline runs that returned an error, by stage",
		}, []string{"stage"}),
		droppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cardio_biomarkers_dropped_total",
			Help: "Raw biomarkers dropped because no active alias resolved them",
		}),
		passthroughTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cardio_unit_passthrough_total",
			Help: "Biomarkers kept in their reported unit because no conversion rule applied",
		}),
		invalidTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cardio_biomarkers_invalid_total",
			Help: "Biomarkers tagged invalid by QC",
		}),
		missingCritical: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cardio_missing_critical_total",
			Help: "Dominant biomarkers missing or invalid, by bucket and reason",
		}, []string{"bucket", "reason"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cardio_pipeline_run_duration_seconds",
			Help:    "Wall time of one pipeline run",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		rulesLoaded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cardio_rules_loaded",
			Help: "Active rule rows loaded at coordinator start, by table",
		}, []string{"table"}),
	}
	m.collectors = []prometheus.Collector{
		m.runsTotal, m.runFailuresTotal, m.droppedTotal, m.passthroughTotal,
		m.invalidTotal, m.missingCritical, m.runDuration, m.rulesLoaded,
	}
	for _, c := range m.collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RulesLoaded records the size of a rule table.
func (m *PipelineMetrics) RulesLoaded(table string, n int) {
	m.rulesLoaded.WithLabelValues(table).Set(float64(n))
}

// BiomarkerDropped counts one unresolved raw biomarker.
func (m *PipelineMetrics) BiomarkerDropped() { m.droppedTotal.Inc() }

// UnitPassthrough counts one biomarker kept in its reported unit.
func (m *PipelineMetrics) UnitPassthrough() { m.passthroughTotal.Inc() }

// RunCompleted records a finished run and its QC outcome.
func (m *PipelineMetrics) RunCompleted(summary domain.QCSummary, d time.Duration) {
	m.runsTotal.WithLabelValues(string(summary.OverallStatus)).Inc()
	m.invalidTotal.Add(float64(summary.TotalInvalidMarkers))
	for _, mc := range summary.MissingCriticalBiomarkers {
		m.missingCritical.WithLabelValues(mc.Bucket, string(mc.Reason)).Inc()
	}
	m.runDuration.Observe(d.Seconds())
}

// RunFailed counts a run that errored in stage.
func (m *PipelineMetrics) RunFailed(stage string) {
	m.runFailuresTotal.WithLabelValues(stage).Inc()
}
