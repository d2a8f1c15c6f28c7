package observability

import (
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"cardioingest/pkg/domain"
)

var expvarSeq uint64

// ExpvarRecorder publishes pipeline counters via expvar. It serves
// deployments that want process-local metrics without a Prometheus scrape.
type ExpvarRecorder struct {
	name       string
	mu         sync.Mutex
	durationMS map[string]float64
	runs       map[string]int64
	failures   map[string]int64
	counters   map[string]int64
	rules      map[string]int
}

// ExpvarSnapshot is a read-only view of the recorded metrics.
type ExpvarSnapshot struct {
	DurationsMS map[string]float64 `json:"durations_ms_total"`
	Runs        map[string]int64   `json:"runs_total"`
	Failures    map[string]int64   `json:"failures_total"`
	Counters    map[string]int64   `json:"counters"`
	Rules       map[string]int     `json:"rules_loaded"`
	RecordedAt  time.Time          `json:"recorded_at"`
}

// NewExpvarRecorder publishes a recorder under name. An empty name gets a
// generated unique identifier.
func NewExpvarRecorder(name string) *ExpvarRecorder {
	if name == "" {
		id := atomic.AddUint64(&expvarSeq, 1)
		name = fmt.Sprintf("cardio_pipeline_metrics_%d", id)
	}
	rec := &ExpvarRecorder{
		name:       name,
		durationMS: make(map[string]float64),
		runs:       make(map[string]int64),
		failures:   make(map[string]int64),
		counters:   make(map[string]int64),
		rules:      make(map[string]int),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

// Name returns the expvar export name.
func (r *ExpvarRecorder) Name() string { return r.name }

// Snapshot returns a copy of the aggregated metrics.
func (r *ExpvarRecorder) Snapshot() ExpvarSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ExpvarSnapshot{
		DurationsMS: copyMap(r.durationMS),
		Runs:        copyMap(r.runs),
		Failures:    copyMap(r.failures),
		Counters:    copyMap(r.counters),
		Rules:       copyMap(r.rules),
		RecordedAt:  time.Now().UTC(),
	}
}

func copyMap[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// RulesLoaded records the size of a rule table.
func (r *ExpvarRecorder) RulesLoaded(table string, n int) {
	r.mu.Lock()
	r.rules[table] = n
	r.mu.Unlock()
}

// BiomarkerDropped counts one unresolved raw biomarker.
func (r *ExpvarRecorder) BiomarkerDropped() { r.inc("biomarkers_dropped", 1) }

// UnitPassthrough counts one biomarker kept in its reported unit.
func (r *ExpvarRecorder) UnitPassthrough() { r.inc("unit_passthrough", 1) }

// RunCompleted records a finished run.
func (r *ExpvarRecorder) RunCompleted(summary domain.QCSummary, d time.Duration) {
	status := string(summary.OverallStatus)
	r.mu.Lock()
	r.runs[status]++
	r.durationMS[status] += float64(d) / float64(time.Millisecond)
	r.counters["biomarkers_invalid"] += int64(summary.TotalInvalidMarkers)
	r.counters["missing_critical"] += int64(len(summary.MissingCriticalBiomarkers))
	r.mu.Unlock()
}

// RunFailed counts a run that errored in stage.
func (r *ExpvarRecorder) RunFailed(stage string) {
	r.mu.Lock()
	r.failures[stage]++
	r.mu.Unlock()
}

func (r *ExpvarRecorder) inc(key string, n int64) {
	r.mu.Lock()
	r.counters[key] += n
	r.mu.Unlock()
}
