// Package metrics is the run's shared Prometheus registry (spec §5:
// "stage timings and concurrency levels SHOULD be observable"). A single
// Registry is constructed per run and handed to each stage collaborator
// that wants to publish counters/histograms against it -- internal/scrape's
// TierMetrics included, via its own Registerer-accepting constructor.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the counters and histograms the orchestrator (spec §4.13)
// publishes across a run: per-stage call counts, per-stage latency, and the
// iteration count the research loop actually consumed.
type Registry struct {
	Registerer prometheus.Registerer

	StageCalls    *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	Iterations    prometheus.Gauge
	SourcesTotal  prometheus.Gauge
	Warnings      *prometheus.CounterVec
}

// New builds a Registry and registers its collectors against reg. Pass nil
// to fall back to the default Prometheus registerer.
func New(reg prometheus.Registerer) *Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Registry{
		Registerer: reg,
		StageCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rsrch_stage_calls_total",
			Help: "Number of times each pipeline stage ran.",
		}, []string{"stage"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rsrch_stage_duration_seconds",
			Help:    "Wall-clock duration of each pipeline stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		Iterations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rsrch_research_iterations",
			Help: "Number of RESEARCH_LOOP iterations consumed by the most recent run.",
		}),
		SourcesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rsrch_sources_total",
			Help: "Number of deduplicated sources gathered by the most recent run.",
		}),
		Warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rsrch_warnings_total",
			Help: "Non-fatal condition counts, e.g. summary_parallel exceeding the recommended ceiling.",
		}, []string{"kind"}),
	}

	reg.MustRegister(r.StageCalls, r.StageDuration, r.Iterations, r.SourcesTotal, r.Warnings)
	return r
}

// ObserveStage records one call to stage and its duration.
func (r *Registry) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.StageCalls.WithLabelValues(stage).Inc()
	r.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Timer returns a func that, when called, observes the elapsed time for
// stage against r. Typical use: `defer r.Timer("scrape")()`.
func (r *Registry) Timer(stage string) func() {
	start := time.Now()
	return func() {
		r.ObserveStage(stage, time.Since(start))
	}
}

// Warn increments the named warning counter, e.g. "summary_parallel_high"
// when config.SummaryParallel exceeds the recommended ceiling (spec §5).
func (r *Registry) Warn(kind string) {
	if r == nil {
		return
	}
	r.Warnings.WithLabelValues(kind).Inc()
}
