// Package metrics defines the Prometheus collectors for the product
// pipeline and its HTTP surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "product"

// Pipeline stages, used as the stage label.
const (
	StageExtract    = "extract"
	StageClean      = "clean"
	StageIdentify   = "identify"
	StageSearch     = "search"
	StageScrape     = "scrape"
	StageSelect     = "select_image"
	StageSummarize  = "summarize"
	StageSynthesize = "synthesize"
)

// Run outcomes, used as the outcome label.
const (
	OutcomeSuccess      = "success"
	OutcomeInvalidInput = "invalid_input"
	OutcomeFailed       = "failed"
)

var (
	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"stage"},
	)

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	itemFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "item_failures_total",
			Help:      "Tolerated per-item failures by stage",
		},
		[]string{"stage"},
	)

	sources = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "sources",
			Help:      "Number of sources per run by kind (searched, scraped, summarized)",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 7},
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(stageDuration, runsTotal, itemFailuresTotal, sources)
}

// ObserveStage records how long a stage took.
func ObserveStage(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordRun counts a finished run.
func RecordRun(outcome string) {
	runsTotal.WithLabelValues(outcome).Inc()
}

// RecordItemFailure counts a tolerated failure of one item in stage.
func RecordItemFailure(stage string) {
	itemFailuresTotal.WithLabelValues(stage).Inc()
}

// ObserveSources records how many sources of kind a run used.
func ObserveSources(kind string, n int) {
	sources.WithLabelValues(kind).Observe(float64(n))
}
