package process

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes used as the "outcome" label.
const (
	outcomeSuccess  = "success"
	outcomeError    = "error"
	outcomeCanceled = "canceled"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textlens_process_runs_total",
			Help: "Total number of processing runs by outcome and error kind.",
		},
		[]string{"outcome", "error_kind"},
	)

	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "textlens_process_run_duration_seconds",
			Help:    "Processing run duration from start to terminal state.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"outcome"},
	)

	fragmentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "textlens_process_fragments_total",
			Help: "Total number of text fragments delivered to the state machine.",
		},
	)

	firstFragmentSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "textlens_process_first_fragment_seconds",
			Help:    "Time from run start to the first fragment.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(runsTotal, runDuration, fragmentsTotal, firstFragmentSeconds)
}

func observeRun(outcome, errorKind string, started time.Time) {
	runsTotal.WithLabelValues(outcome, errorKind).Inc()
	runDuration.WithLabelValues(outcome).Observe(time.Since(started).Seconds())
}
