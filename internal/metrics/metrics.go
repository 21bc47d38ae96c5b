package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus instruments for Glue submissions.
type Metrics struct {
	StatementsSubmitted *prometheus.CounterVec
	StatementsFailed    *prometheus.CounterVec
	StatementDuration   *prometheus.HistogramVec
	PollCycles          prometheus.Counter
	SessionsOpen        prometheus.Gauge
}

// New creates the metrics and registers them with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{}

	m.StatementsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glue_statements_submitted_total",
			Help: "Total number of statements submitted to Glue sessions",
		},
		[]string{"kind"},
	)

	m.StatementsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glue_statements_failed_total",
			Help: "Total number of statements that ended in failure",
		},
		[]string{"kind", "reason"},
	)

	m.StatementDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "glue_statement_duration_seconds",
			Help:    "Wall-clock duration from submission to terminal state",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"kind"},
	)

	m.PollCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "glue_statement_poll_cycles_total",
			Help: "Total number of GetStatement polls issued",
		},
	)

	m.SessionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "glue_sessions_open",
			Help: "Number of interactive sessions currently held",
		},
	)

	reg.MustRegister(
		m.StatementsSubmitted,
		m.StatementsFailed,
		m.StatementDuration,
		m.PollCycles,
		m.SessionsOpen,
	)

	return m
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide metrics, registered against the default
// Prometheus registry on first use.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// Handler returns the Prometheus HTTP handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
