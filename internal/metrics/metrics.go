package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks simulator activity. A nil *Metrics is a valid no-op.
type Metrics struct {
	RunsTotal         *prometheus.CounterVec
	RunDuration       *prometheus.HistogramVec
	InvalidParameters *prometheus.CounterVec
	MonteCarloDraws   prometheus.Counter
}

var (
	defaultOnce     sync.Once
	defaultInstance *Metrics
)

// Default returns the process-wide metrics registered on the default registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultInstance = New(prometheus.DefaultRegisterer)
	})
	return defaultInstance
}

// New registers a fresh metric set on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trialsim_runs_total",
			Help: "Simulation runs by kind and outcome",
		}, []string{"kind", "status"}),
		RunDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trialsim_run_duration_seconds",
			Help:    "Wall time of simulation runs",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"kind"}),
		InvalidParameters: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trialsim_invalid_parameter_total",
			Help: "Requests rejected with INVALID_PARAMETER, by operation",
		}, []string{"operation"}),
		MonteCarloDraws: f.NewCounter(prometheus.CounterOpts{
			Name: "trialsim_monte_carlo_draws_total",
			Help: "Paired posterior draws taken by Monte Carlo comparisons",
		}),
	}
}

// ObserveRun records one finished run.
func (m *Metrics) ObserveRun(kind string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RunsTotal.WithLabelValues(kind, status).Inc()
	m.RunDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// InvalidParameter counts a rejected request.
func (m *Metrics) InvalidParameter(operation string) {
	if m == nil {
		return
	}
	m.InvalidParameters.WithLabelValues(operation).Inc()
}

// AddDraws counts Monte Carlo draws.
func (m *Metrics) AddDraws(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.MonteCarloDraws.Add(float64(n))
}
