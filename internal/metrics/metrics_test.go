package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_ObserveRun(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRun("interim", 20*time.Millisecond, nil)
	m.ObserveRun("interim", 5*time.Millisecond, errors.New("boom"))
	m.ObserveRun("adaptive", time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("interim", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("interim", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("adaptive", "ok")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.RunDuration))
}

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.InvalidParameter("beta_summary")
	m.InvalidParameter("beta_summary")
	m.AddDraws(10000)
	m.AddDraws(-5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.InvalidParameters.WithLabelValues("beta_summary")))
	assert.Equal(t, 10000.0, testutil.ToFloat64(m.MonteCarloDraws))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRun("bayesian", time.Second, nil)
		m.InvalidParameter("x")
		m.AddDraws(1)
	})
}

func TestDefault_Singleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}
