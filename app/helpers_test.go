package app

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"trialsim/internal/metrics"
	"trialsim/internal/testkit"
)

func newTestDeps(t *testing.T) (Deps, *testkit.TestKit) {
	t.Helper()
	kit := testkit.NewTestKit()
	return Deps{
		RNG:     kit.RNGAdapter(),
		Runs:    kit.RunRepository(),
		Metrics: metrics.New(prometheus.NewRegistry()),
		Defaults: Defaults{
			Samples: 500,
			Workers: 2,
			Seed:    42,
		},
	}, kit
}

func ptr[T any](v T) *T { return &v }
