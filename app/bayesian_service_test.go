package app

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trialsim/adapters/stats/engine"
	"trialsim/domain/run"
	"trialsim/domain/trial"
	apperrors "trialsim/internal/errors"
)

func TestBayesianService_Analyze(t *testing.T) {
	deps, kit := newTestDeps(t)
	svc := NewBayesianService(deps)
	ctx := context.Background()

	result, err := svc.Analyze(ctx, BayesianRequest{
		Prior:              trial.PriorUniform,
		ControlN:           100,
		ControlResponses:   19,
		TreatmentN:         100,
		TreatmentResponses: 34,
		DensitySteps:       20,
	})
	require.NoError(t, err)

	assert.Equal(t, trial.BetaParams{Alpha: 20, Beta: 82}, result.Control.Posterior)
	assert.Equal(t, trial.BetaParams{Alpha: 35, Beta: 67}, result.Treatment.Posterior)
	assert.InDelta(t, 20.0/102, result.Control.Mean, 1e-12)
	assert.InDelta(t, 35.0/102-20.0/102, result.AbsoluteDifference, 1e-12)
	assert.Equal(t, 0.95, result.CredibleLevel)
	assert.Equal(t, 500, result.Samples)
	assert.Equal(t, int64(42), result.Seed)
	assert.Greater(t, result.ProbabilityTreatmentBetter, 0.9)
	assert.Len(t, result.Density, 21)

	for _, arm := range []ArmPosterior{result.Control, result.Treatment} {
		assert.True(t, arm.Interval.Contains(arm.Mean))
		assert.True(t, arm.ExactInterval.Contains(arm.Mean))
	}

	stored, err := kit.RunRepository().GetRun(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, run.KindBayesian, stored.Kind)
	assert.Equal(t, int64(42), stored.Seed)
	assert.Contains(t, stored.Report, "P(treatment better)")

	var decoded BayesianResult
	require.NoError(t, stored.Result.Decode(&decoded))
	assert.Equal(t, result.ProbabilityTreatmentBetter, decoded.ProbabilityTreatmentBetter)

	assert.Equal(t, 1.0, testutil.ToFloat64(deps.Metrics.RunsTotal.WithLabelValues("bayesian", "ok")))
	assert.Equal(t, 500.0, testutil.ToFloat64(deps.Metrics.MonteCarloDraws))
}

func TestBayesianService_SameSeedReplays(t *testing.T) {
	deps, _ := newTestDeps(t)
	svc := NewBayesianService(deps)
	ctx := context.Background()
	req := BayesianSimulationRequest{ControlN: 50, TreatmentN: 50, Seed: ptr(int64(7))}

	a, err := svc.Simulate(ctx, req)
	require.NoError(t, err)
	b, err := svc.Simulate(ctx, req)
	require.NoError(t, err)

	assert.NotEqual(t, a.RunID, b.RunID)
	assert.Equal(t, a.Control.Observed, b.Control.Observed)
	assert.Equal(t, a.Treatment.Observed, b.Treatment.Observed)
	assert.Equal(t, a.ProbabilityTreatmentBetter, b.ProbabilityTreatmentBetter)

	req.Seed = ptr(int64(8))
	c, err := svc.Simulate(ctx, req)
	require.NoError(t, err)
	assert.False(t, a.Control.Observed == c.Control.Observed && a.Treatment.Observed == c.Treatment.Observed &&
		a.ProbabilityTreatmentBetter == c.ProbabilityTreatmentBetter)
}

func TestBayesianService_SimulateDefaults(t *testing.T) {
	deps, _ := newTestDeps(t)
	svc := NewBayesianService(deps)

	result, err := svc.Simulate(context.Background(), BayesianSimulationRequest{
		Prior:      trial.PriorWeak,
		ControlN:   400,
		TreatmentN: 400,
	})
	require.NoError(t, err)
	assert.Equal(t, 400, result.Control.Observed.N())
	assert.Equal(t, 400, result.Treatment.Observed.N())
	// True rates 0.4 and 0.6.
	assert.InDelta(t, 0.4, result.Control.Observed.Rate(), 0.1)
	assert.InDelta(t, 0.6, result.Treatment.Observed.Rate(), 0.1)
	assert.Equal(t, trial.PriorWeak, result.Prior.Name)
}

func TestBayesianService_EmptyArmsFallBackToPrior(t *testing.T) {
	deps, _ := newTestDeps(t)
	svc := NewBayesianService(deps)

	result, err := svc.Analyze(context.Background(), BayesianRequest{Prior: trial.PriorSkeptical})
	require.NoError(t, err)
	assert.Equal(t, trial.BetaParams{Alpha: 5, Beta: 15}, result.Control.Posterior)
	assert.Equal(t, result.Control.Posterior, result.Treatment.Posterior)
	assert.InDelta(t, 0.5, result.ProbabilityTreatmentBetter, 0.1)
}

func TestBayesianService_RejectsInvalidInput(t *testing.T) {
	deps, kit := newTestDeps(t)
	svc := NewBayesianService(deps)
	ctx := context.Background()

	cases := map[string]BayesianRequest{
		"unknown prior":        {Prior: "enthusiastic", ControlN: 10, TreatmentN: 10},
		"negative n":           {ControlN: -1, TreatmentN: 10},
		"responses exceed n":   {ControlN: 10, ControlResponses: 11, TreatmentN: 10},
		"negative responses":   {ControlN: 10, TreatmentN: 10, TreatmentResponses: -2},
		"credible level above": {ControlN: 10, TreatmentN: 10, CredibleLevel: 1.5},
		"negative samples":     {ControlN: 10, TreatmentN: 10, Samples: -5},
		"too many samples":     {ControlN: 10, TreatmentN: 10, Samples: engine.MaxSamples + 1},
		"too many steps":       {ControlN: 10, TreatmentN: 10, DensitySteps: engine.MaxDensitySteps + 1},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Analyze(ctx, req)
			require.Error(t, err)
			assert.True(t, apperrors.IsInvalidParameter(err), "got %v", err)
		})
	}

	_, err := svc.Simulate(ctx, BayesianSimulationRequest{ControlN: 10, TreatmentN: 10, ControlRate: ptr(1.2)})
	assert.True(t, apperrors.IsInvalidParameter(err))
	_, err = svc.Simulate(ctx, BayesianSimulationRequest{ControlN: engine.MaxOutcomes + 1, TreatmentN: 10})
	assert.True(t, apperrors.IsInvalidParameter(err))
	_, err = svc.Simulate(ctx, BayesianSimulationRequest{ControlN: 10, TreatmentN: 10, DensitySteps: engine.MaxDensitySteps + 1})
	assert.True(t, apperrors.IsInvalidParameter(err))

	runs, err := kit.RunRepository().ListRuns(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestBayesianService_WithoutStoreStillAnswers(t *testing.T) {
	deps, _ := newTestDeps(t)
	deps.Runs = nil
	result, err := NewBayesianService(deps).Analyze(context.Background(), BayesianRequest{ControlN: 10, ControlResponses: 2, TreatmentN: 10, TreatmentResponses: 8})
	require.NoError(t, err)
	assert.Greater(t, result.ProbabilityTreatmentBetter, 0.9)
}
