package engine

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trialsim/domain/trial"
	apperrors "trialsim/internal/errors"
)

var flat = trial.BetaParams{Alpha: 1, Beta: 1}

func TestProbabilityTreatmentBetter_IdenticalPosteriorsConverge(t *testing.T) {
	// Standard error at 10,000 draws is 0.005, so ±0.02 is four of them.
	for seed := int64(1); seed <= 5; seed++ {
		p, err := ProbabilityTreatmentBetter(rand.New(rand.NewSource(seed)), flat, flat)
		require.NoError(t, err)
		assert.InDelta(t, 0.5, p, 0.02, "seed=%d", seed)
	}
}

func TestProbabilityTreatmentBetter_ClearSeparation(t *testing.T) {
	control := trial.BetaParams{Alpha: 20, Beta: 80}
	treatment := trial.BetaParams{Alpha: 35, Beta: 65}

	mc, _ := Mean(control.Alpha, control.Beta)
	mt, _ := Mean(treatment.Alpha, treatment.Beta)
	assert.Equal(t, 0.2, mc)
	assert.Equal(t, 0.35, mt)

	for seed := int64(10); seed < 13; seed++ {
		p, err := ProbabilityTreatmentBetter(rand.New(rand.NewSource(seed)), control, treatment)
		require.NoError(t, err)
		assert.Greater(t, p, 0.9)

		// Swapping arms mirrors the estimate.
		q, err := ProbabilityTreatmentBetter(rand.New(rand.NewSource(seed)), treatment, control)
		require.NoError(t, err)
		assert.Less(t, q, 0.1)
	}
}

func TestProbabilityTreatmentBetter_UsesDefaultSampleCount(t *testing.T) {
	src := newCountingSource(3)
	_, err := ProbabilityTreatmentBetter(src, flat, flat)
	require.NoError(t, err)
	// Each Beta draw needs at least two Gamma draws, each of at least three uniforms.
	assert.GreaterOrEqual(t, src.draws, DefaultSamples*2*2*3)
}

func TestProbabilityTreatmentBetter_SeededIsDeterministic(t *testing.T) {
	c := trial.BetaParams{Alpha: 4, Beta: 6}
	tr := trial.BetaParams{Alpha: 6, Beta: 4}
	a, err := ProbabilityTreatmentBetterN(rand.New(rand.NewSource(5)), c, tr, 2000)
	require.NoError(t, err)
	b, err := ProbabilityTreatmentBetterN(rand.New(rand.NewSource(5)), c, tr, 2000)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestProbabilityTreatmentBetter_InvalidInput(t *testing.T) {
	src := newCountingSource(1)
	_, err := ProbabilityTreatmentBetter(src, trial.BetaParams{Alpha: 0, Beta: 1}, flat)
	assert.True(t, apperrors.IsInvalidParameter(err))
	assert.Contains(t, err.Error(), "control")

	_, err = ProbabilityTreatmentBetter(src, flat, trial.BetaParams{Alpha: 1, Beta: -1})
	assert.True(t, apperrors.IsInvalidParameter(err))
	assert.Contains(t, err.Error(), "treatment")

	_, err = ProbabilityTreatmentBetterN(src, flat, flat, 0)
	assert.True(t, apperrors.IsInvalidParameter(err))
	_, err = ProbabilityTreatmentBetterN(src, flat, flat, MaxSamples+1)
	assert.True(t, apperrors.IsInvalidParameter(err))
	assert.Zero(t, src.draws)

	_, err = ProbabilityTreatmentBetterParallel(context.Background(), 1, flat, flat, MaxSamples+1, 4)
	assert.True(t, apperrors.IsInvalidParameter(err))
}

func TestProbabilityTreatmentBetterParallel(t *testing.T) {
	ctx := context.Background()
	control := trial.BetaParams{Alpha: 20, Beta: 80}
	treatment := trial.BetaParams{Alpha: 35, Beta: 65}

	a, err := ProbabilityTreatmentBetterParallel(ctx, 42, control, treatment, 20000, 4)
	require.NoError(t, err)
	b, err := ProbabilityTreatmentBetterParallel(ctx, 42, control, treatment, 20000, 4)
	require.NoError(t, err)
	assert.Equal(t, a, b, "same seed and worker count must reproduce")

	serial, err := ProbabilityTreatmentBetterN(rand.New(rand.NewSource(42)), control, treatment, 20000)
	require.NoError(t, err)
	assert.InDelta(t, serial, a, 0.02)

	eq, err := ProbabilityTreatmentBetterParallel(ctx, 7, flat, flat, 10001, 3)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, eq, 0.02)
}

func TestProbabilityTreatmentBetterParallel_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ProbabilityTreatmentBetterParallel(ctx, 1, flat, flat, 50000, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMonteCarloStdError(t *testing.T) {
	assert.InDelta(t, 0.005, MonteCarloStdError(0.5, DefaultSamples), 1e-12)
	assert.Equal(t, 0.0, MonteCarloStdError(1, 100))
	assert.Equal(t, 0.5, MonteCarloStdError(0.5, 0))
}
