package app

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trialsim/adapters/stats/engine"
	"trialsim/domain/run"
	apperrors "trialsim/internal/errors"
)

func TestAdaptiveService_TrajectorySampling(t *testing.T) {
	deps, _ := newTestDeps(t)
	svc := NewAdaptiveService(deps)

	result, err := svc.Run(context.Background(), AdaptiveRequest{TotalN: 23, RecordEvery: 5, Samples: 200})
	require.NoError(t, err)

	patients := make([]int, 0, len(result.Trajectory))
	for _, pt := range result.Trajectory {
		patients = append(patients, pt.Patient)
		assert.Equal(t, pt.Patient, pt.ControlN+pt.TreatmentN)
		assert.LessOrEqual(t, pt.ControlResponses, pt.ControlN)
		assert.LessOrEqual(t, pt.TreatmentResponses, pt.TreatmentN)
		assert.GreaterOrEqual(t, pt.AllocationProb, 0.0)
		assert.LessOrEqual(t, pt.AllocationProb, 1.0)
	}
	assert.Equal(t, []int{5, 10, 15, 20, 23}, patients)

	s := result.Summary
	assert.Equal(t, 23, s.TotalPatients)
	assert.Equal(t, 23, s.ControlN+s.TreatmentN)
	assert.InDelta(t, float64(s.TreatmentN)/23, s.TreatmentShare, 1e-12)
	assert.Equal(t, float64(1+s.ControlResponses), s.ControlPosterior.Alpha)
	assert.Equal(t, float64(1+s.TreatmentN-s.TreatmentResponses), s.TreatmentPosterior.Beta)
	assert.Equal(t, 0.5, result.Params.Tuning)
	assert.Equal(t, 0.4, result.Params.ControlRate)
}

func TestAdaptiveService_TuningZeroIsFixedRandomization(t *testing.T) {
	deps, _ := newTestDeps(t)
	svc := NewAdaptiveService(deps)

	result, err := svc.Run(context.Background(), AdaptiveRequest{
		ControlRate:   ptr(0.1),
		TreatmentRate: ptr(0.9),
		TotalN:        60,
		Tuning:        ptr(0.0),
		Samples:       100,
	})
	require.NoError(t, err)
	for _, pt := range result.Trajectory {
		assert.Equal(t, 0.5, pt.AllocationProb)
	}
	assert.Equal(t, 0.5, result.Summary.FinalAllocationProb)
	assert.Zero(t, testutil.ToFloat64(deps.Metrics.MonteCarloDraws))

	_, err = svc.Replicate(context.Background(), ReplicateRequest{
		AdaptiveRequest: AdaptiveRequest{TotalN: 20, Tuning: ptr(0.0), Samples: 100},
		Replicates:      3,
	})
	require.NoError(t, err)
	assert.Zero(t, testutil.ToFloat64(deps.Metrics.MonteCarloDraws))

	_, err = svc.Run(context.Background(), AdaptiveRequest{TotalN: 20, Samples: 100})
	require.NoError(t, err)
	assert.Equal(t, 2000.0, testutil.ToFloat64(deps.Metrics.MonteCarloDraws))
}

func TestAdaptiveService_FavoursBetterArm(t *testing.T) {
	deps, _ := newTestDeps(t)
	svc := NewAdaptiveService(deps)

	result, err := svc.Run(context.Background(), AdaptiveRequest{
		ControlRate:   ptr(0.1),
		TreatmentRate: ptr(0.9),
		TotalN:        200,
		Tuning:        ptr(1.0),
		Samples:       200,
	})
	require.NoError(t, err)
	assert.Greater(t, result.Summary.TreatmentShare, 0.6)
	assert.Greater(t, result.Summary.FinalAllocationProb, 0.9)
}

func TestAdaptiveService_SameSeedReplays(t *testing.T) {
	deps, kit := newTestDeps(t)
	svc := NewAdaptiveService(deps)
	ctx := context.Background()
	req := AdaptiveRequest{TotalN: 40, Samples: 100, Seed: ptr(int64(99))}

	a, err := svc.Run(ctx, req)
	require.NoError(t, err)
	b, err := svc.Run(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, a.Trajectory, b.Trajectory)
	assert.Equal(t, a.Summary, b.Summary)

	runs, err := kit.RunRepository().ListRuns(ctx, run.KindAdaptive, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, runs[0].Fingerprint, runs[1].Fingerprint)
}

func TestAdaptiveService_RejectsInvalidInput(t *testing.T) {
	deps, _ := newTestDeps(t)
	svc := NewAdaptiveService(deps)
	ctx := context.Background()

	cases := map[string]AdaptiveRequest{
		"tuning above one":    {Tuning: ptr(1.5)},
		"negative tuning":     {Tuning: ptr(-0.1)},
		"rate below zero":     {ControlRate: ptr(-0.1)},
		"rate above one":      {TreatmentRate: ptr(1.01)},
		"negative total":      {TotalN: -3},
		"negative interval":   {RecordEvery: -1},
		"negative draw count": {Samples: -1},
		"too many patients":   {TotalN: maxAdaptiveN + 1},
		"too many samples":    {Samples: engine.MaxSamples + 1},
		"draws per trial":     {TotalN: maxAdaptiveN, Samples: maxTrialDraws/maxAdaptiveN + 1},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Run(ctx, req)
			assert.True(t, apperrors.IsInvalidParameter(err), "got %v", err)
		})
	}
}

func TestAdaptiveService_ReplicateIsIndependentOfScheduling(t *testing.T) {
	deps, kit := newTestDeps(t)
	svc := NewAdaptiveService(deps)
	ctx := context.Background()
	base := AdaptiveRequest{TotalN: 30, Samples: 100, Seed: ptr(int64(5))}

	serial, err := svc.Replicate(ctx, ReplicateRequest{AdaptiveRequest: base, Replicates: 12, Concurrency: 1})
	require.NoError(t, err)
	parallel, err := svc.Replicate(ctx, ReplicateRequest{AdaptiveRequest: base, Replicates: 12, Concurrency: 4})
	require.NoError(t, err)

	assert.Equal(t, serial.Runs, parallel.Runs)
	assert.Equal(t, serial.TreatmentShare, parallel.TreatmentShare)
	assert.Equal(t, 12, serial.Replicates)
	require.Len(t, serial.Runs, 12)

	// Replicates draw from distinct streams.
	distinct := map[AdaptiveSummary]bool{}
	for _, r := range serial.Runs {
		distinct[r] = true
	}
	assert.Greater(t, len(distinct), 1)

	d := serial.TreatmentShare
	assert.LessOrEqual(t, d.P05, d.Median)
	assert.LessOrEqual(t, d.Median, d.P95)
	assert.GreaterOrEqual(t, d.StdDev, 0.0)

	runs, err := kit.RunRepository().ListRuns(ctx, run.KindAdaptiveReplicate, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.Contains(t, runs[0].Report, "12 replicates")
}

func TestAdaptiveService_ReplicateBounds(t *testing.T) {
	deps, _ := newTestDeps(t)
	svc := NewAdaptiveService(deps)
	ctx := context.Background()

	for _, n := range []int{1, -4, maxReplicates + 1} {
		_, err := svc.Replicate(ctx, ReplicateRequest{AdaptiveRequest: AdaptiveRequest{TotalN: 10}, Replicates: n})
		assert.True(t, apperrors.IsInvalidParameter(err), "replicates=%d", n)
	}

	// Each trial fits the per-trial cap but the batch does not.
	_, err := svc.Replicate(ctx, ReplicateRequest{
		AdaptiveRequest: AdaptiveRequest{TotalN: 1000, Samples: 100000},
		Replicates:      maxReplicateDraws/100000000 + 1,
	})
	assert.True(t, apperrors.IsInvalidParameter(err), "got %v", err)
}

func TestAdaptiveService_Cancelled(t *testing.T) {
	deps, _ := newTestDeps(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAdaptiveService(deps).Run(ctx, AdaptiveRequest{TotalN: 100, Samples: 50})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummarize(t *testing.T) {
	d, err := summarize([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	require.NoError(t, err)
	assert.Equal(t, 5.5, d.Mean)
	assert.Equal(t, 5.5, d.Median)
	assert.Equal(t, 1.0, d.P05)
	assert.Equal(t, 10.0, d.P95)
	assert.InDelta(t, 3.02765, d.StdDev, 1e-5)
}
