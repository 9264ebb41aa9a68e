package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trialsim/adapters/stats/engine"
	"trialsim/domain/trial"
	apperrors "trialsim/internal/errors"
)

func TestInterimService_CumulativeLooks(t *testing.T) {
	deps, kit := newTestDeps(t)
	svc := NewInterimService(deps)
	ctx := context.Background()

	result, err := svc.Run(ctx, InterimRequest{})
	require.NoError(t, err)

	require.Len(t, result.Looks, 3)
	assert.Equal(t, []int{132, 266, 400}, enrolled(result.Looks))
	assert.InDelta(t, 1.959964, result.CriticalValue, 1e-4)
	assert.Equal(t, trial.BoundaryOBrienFleming, result.Params.Boundary)

	prevControl, prevTreatment := 0, 0
	for i, look := range result.Looks {
		assert.Equal(t, i+1, look.Analysis)
		assert.InDelta(t, float64(i+1)/3, look.InformationFraction, 1e-12)
		assert.GreaterOrEqual(t, look.ControlEvents, prevControl, "events accumulate")
		assert.GreaterOrEqual(t, look.TreatmentEvents, prevTreatment, "events accumulate")
		prevControl, prevTreatment = look.ControlEvents, look.TreatmentEvents
		assert.Equal(t, 0.0, look.FutilityBound)
		assert.Equal(t, Recommend(look), look.Recommendation)
	}
	assert.Greater(t, result.Looks[0].EfficacyBound, result.Looks[2].EfficacyBound)
	assert.InDelta(t, 0.05, result.Looks[2].AlphaSpent, 1e-6)
	assert.Equal(t, result.Looks[2].Recommendation, result.Recommendation)
	assert.False(t, result.StoppedEarly)

	stored, err := kit.RunRepository().GetRun(ctx, result.RunID)
	require.NoError(t, err)
	assert.Contains(t, stored.Report, "O'Brien-Fleming boundary, 3 looks")
}

func TestInterimService_StopAtBoundary(t *testing.T) {
	deps, _ := newTestDeps(t)
	svc := NewInterimService(deps)
	req := InterimRequest{
		TargetN:       400,
		Analyses:      4,
		ControlRate:   ptr(0.1),
		TreatmentRate: ptr(0.9),
	}

	full, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, full.Looks, 4)
	assert.Equal(t, trial.RecommendStopEfficacy, full.Looks[0].Recommendation)

	req.StopAtBoundary = true
	stopped, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, stopped.Looks, 1)
	assert.True(t, stopped.StoppedEarly)
	assert.Equal(t, 1, stopped.StoppedAt)
	assert.Equal(t, trial.RecommendStopEfficacy, stopped.Recommendation)
}

func TestInterimService_PocockBoundsAreFlat(t *testing.T) {
	deps, _ := newTestDeps(t)
	result, err := NewInterimService(deps).Run(context.Background(), InterimRequest{Boundary: trial.BoundaryPocock})
	require.NoError(t, err)
	for _, look := range result.Looks {
		assert.InDelta(t, 2.394, look.EfficacyBound, 1e-3)
	}
}

func TestInterimService_RejectsInvalidInput(t *testing.T) {
	deps, _ := newTestDeps(t)
	svc := NewInterimService(deps)

	cases := map[string]InterimRequest{
		"too many looks":   {Analyses: maxAnalyses + 1},
		"negative looks":   {Analyses: -1},
		"empty first look": {TargetN: 5, Analyses: 3},
		"target too large": {TargetN: maxTargetN + 1},
		"rate above one":   {ControlRate: ptr(1.5)},
		"unknown boundary": {Boundary: "haybittle-peto"},
		"alpha of one":     {Alpha: 1},
		"unknown drift":    {Drift: &trial.Drift{Mode: "optimistic"}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Run(context.Background(), req)
			assert.True(t, apperrors.IsInvalidParameter(err), "got %v", err)
		})
	}
}

func TestAnalyzeLook(t *testing.T) {
	control := trial.BinaryOutcomes{Successes: 30, Failures: 70}
	treatment := trial.BinaryOutcomes{Successes: 45, Failures: 55}

	look, err := AnalyzeLook(2, 4, control, treatment, trial.BoundaryOBrienFleming, 0.05, trial.CurrentTrend())
	require.NoError(t, err)
	assert.Equal(t, 200, look.Enrolled)
	assert.Equal(t, 30, look.ControlEvents)
	assert.Equal(t, 45, look.TreatmentEvents)
	assert.Equal(t, 0.5, look.InformationFraction)
	assert.InDelta(t, engine.PooledZ(control, treatment), look.ZStatistic, 1e-12)
	assert.InDelta(t, 1.959964/0.70710678, look.EfficacyBound, 1e-4)
	assert.Greater(t, look.ConditionalPower, 0.9)
	assert.Equal(t, trial.RecommendContinue, look.Recommendation)

	_, err = AnalyzeLook(5, 4, control, treatment, trial.BoundaryOBrienFleming, 0.05, trial.CurrentTrend())
	assert.True(t, apperrors.IsInvalidParameter(err))
	_, err = AnalyzeLook(1, 4, trial.BinaryOutcomes{}, treatment, trial.BoundaryOBrienFleming, 0.05, trial.CurrentTrend())
	assert.True(t, apperrors.IsInvalidParameter(err))
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		name string
		look trial.InterimAnalysis
		want trial.Recommendation
	}{
		{"crosses efficacy", trial.InterimAnalysis{ZStatistic: 3.5, EfficacyBound: 3.39, ConditionalPower: 1}, trial.RecommendStopEfficacy},
		{"on the bound continues", trial.InterimAnalysis{ZStatistic: 3.39, EfficacyBound: 3.39, ConditionalPower: 0.99}, trial.RecommendContinue},
		{"below futility", trial.InterimAnalysis{ZStatistic: -0.4, EfficacyBound: 3.39, ConditionalPower: 0}, trial.RecommendStopFutility},
		{"low conditional power", trial.InterimAnalysis{ZStatistic: 0.3, EfficacyBound: 3.39, ConditionalPower: 0.1}, trial.RecommendConsiderFutility},
		{"promising", trial.InterimAnalysis{ZStatistic: 1.8, EfficacyBound: 2.77, ConditionalPower: 0.6}, trial.RecommendContinue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Recommend(tt.look))
		})
	}
}

func TestBoundsTable(t *testing.T) {
	rows, err := BoundsTable(trial.BoundaryOBrienFleming, 3, 0.05)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.InDelta(t, 3.3948, rows[0].EfficacyBound, 1e-3)
	assert.InDelta(t, 1.96, rows[2].EfficacyBound, 1e-3)
	assert.InDelta(t, 0.05, rows[2].AlphaSpent, 1e-6)
	assert.Less(t, rows[0].AlphaSpent, rows[1].AlphaSpent)
	assert.Contains(t, rows[0].String(), "1\t0.333")

	_, err = BoundsTable(trial.BoundaryPocock, 0, 0.05)
	assert.True(t, apperrors.IsInvalidParameter(err))
	_, err = BoundsTable("custom", 3, 0.05)
	assert.True(t, apperrors.IsInvalidParameter(err))
}

func enrolled(looks []trial.InterimAnalysis) []int {
	out := make([]int, len(looks))
	for i, l := range looks {
		out[i] = l.Enrolled
	}
	return out
}
